package domain

import (
	"errors"
	"math"
	"testing"
)

func TestParseStockPolicy(t *testing.T) {
	tests := []struct {
		raw     string
		want    StockPolicy
		wantErr bool
	}{
		{raw: "", want: ""},
		{raw: "strict", want: StockPolicyStrict},
		{raw: " Permissive ", want: StockPolicyPermissive},
		{raw: "lenient", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseStockPolicy(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrStockPolicyInvalid) {
				t.Fatalf("%q: expected ErrStockPolicyInvalid, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %q, %v", tc.raw, got, err)
		}
	}
}

func TestStockPolicyAllows(t *testing.T) {
	if StockPolicyStrict.Allows(-1) {
		t.Fatalf("strict policy must reject negative stock")
	}
	if !StockPolicyStrict.Allows(0) {
		t.Fatalf("strict policy must allow zero stock")
	}
	if !StockPolicyPermissive.Allows(-10) {
		t.Fatalf("permissive policy must allow negative stock")
	}
}

func TestParseSortDirection(t *testing.T) {
	if d, err := ParseSortDirection(""); err != nil || d != SortDesc {
		t.Fatalf("empty direction: got %q, %v", d, err)
	}
	if d, err := ParseSortDirection("ASC"); err != nil || d != SortAsc {
		t.Fatalf("asc direction: got %q, %v", d, err)
	}
	if _, err := ParseSortDirection("sideways"); !errors.Is(err, ErrSortDirectionInvalid) {
		t.Fatalf("expected ErrSortDirectionInvalid, got %v", err)
	}
}

func TestStockAfter(t *testing.T) {
	tests := []struct {
		name    string
		stock   int64
		delta   int64
		want    int64
		wantErr bool
	}{
		{name: "sale", stock: 3, delta: -2, want: 1},
		{name: "backorder", stock: -2, delta: -5, want: -7},
		{name: "wrap below min", stock: -2, delta: math.MinInt64 + 1, wantErr: true},
		{name: "exact min", stock: -1, delta: math.MinInt64 + 1, want: math.MinInt64},
		{name: "wrap above max", stock: math.MaxInt64, delta: 1, wantErr: true},
		{name: "exact max", stock: math.MaxInt64 - 5, delta: 5, want: math.MaxInt64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := StockAfter(tc.stock, tc.delta)
			if tc.wantErr {
				if !errors.Is(err, ErrStockOutOfRange) {
					t.Fatalf("expected ErrStockOutOfRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("StockAfter() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCheckStockDelta(t *testing.T) {
	if err := CheckStockDelta(0); !errors.Is(err, ErrStockDeltaZero) {
		t.Fatalf("zero delta: got %v", err)
	}
	if err := CheckStockDelta(-MaxStockDelta); err != nil {
		t.Fatalf("delta at cap: %v", err)
	}
	if err := CheckStockDelta(MaxStockDelta + 1); !errors.Is(err, ErrStockDeltaTooLarge) {
		t.Fatalf("delta over cap: got %v", err)
	}
}
