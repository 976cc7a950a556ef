package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestHash(t *testing.T) {
	type body struct {
		CustomerID string `json:"customer_id"`
		Qty        int64  `json:"qty"`
	}

	h1, err := RequestHash("POST /api/invoices", body{CustomerID: "c-1", Qty: 2})
	require.NoError(t, err)
	h2, err := RequestHash("POST /api/invoices", body{CustomerID: "c-1", Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	other, err := RequestHash("POST /api/invoices", body{CustomerID: "c-1", Qty: 3})
	require.NoError(t, err)
	assert.NotEqual(t, h1, other)

	otherMethod, err := RequestHash("/invoicing.v1.InvoiceService/CreateInvoice", body{CustomerID: "c-1", Qty: 2})
	require.NoError(t, err)
	assert.NotEqual(t, h1, otherMethod)

	_, err = RequestHash("m", nil)
	assert.Error(t, err)
	_, err = RequestHash("m", make(chan int))
	assert.Error(t, err)
}
