package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "IMS_POSTGRES_DSN"
)

type options struct {
	direction string
	steps     int
	dsn       string
}

func parseFlags(args []string, lookup func(string) string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&opts.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	switch opts.direction {
	case "up", "down", "status":
	default:
		return options{}, fmt.Errorf("unsupported direction: %s (use up|down|status)", opts.direction)
	}
	if opts.steps < 0 {
		return options{}, fmt.Errorf("steps must be >= 0")
	}

	if strings.TrimSpace(opts.dsn) == "" {
		opts.dsn = strings.TrimSpace(lookup(envPostgresDSN))
	}
	if opts.dsn == "" {
		return options{}, fmt.Errorf("%s (or -dsn) is required", envPostgresDSN)
	}
	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	var executed []string
	switch opts.direction {
	case "up":
		if executed, err = store.MigrateUp(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate up failed after %v: %w", executed, err)
		}
	case "down":
		if executed, err = store.MigrateDown(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate down failed after %v: %w", executed, err)
		}
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	printState(out, opts.direction, executed, state)
	return nil
}

func printState(out io.Writer, direction string, executed []string, state postgres.MigrationState) {
	_, _ = fmt.Fprintf(out, "migrate %s ok: version=%d applied=%d pending=%d\n", direction, state.Version, state.Applied, len(state.Pending))
	for _, name := range executed {
		_, _ = fmt.Fprintf(out, "  %s: %s\n", direction, name)
	}
	for _, name := range state.Pending {
		_, _ = fmt.Fprintf(out, "  pending: %s\n", name)
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
