package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/catalog"
	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/storage/postgres"
)

const (
	defaultTimeout = time.Minute
	envPostgresDSN = "IMS_POSTGRES_DSN"
)

type options struct {
	file    string
	dsn     string
	migrate bool
	dryRun  bool
}

func parseFlags(args []string, lookup func(string) string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.file, "file", "catalog.yaml", "YAML catalog fixture")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	fs.BoolVar(&opts.migrate, "migrate", true, "apply migrations before seeding")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "validate the fixture without writing")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if strings.TrimSpace(opts.file) == "" {
		return options{}, fmt.Errorf("-file is required")
	}
	if strings.TrimSpace(opts.dsn) == "" {
		opts.dsn = strings.TrimSpace(lookup(envPostgresDSN))
	}
	if opts.dsn == "" && !opts.dryRun {
		return options{}, fmt.Errorf("%s (or -dsn) is required", envPostgresDSN)
	}
	return opts, nil
}

// seed загружает фикстуру и записывает её через writer; open вызывается только без dry-run.
func seed(ctx context.Context, opts options, open func(context.Context) (domain.CatalogWriter, func(), error), logger *log.Entry) (catalog.Summary, error) {
	fixture, err := catalog.LoadFile(opts.file)
	if err != nil {
		return catalog.Summary{}, err
	}
	if opts.dryRun {
		logger.WithField("file", opts.file).Info("fixture is valid, dry run")
		return catalog.Summary{
			Products:  len(fixture.Products),
			Customers: len(fixture.Customers),
			Employees: len(fixture.Employees),
		}, nil
	}

	writer, closeFn, err := open(ctx)
	if err != nil {
		return catalog.Summary{}, err
	}
	defer closeFn()

	return fixture.Apply(ctx, writer)
}

func openPostgres(dsn string, migrate bool) func(context.Context) (domain.CatalogWriter, func(), error) {
	return func(ctx context.Context) (domain.CatalogWriter, func(), error) {
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		if migrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		return postgres.NewCatalogRepository(store), func() { _ = store.Close() }, nil
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "seed")

	opts, err := parseFlags(os.Args[1:], os.Getenv)
	if err != nil {
		logger.WithError(err).Fatal("invalid arguments")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	summary, err := seed(ctx, opts, openPostgres(opts.dsn, opts.migrate), logger)
	if err != nil {
		logger.WithError(err).Fatal("seed failed")
	}

	logger.WithFields(log.Fields{
		"file":      opts.file,
		"products":  summary.Products,
		"customers": summary.Customers,
		"employees": summary.Employees,
		"dry_run":   opts.dryRun,
	}).Info("catalog seeded")
}
