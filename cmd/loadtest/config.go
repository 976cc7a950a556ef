package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

type loadMode string

const (
	modeCreate         loadMode = "create"
	modeCreateDiscount loadMode = "create-discount"
	modeCreateVoid     loadMode = "create-void"
	// modeCreateCorrect уменьшает количество в строке на единицу после продажи.
	modeCreateCorrect loadMode = "create-correct"
)

var loadModes = []loadMode{modeCreate, modeCreateDiscount, modeCreateVoid, modeCreateCorrect}

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	voidRate    int
	customerID  string
	productID   string
	quantity    int64
	discount    string
	restock     int64
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var (
		cfg                     config
		mode, timeout, duration string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC address of the invoice service")
	fs.IntVar(&cfg.total, "total", 400, "scenarios to run; with -duration acts as an upper bound")
	fs.StringVar(&duration, "duration", "0s", "run for this long instead of a fixed count")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "parallel workers")
	fs.IntVar(&cfg.connections, "connections", 20, "gRPC connections shared by workers")
	fs.StringVar(&timeout, "timeout", "5s", "per-call timeout")
	fs.StringVar(&mode, "mode", string(modeCreate), "scenario: "+joinModes())
	fs.IntVar(&cfg.voidRate, "void-rate", 0, "percent of create-discount scenarios that also void (0..100)")
	fs.StringVar(&cfg.customerID, "customer", "", "customer billed by every invoice")
	fs.StringVar(&cfg.productID, "product", "", "product sold by every invoice")
	fs.Int64Var(&cfg.quantity, "qty", 1, "units per invoice")
	fs.StringVar(&cfg.discount, "discount", "10", "percentage used by create-discount")
	fs.Int64Var(&cfg.restock, "restock", 0, "units added before the run; enables the oversell check")
	fs.StringVar(&cfg.outputPath, "output", "", "write the JSON report to this file")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) { cfg.totalSet = cfg.totalSet || f.Name == "total" })

	var err error
	if cfg.timeout, err = time.ParseDuration(strings.TrimSpace(timeout)); err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	if cfg.duration, err = time.ParseDuration(strings.TrimSpace(duration)); err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	if cfg.mode, err = parseMode(mode); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch {
	case c.duration < 0:
		return errors.New("duration must be >= 0")
	case c.duration == 0 && c.total <= 0:
		return errors.New("total must be > 0 when duration is not set")
	case c.duration > 0 && c.totalSet && c.total <= 0:
		return errors.New("total must be > 0 when explicitly set with duration")
	case c.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case c.connections <= 0:
		return errors.New("connections must be > 0")
	case c.timeout <= 0:
		return errors.New("timeout must be > 0")
	case c.quantity <= 0:
		return errors.New("qty must be > 0")
	case c.mode == modeCreateCorrect && c.quantity < 2:
		return errors.New("create-correct needs qty >= 2")
	case c.restock < 0:
		return errors.New("restock must be >= 0")
	case c.voidRate < 0 || c.voidRate > 100:
		return errors.New("void-rate must be between 0 and 100")
	case strings.TrimSpace(c.customerID) == "":
		return errors.New("customer is required")
	case strings.TrimSpace(c.productID) == "":
		return errors.New("product is required")
	}
	return nil
}

func parseMode(value string) (loadMode, error) {
	mode := loadMode(strings.TrimSpace(value))
	for _, known := range loadModes {
		if mode == known {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unsupported mode: %s", value)
}

func joinModes() string {
	names := make([]string, len(loadModes))
	for i, mode := range loadModes {
		names[i] = string(mode)
	}
	return strings.Join(names, " | ")
}

func runTarget(cfg config) string {
	switch {
	case cfg.duration <= 0:
		return fmt.Sprintf("count:%d", cfg.total)
	case cfg.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	default:
		return fmt.Sprintf("duration:%s", cfg.duration)
	}
}
