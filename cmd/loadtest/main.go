// Command loadtest гоняет сценарии продаж против InvoiceService по gRPC
// и проверяет, что остаток товара не уходит в минус.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	invoicingv1 "github.com/vladislavdragonenkov/ims/api/invoicing/v1"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fail("invalid config: %v", err)
	}

	clients, closeAll, err := dial(cfg)
	if err != nil {
		fail("create grpc client connection: %v", err)
	}
	defer closeAll()

	result, err := execute(cfg, clients)
	if err != nil {
		fail("load test failed: %v", err)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			fail("write report: %v", err)
		}
	}
	if result.FailedScenarios > 0 || (result.Stock != nil && result.Stock.Oversold) {
		os.Exit(1)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func dial(cfg config) ([]invoicingv1.InvoiceServiceClient, func(), error) {
	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	closeAll := func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}
	clients := make([]invoicingv1.InvoiceServiceClient, 0, cfg.connections)
	for range cfg.connections {
		conn, err := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		conns = append(conns, conn)
		clients = append(clients, invoicingv1.NewInvoiceServiceClient(conn))
	}
	return clients, closeAll, nil
}

// execute прогоняет сценарии пулом воркеров и собирает отчёт.
func execute(cfg config, clients []invoicingv1.InvoiceServiceClient) (report, error) {
	var baseline *int64
	if cfg.restock > 0 {
		stock, err := restock(clients[0], cfg)
		if err != nil {
			return report{}, fmt.Errorf("restock %s: %w", cfg.productID, err)
		}
		baseline = &stock
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()
	counters := &stockCounters{}
	jobs := make(chan int, cfg.concurrency*2)

	var wg sync.WaitGroup
	for worker := range cfg.concurrency {
		client := clients[worker%len(clients)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				_ = runScenario(client, cfg, index, runID, col, counters)
			}
		}()
	}
	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	if baseline != nil {
		sold, returned := counters.sold.Load(), counters.returned.Load()
		result.Stock = &stockReport{
			ProductID:     cfg.productID,
			Baseline:      *baseline,
			UnitsSold:     sold,
			UnitsReturned: returned,
			Rejected:      counters.rejected.Load(),
			Oversold:      sold-returned > *baseline,
		}
	}
	return result, nil
}

func restock(client invoicingv1.InvoiceServiceClient, cfg config) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	resp, err := client.AdjustStock(ctx, &invoicingv1.AdjustStockRequest{ProductID: cfg.productID, Delta: cfg.restock})
	if err != nil {
		return 0, err
	}
	if resp.Movement == nil {
		return 0, errors.New("adjust stock returned no movement")
	}
	return resp.Movement.StockAfter, nil
}

// dispatchJobs раздаёт номера сценариев: total штук или до истечения duration.
func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := range cfg.total {
			jobs <- i
		}
		return
	}

	deadline := time.NewTimer(cfg.duration)
	defer deadline.Stop()
	for i := 0; !cfg.totalSet || i < cfg.total; i++ {
		select {
		case <-deadline.C:
			return
		case jobs <- i:
		}
	}
}
