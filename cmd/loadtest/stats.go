package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
)

// scenarioMethod это псевдо-метод, под которым учитывается сценарий целиком.
const scenarioMethod = "scenario"

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// stockReport сверяет проданные единицы с остатком, выставленным перед прогоном.
type stockReport struct {
	ProductID     string `json:"product_id"`
	Baseline      int64  `json:"baseline"`
	UnitsSold     int64  `json:"units_sold"`
	UnitsReturned int64  `json:"units_returned"`
	Rejected      int64  `json:"rejected"`
	Oversold      bool   `json:"oversold"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Stock             *stockReport            `json:"stock,omitempty"`
}

type callLog struct {
	codes     map[codes.Code]int64
	latencies []float64
}

func (l *callLog) summary() methodReport {
	out := methodReport{Codes: make(map[string]int64, len(l.codes)), LatencyMs: buildLatencySummary(l.latencies)}
	for code, n := range l.codes {
		out.Calls += n
		if code == codes.OK {
			out.Success += n
		} else {
			out.Failed += n
		}
		out.Codes[code.String()] = n
	}
	out.ErrorRate = ratio(out.Failed, out.Calls)
	return out
}

// collector копит коды ответов и задержки по методам.
type collector struct {
	mu      sync.Mutex
	methods map[string]*callLog
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*callLog)}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.methods[method]
	if entry == nil {
		entry = &callLog{codes: make(map[codes.Code]int64)}
		c.methods[method] = entry
	}
	entry.codes[code]++
	entry.latencies = append(entry.latencies, float64(latency.Microseconds())/1000)
}

func (c *collector) snapshot(method string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.methods[method]
	if !ok {
		return methodReport{}, false
	}
	return entry.summary(), true
}

func (c *collector) buildReport(startedAt time.Time, elapsed time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: elapsed.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}
	for name, entry := range c.methods {
		out.Methods[name] = entry.summary()
	}
	if scenarios, ok := out.Methods[scenarioMethod]; ok {
		out.TotalScenarios = scenarios.Calls
		out.SuccessScenarios = scenarios.Success
		out.FailedScenarios = scenarios.Failed
		out.ErrorRate = scenarios.ErrorRate
		out.ScenarioLatencyMs = scenarios.LatencyMs
	}
	if elapsed > 0 {
		out.RPS = float64(out.TotalScenarios) / elapsed.Seconds()
	}
	return out
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует между соседними рангами отсортированной выборки.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo, hi := int(math.Floor(rank)), int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

func printReport(w io.Writer, result report, cfg config) {
	lat := result.ScenarioLatencyMs
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg), result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		lat.Min, lat.Avg, lat.P50, lat.P95, lat.P99, lat.Max)

	for _, name := range slices.Sorted(maps.Keys(result.Methods)) {
		if name == scenarioMethod {
			continue
		}
		m := result.Methods[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, m.Calls, m.Success, m.Failed, m.ErrorRate, m.LatencyMs.P95)
	}
	if s := result.Stock; s != nil {
		_, _ = fmt.Fprintf(w, "stock %s: baseline=%d sold=%d returned=%d rejected=%d oversold=%t\n",
			s.ProductID, s.Baseline, s.UnitsSold, s.UnitsReturned, s.Rejected, s.Oversold)
	}
}

func writeJSONReport(path string, result report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return errors.New("output path must point to a file")
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- путь задан флагом -output.
	file, err := os.Create(clean)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
