package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status это итог проверки компонента или всего сервиса.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// DefaultCheckTimeout ограничивает одну проверку.
const DefaultCheckTimeout = 2 * time.Second

type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response это тело /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Pinger реализуют postgres-хранилище, redis-кэш и воркер очистки ключей.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Target связывает функцию проверки со статусом, который даёт её ошибка.
type Target struct {
	ping     func(ctx context.Context) error
	failWith Status
}

// Critical: ошибка делает сервис unhealthy и снимает готовность.
func Critical(p Pinger) Target {
	return Target{ping: p.Ping, failWith: StatusUnhealthy}
}

// Optional: ошибка только понижает статус до degraded.
func Optional(p Pinger) Target {
	return Target{ping: p.Ping, failWith: StatusDegraded}
}

// Func оборачивает функцию в критичную проверку.
func Func(fn func(ctx context.Context) error) Target {
	return Target{ping: fn, failWith: StatusUnhealthy}
}

func (p Target) run(ctx context.Context, name string) Check {
	start := time.Now()
	err := p.ping(ctx)
	check := Check{Name: name, Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = p.failWith
		check.Message = err.Error()
	}
	return check
}

// Option настраивает Handler.
type Option func(*Handler)

func WithCheckTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithClock подменяет источник времени для Timestamp и uptime.
func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		if clock != nil {
			h.now = clock
		}
	}
}

// Handler хранит набор проверок и отдаёт /healthz и /readyz.
type Handler struct {
	mu      sync.RWMutex
	targets map[string]Target
	version string
	started time.Time
	timeout time.Duration
	now     func() time.Time
}

func NewHandler(version string, options ...Option) *Handler {
	h := &Handler{
		targets: make(map[string]Target),
		version: version,
		timeout: DefaultCheckTimeout,
		now:     time.Now,
	}
	for _, option := range options {
		option(h)
	}
	h.started = h.now()
	return h
}

// Register добавляет или заменяет проверку с именем name.
func (h *Handler) Register(name string, target Target) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.targets[name] = target
}

// Evaluate запускает проверки параллельно, каждую со своим таймаутом.
// Один unhealthy компонент делает unhealthy весь сервис.
func (h *Handler) Evaluate(ctx context.Context) Response {
	h.mu.RLock()
	names := make([]string, 0, len(h.targets))
	targets := make([]Target, 0, len(h.targets))
	for name, target := range h.targets {
		names = append(names, name)
		targets = append(targets, target)
	}
	h.mu.RUnlock()

	results := make([]Check, len(targets))
	var g errgroup.Group
	for i := range targets {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			results[i] = targets[i].run(checkCtx, names[i])
			return nil
		})
	}
	_ = g.Wait()

	resp := Response{
		Status:  StatusHealthy,
		Checks:  make(map[string]Check, len(results)),
		Version: h.version,
	}
	for _, check := range results {
		resp.Checks[check.Name] = check
		resp.Status = worse(resp.Status, check.Status)
	}
	now := h.now()
	resp.Timestamp = now.UTC()
	resp.UptimeSeconds = int64(now.Sub(h.started).Seconds())
	return resp
}

func worse(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusUnhealthy:
			return 2
		case StatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// ServeHTTP отдаёт Response в JSON; unhealthy отвечает 503.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h.Evaluate(r.Context())

	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// LivenessHandler не зависит от проверок.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler отвечает 503, пока хотя бы одна критичная проверка падает.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if h.Evaluate(r.Context()).Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
