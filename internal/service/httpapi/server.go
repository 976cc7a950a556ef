// Package httpapi публикует REST API сервиса счетов поверх gin.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ims/internal/service/inventory"
	"github.com/vladislavdragonenkov/ims/internal/service/invoice"
	"github.com/vladislavdragonenkov/ims/internal/service/reporting"
	"github.com/vladislavdragonenkov/ims/internal/tracing"
)

// Options задаёт необязательные зависимости сервера.
type Options struct {
	Logger      *log.Entry
	Tracer      trace.Tracer
	Idempotency domain.IdempotencyRepository
	IdemTTL     time.Duration
}

// Option настраивает Server.
type Option func(*Options)

func WithLogger(logger *log.Entry) Option {
	return func(o *Options) { o.Logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) { o.Tracer = tracer }
}

// WithIdempotency включает обработку заголовка Idempotency-Key для POST /api/invoices.
func WithIdempotency(repo domain.IdempotencyRepository, ttl time.Duration) Option {
	return func(o *Options) {
		o.Idempotency = repo
		o.IdemTTL = ttl
	}
}

// Server держит зависимости HTTP-обработчиков.
type Server struct {
	invoices *invoice.Service
	ledger   *inventory.Ledger
	reports  *reporting.Engine
	idemRepo domain.IdempotencyRepository
	idemTTL  time.Duration
	logger   *log.Entry
	engine   *gin.Engine
	now      func() time.Time
}

// NewServer собирает gin.Engine со всеми маршрутами /api.
func NewServer(invoices *invoice.Service, ledger *inventory.Ledger, reports *reporting.Engine, options ...Option) *Server {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "http-api")
	}
	if opts.IdemTTL <= 0 {
		opts.IdemTTL = idempotency.DefaultKeyTTL
	}

	s := &Server{
		invoices: invoices,
		ledger:   ledger,
		reports:  reports,
		idemRepo: opts.Idempotency,
		idemTTL:  opts.IdemTTL,
		logger:   opts.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), tracing.GinMiddleware(opts.Tracer), s.requestLogger(), ErrorHandlingMiddleware())
	s.registerRoutes(engine)
	s.engine = engine
	return s
}

// Handler возвращает http.Handler для http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	invoices := api.Group("/invoices")
	invoices.POST("", s.CreateInvoice)
	invoices.GET("", s.ListInvoices)
	invoices.GET("/:id", s.GetInvoice)
	invoices.GET("/:id/lines", s.ListInvoiceLines)
	invoices.GET("/:id/timeline", s.InvoiceTimeline)
	invoices.PUT("/:id/discount", s.ApplyDiscount)
	invoices.PATCH("/:id/lines/:lineId", s.CorrectLine)
	invoices.DELETE("/:id", s.VoidInvoice)

	products := api.Group("/products")
	products.POST("/:id/stock", s.AdjustStock)
	products.GET("/:id/movements", s.ListMovements)

	reports := api.Group("/reports")
	reports.GET("/top-customers", s.TopCustomers)
	reports.GET("/product-sales", s.ProductSales)
	reports.GET("/low-stock", s.LowStock)
	reports.GET("/salespeople", s.Salespeople)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := s.logger.WithFields(log.Fields{
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithError(c.Errors.Last().Err)
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("http request failed")
		case status >= http.StatusBadRequest:
			entry.Debug("http request rejected")
		default:
			entry.Debug("http request served")
		}
	}
}
