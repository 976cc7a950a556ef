package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	invoicingv1 "github.com/vladislavdragonenkov/ims/api/invoicing/v1"
	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/convert"
	"github.com/vladislavdragonenkov/ims/internal/service/invoice"
)

type listInvoicesQuery struct {
	CustomerID string `form:"customer_id"`
	Limit      int    `form:"limit"`
}

type discountRequest struct {
	Percentage string `json:"percentage" binding:"required"`
}

type correctLineRequest struct {
	Quantity  *int64 `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type voidRequest struct {
	Reason string `json:"reason"`
}

// CreateInvoice обрабатывает POST /api/invoices.
func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicingv1.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequest("body", "invalid json body"))
		return
	}

	s.idempotent(c, "POST /api/invoices", &req, func() (int, any, error) {
		lines, err := convert.LineRequests(req.Lines)
		if err != nil {
			return 0, nil, err
		}
		inv, err := s.invoices.Create(c.Request.Context(), invoice.CreateRequest{
			CustomerID: req.CustomerID,
			EmployeeID: req.EmployeeID,
			Lines:      lines,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, gin.H{"data": convert.Invoice(inv)}, nil
	})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var q listInvoicesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequest("limit", "limit must be an integer"))
		return
	}

	invoices, err := s.invoices.List(c.Request.Context(), domain.InvoiceFilter{
		CustomerID: strings.TrimSpace(q.CustomerID),
		Limit:      q.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": convert.Invoices(invoices)})
}

func (s *Server) GetInvoice(c *gin.Context) {
	inv, err := s.invoices.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": convert.Invoice(inv)})
}

func (s *Server) ListInvoiceLines(c *gin.Context) {
	views, err := s.invoices.Lines(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": convert.LineViews(views)})
}

func (s *Server) InvoiceTimeline(c *gin.Context) {
	events, err := s.invoices.AuditTrail(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": convert.Timeline(events)})
}

// ApplyDiscount обрабатывает PUT /api/invoices/:id/discount.
func (s *Server) ApplyDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequest("percentage", "percentage is required"))
		return
	}

	pct, err := convert.Decimal("percentage", req.Percentage)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	total, err := s.invoices.ApplyDiscount(c.Request.Context(), id, pct)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoicingv1.ApplyDiscountResponse{InvoiceID: id, Total: total.StringFixed(2)}})
}

// CorrectLine обрабатывает PATCH /api/invoices/:id/lines/:lineId.
func (s *Server) CorrectLine(c *gin.Context) {
	var req correctLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequest("body", "invalid json body"))
		return
	}

	correction, err := convert.Correction(req.Quantity, req.UnitPrice)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invoices.CorrectLine(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Param("lineId")), correction)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": convert.Invoice(inv)})
}

// VoidInvoice обрабатывает DELETE /api/invoices/:id; тело с причиной необязательно.
func (s *Server) VoidInvoice(c *gin.Context) {
	var req voidRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequest("body", "invalid json body"))
			return
		}
	}

	if err := s.invoices.Void(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Reason); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
