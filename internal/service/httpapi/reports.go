package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/convert"
)

type topCustomersQuery struct {
	Limit int `form:"limit"`
}

type productSalesQuery struct {
	Direction string `form:"direction"`
}

func (s *Server) TopCustomers(c *gin.Context) {
	var q topCustomersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequest("limit", "limit must be an integer"))
		return
	}

	rows, err := s.reports.TopCustomers(c.Request.Context(), q.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": convert.CustomerCounts(rows)})
}

func (s *Server) ProductSales(c *gin.Context) {
	var q productSalesQuery
	_ = c.ShouldBindQuery(&q)

	direction, err := domain.ParseSortDirection(q.Direction)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows, err := s.reports.ProductRanking(c.Request.Context(), direction)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": convert.ProductSales(rows)})
}

func (s *Server) LowStock(c *gin.Context) {
	rows, err := s.reports.LowStock(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": convert.ProductStocks(rows)})
}

func (s *Server) Salespeople(c *gin.Context) {
	rows, err := s.reports.SalespersonRanking(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": convert.EmployeeCounts(rows)})
}
