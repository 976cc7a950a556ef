package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/convert"
)

type adjustStockRequest struct {
	Delta  int64  `json:"delta"`
	Policy string `json:"policy"`
}

type movementsQuery struct {
	Limit int `form:"limit"`
}

// AdjustStock обрабатывает POST /api/products/:id/stock.
func (s *Server) AdjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequest("body", "invalid json body"))
		return
	}

	policy, err := domain.ParseStockPolicy(req.Policy)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	movement, err := s.ledger.AdjustStock(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Delta, policy)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": convert.Movement(movement)})
}

func (s *Server) ListMovements(c *gin.Context) {
	var q movementsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequest("limit", "limit must be an integer"))
		return
	}

	movements, err := s.ledger.Movements(c.Request.Context(), strings.TrimSpace(c.Param("id")), q.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": convert.Movements(movements)})
}
