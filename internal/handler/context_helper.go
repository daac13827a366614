package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/easydeed/reportscompany-sub005/internal/middleware"
	"github.com/easydeed/reportscompany-sub005/internal/models"
)

func claimsFromContext(c *gin.Context) *models.AccountClaims {
	value, exists := c.Get(middleware.ContextAccountKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.AccountClaims)
	if !ok {
		return nil
	}
	return claims
}
