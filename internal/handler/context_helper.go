package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/report-engine/internal/middleware"
	"github.com/openlearnhq/report-engine/internal/models"
)

func claimsFromContext(c *gin.Context) *models.SessionClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

func sessionFromContext(c *gin.Context) *models.SessionContext {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	return claims.Session()
}
