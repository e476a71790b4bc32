package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/studymate/studyplan-api/internal/middleware"
	"github.com/studymate/studyplan-api/internal/models"
)

// claimsFromContext returns the authenticated user's claims, nil when the
// request skipped the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	v, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
