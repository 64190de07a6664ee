package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edu-scheduling/campus-timetable/internal/middleware"
	"github.com/edu-scheduling/campus-timetable/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// schoolIDFromContext resolves the tenant scope from the JWT claims, falling
// back to the X-School-Id header. Returns 0, false when neither is present.
func schoolIDFromContext(c *gin.Context) (int, bool) {
	if claims := claimsFromContext(c); claims != nil && claims.SchoolID > 0 {
		return claims.SchoolID, true
	}
	header := c.GetHeader("X-School-Id")
	if header == "" {
		return 0, false
	}
	id, err := strconv.Atoi(header)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
