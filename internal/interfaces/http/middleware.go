package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcmstack/preauth-engine/internal/application/service"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
)

const actorContextKey = "preauth.actor"

// Scope headers supplied by the authentication collaborator in front of
// this service. The engine consumes them as a verified capability.
const (
	headerHospitalID = "X-Hospital-ID"
	headerUserID     = "X-User-ID"
	headerUserRole   = "X-User-Role"
)

// scopeMiddleware resolves the hospital scope and acting staff identity
// from request headers. Every workflow route requires all three.
func (s *Server) scopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		hospitalID := c.GetHeader(headerHospitalID)
		userID := c.GetHeader(headerUserID)
		role := workflow.Role(c.GetHeader(headerUserRole))

		if hospitalID == "" || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "hospital scope and user identity headers are required",
			})
			return
		}
		if !role.IsValid() {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "unknown role: " + role.String(),
			})
			return
		}

		c.Set(actorContextKey, service.Actor{
			HospitalID: hospitalID,
			UserID:     userID,
			Role:       role,
		})
		c.Next()
	}
}

func actorFrom(c *gin.Context) service.Actor {
	actor, _ := c.Get(actorContextKey)
	return actor.(service.Actor)
}

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}
