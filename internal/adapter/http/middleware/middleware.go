package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderRequestID carries the request correlation id in both directions.
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxRequestID = "request_id"
	CtxPrincipal = "principal"

	maxRequestIDLength = 64
)

// RequestID reuses a sane inbound X-Request-ID or mints a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// JWTAuth validates the bearer access token and stores the caller's
// ports.Principal on the context.
func JWTAuth(tokenSvc ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			response.AbortError(c, apperror.ErrInvalidToken())
			return
		}

		principal, err := tokenSvc.Validate(strings.TrimSpace(tokenStr), ports.TokenKindAccess)
		if err != nil {
			response.AbortError(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxPrincipal, *principal)
		c.Next()
	}
}

// Principal returns the authenticated caller set by JWTAuth.
func Principal(c *gin.Context) (ports.Principal, bool) {
	v, ok := c.Get(CtxPrincipal)
	if !ok {
		return ports.Principal{}, false
	}
	p, ok := v.(ports.Principal)
	return p, ok
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if p, ok := Principal(c); ok {
			event = event.Str("user_id", p.UserID.String())
		}
		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("request_id", c.GetString(CtxRequestID)).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				response.AbortError(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
