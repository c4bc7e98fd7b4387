package middleware

import (
	"net/http"

	"cryptosim/pkg/apperror"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize rejects requests that declare a body over maxBytes and caps
// the reader for those that do not, so an oversized chunked body fails
// during binding instead of being buffered.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.AbortError(c, apperror.ErrPayloadTooLarge())
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
