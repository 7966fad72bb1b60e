package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/agentic-rag/pkg/errors"
	"github.com/kart-io/agentic-rag/pkg/response"
)

// RecoveryConfig defines the config for Recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace includes stack trace in error response (for development).
	EnableStackTrace bool

	// OnPanic is called when a panic occurs.
	OnPanic func(c *gin.Context, err interface{}, stack []byte)
}

// Recovery returns a middleware that recovers from panics.
// It converts panics to JSON error responses using the error code system.
func Recovery() gin.HandlerFunc {
	return RecoveryWithConfig(RecoveryConfig{})
}

// RecoveryWithConfig returns a Recovery middleware with custom config.
func RecoveryWithConfig(config RecoveryConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()
			if config.OnPanic != nil {
				config.OnPanic(c, r, stack)
			}
			logger.Errorw("panic recovered",
				"path", c.Request.URL.Path,
				"request_id", GetRequestID(c.Request.Context()),
				"panic", fmt.Sprint(r),
			)

			msg := fmt.Sprintf("panic: %v", r)
			if config.EnableStackTrace {
				msg = fmt.Sprintf("panic: %v\n%s", r, stack)
			}
			resp := response.Err(errors.ErrInternal, "en").
				WithData(gin.H{"detail": msg}).
				WithRequestID(GetRequestID(c.Request.Context()))
			c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
		}()
		c.Next()
	}
}
