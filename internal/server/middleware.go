package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sleepstars/chatgate/internal/auth"
	"github.com/sleepstars/chatgate/internal/logger"
	"github.com/sleepstars/chatgate/internal/models"
)

// callerKey holds the auth.CallerContext in the gin context.
const callerKey = "caller"

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.
			WithField("status", c.Writer.Status()).
			WithField("latency", time.Since(start).String()).
			WithField("client_ip", c.ClientIP())
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		if c.Writer.Status() >= 500 {
			entry.Warn("%s %s", c.Request.Method, c.Request.URL.Path)
			return
		}
		entry.Info("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

// authMiddleware rejects requests without a well-formed API key.
func authMiddleware(v *auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := v.Validate(c.GetHeader("Authorization"), c.Request.Header)
		if !ok {
			abortWithError(c, &models.AuthenticationError{})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// abortWithError writes the OpenAI error envelope for err.
func abortWithError(c *gin.Context, err error) {
	status, body := models.ToAPIError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
