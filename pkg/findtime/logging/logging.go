package logging

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDHeader is echoed back on every response.
	RequestIDHeader = "X-Request-ID"
	entryKey        = "log_entry"
)

// Setup configures the standard logrus logger.
func Setup(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)

	switch format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

// RequestLogger tags each request with an id and logs it once it completes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		entry := logrus.WithField("request_id", requestID)
		c.Set(entryKey, entry)

		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			entry.WithFields(fields).Warn(c.Errors.String())
			return
		}
		entry.WithFields(fields).Info("request")
	}
}

// Entry returns the request-scoped logger, or the standard logger outside a request.
func Entry(c *gin.Context) *logrus.Entry {
	if c != nil {
		if v, ok := c.Get(entryKey); ok {
			if entry, ok := v.(*logrus.Entry); ok {
				return entry
			}
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
