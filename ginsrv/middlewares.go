package ginsrv

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seb7887/gofw/loader"
	"github.com/seb7887/gofw/predicate"
	"github.com/seb7887/gofw/sietch"
)

// ErrorFormatterMiddleware renders failed requests as {"message": ...}.
// Errors attached with c.Error pick the status and add an "error" field;
// otherwise the status set by the handler is kept.
func ErrorFormatterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		if err := c.Errors.Last(); err != nil {
			status := StatusFor(err.Err)
			c.JSON(status, gin.H{
				"message": http.StatusText(status),
				"error":   err.Error(),
			})
			return
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			c.JSON(c.Writer.Status(), gin.H{
				"message": http.StatusText(c.Writer.Status()),
			})
		}
	}
}

// StatusFor maps repository and query errors to HTTP statuses.
func StatusFor(err error) int {
	var bindErr *bindingError
	switch {
	case errors.Is(err, sietch.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, sietch.ErrItemAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, sietch.ErrInvalidQuery),
		errors.Is(err, predicate.ErrUnknownMember),
		errors.Is(err, predicate.ErrTypeMismatch),
		errors.As(err, &bindErr):
		return http.StatusBadRequest
	case errors.Is(err, sietch.ErrUnsupportedOperation):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// LoaderScopeMiddleware opens a loader.Scope per request and closes it when
// the request completes.
func LoaderScopeMiddleware(opts ...loader.ScopeOption) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := loader.NewScope(c.Request.Context(), opts...)
		defer scope.Close()

		c.Request = c.Request.WithContext(loader.WithScope(c.Request.Context(), scope))
		c.Next()
	}
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if err := c.Errors.Last(); err != nil {
			attrs = append(attrs, "error", err.Err)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request.Context(), "request", attrs...)
			return
		}
		logger.InfoContext(c.Request.Context(), "request", attrs...)
	}
}
