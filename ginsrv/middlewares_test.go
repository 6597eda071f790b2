package ginsrv

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"

	"github.com/seb7887/gofw/loader"
	"github.com/seb7887/gofw/sietch"
)

func TestErrorFormatterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		handler        gin.HandlerFunc
		expectedBody   string
		expectedStatus int
	}{
		{
			name:           "No error, should pass through",
			handler:        func(c *gin.Context) { c.Status(http.StatusOK) },
			expectedBody:   ``,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Bare status is described",
			handler:        func(c *gin.Context) { c.Status(http.StatusForbidden) },
			expectedBody:   `{"message":"Forbidden"}`,
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "Missing item",
			handler: func(c *gin.Context) {
				_ = c.Error(fmt.Errorf("widget w9: %w", sietch.ErrItemNotFound))
			},
			expectedBody:   `{"error":"widget w9: item not found","message":"Not Found"}`,
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "Unexpected failure",
			handler: func(c *gin.Context) {
				_ = c.Error(fmt.Errorf("disk on fire"))
			},
			expectedBody:   `{"error":"disk on fire","message":"Internal Server Error"}`,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name: "Handler response wins",
			handler: func(c *gin.Context) {
				_ = c.Error(sietch.ErrItemNotFound)
				c.String(http.StatusTeapot, "short and stout")
			},
			expectedBody:   `short and stout`,
			expectedStatus: http.StatusTeapot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(ErrorFormatterMiddleware())
			router.GET("/test", tt.handler)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestLoaderScopeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen *loader.Scope
	var scopeCtx context.Context
	router := gin.New()
	router.Use(LoaderScopeMiddleware())
	router.GET("/test", func(c *gin.Context) {
		s, ok := loader.FromContext(c.Request.Context())
		assert.Equal(t, true, ok)
		seen, scopeCtx = s, s.Context()
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEqual(t, nil, seen)
	// the scope ends with the request
	assert.Equal(t, loader.ErrScopeClosed, context.Cause(scopeCtx))
}

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := gin.New()
	router.Use(LoggerMiddleware(logger), ErrorFormatterMiddleware())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/broken", func(c *gin.Context) { _ = c.Error(fmt.Errorf("boom")) })

	for _, path := range []string{"/ok", "/broken"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 2, len(lines))
	assert.Equal(t, true, strings.Contains(lines[0], "level=INFO"))
	assert.Equal(t, true, strings.Contains(lines[0], "component=http"))
	assert.Equal(t, true, strings.Contains(lines[0], "path=/ok status=200"))
	assert.Equal(t, true, strings.Contains(lines[1], "level=ERROR"))
	assert.Equal(t, true, strings.Contains(lines[1], "status=500"))
	assert.Equal(t, true, strings.Contains(lines[1], "error=boom"))
}
