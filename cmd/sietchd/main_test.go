package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := loadConfig(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, cfg *Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	return a
}

func do(t *testing.T, a *app, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeWidgets(t *testing.T, w *httptest.ResponseRecorder) []Widget {
	t.Helper()
	var widgets []Widget
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &widgets))
	return widgets
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg := memoryConfig(t)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, "memory", cfg.Storage.Backend)
		assert.Equal(t, "uuid", cfg.Keys.Generator)
		assert.Equal(t, 4, cfg.Loader.Workers)
		assert.False(t, cfg.Events.Enabled)
	})

	t.Run("file and environment", func(t *testing.T) {
		dir := t.TempDir()
		yaml := "storage:\n  backend: badger\n  badger_path: /var/lib/sietch\nloader:\n  workers: 8\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sietchd.yaml"), []byte(yaml), 0o644))
		t.Setenv("SIETCH_LOADER_WORKERS", "2")
		t.Setenv("SIETCH_EVENTS_ENABLED", "true")

		cfg, err := loadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, "badger", cfg.Storage.Backend)
		assert.Equal(t, "/var/lib/sietch", cfg.Storage.BadgerPath)
		assert.Equal(t, 2, cfg.Loader.Workers)
		assert.True(t, cfg.Events.Enabled)
		assert.Equal(t, 16, cfg.Loader.Queue)
	})
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(LogConfig{Level: "debug", Format: "json"})
	assert.NoError(t, err)
	_, err = newLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = newLogger(LogConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestApp_Widgets(t *testing.T) {
	a := newTestApp(t, memoryConfig(t))

	w := do(t, a, http.MethodPut, "/widgets/w1", Widget{Name: "A", Price: 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	do(t, a, http.MethodPut, "/widgets/w2", Widget{Name: "B", Price: 20})
	do(t, a, http.MethodPut, "/widgets/w3", Widget{Name: "C", Price: 15})

	w = do(t, a, http.MethodPut, "/widgets/w1", Widget{Name: "A", Price: 7})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, a, http.MethodGet, "/widgets?where=price:>:10&order=-price", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	widgets := decodeWidgets(t, w)
	require.Len(t, widgets, 2)
	assert.Equal(t, "B", widgets[0].Name)
	assert.Equal(t, "C", widgets[1].Name)

	w = do(t, a, http.MethodGet, "/widgets/w1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var one Widget
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, 7.0, one.Price)

	w = do(t, a, http.MethodDelete, "/widgets/w1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, a, http.MethodGet, "/widgets/w1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, a, http.MethodGet, "/widgets?where=colour:=:red", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, a, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sietch_operation_duration_seconds")
	assert.Contains(t, w.Body.String(), "sietch_loader_batches_total")

	w = do(t, a, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestApp_ULIDKeysAndEvents(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Keys.Generator = "ulid"
	cfg.Events.Enabled = true
	a := newTestApp(t, cfg)

	w := do(t, a, http.MethodGet, "/widgets/defaults", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var created Widget
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	_, err := ulid.ParseStrict(created.ID)
	assert.NoError(t, err)
}

func TestApp_JSONBackend(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.Backend = "json"
	cfg.Storage.ResourcesPath = t.TempDir()

	a := newTestApp(t, cfg)
	w := do(t, a, http.MethodPut, "/widgets/w1", Widget{Name: "A", Price: 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data, err := os.ReadFile(filepath.Join(cfg.Storage.ResourcesPath, "Widget.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "A"`)
}

func TestApp_BadgerBackend(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.Backend = "badger"

	a := newTestApp(t, cfg)
	do(t, a, http.MethodPut, "/widgets/w2", Widget{Name: "B", Price: 20})
	do(t, a, http.MethodPut, "/widgets/w1", Widget{Name: "A", Price: 5})

	w := do(t, a, http.MethodGet, "/widgets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	widgets := decodeWidgets(t, w)
	require.Len(t, widgets, 2)
	assert.Equal(t, "w1", widgets[0].ID)
}

func TestApp_Misconfigured(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.Backend = "tape"
	_, err := newApp(context.Background(), cfg, quietLogger())
	assert.ErrorContains(t, err, `unknown storage backend "tape"`)

	cfg = memoryConfig(t)
	cfg.Keys.Generator = "sequence"
	_, err = newApp(context.Background(), cfg, quietLogger())
	assert.ErrorContains(t, err, `unknown key generator "sequence"`)
}

func TestSchemaCommand(t *testing.T) {
	var out bytes.Buffer
	app := &cli.App{
		Writer:   &out,
		Commands: []*cli.Command{{Name: "schema", Action: schemaCommand}},
	}
	require.NoError(t, app.Run([]string{"sietchd", "schema"}))

	ddl := out.String()
	assert.True(t, strings.HasPrefix(ddl, `CREATE TABLE IF NOT EXISTS "widgets"`), ddl)
	assert.Contains(t, ddl, `"id" TEXT PRIMARY KEY`)
	assert.Contains(t, ddl, `"price" FLOAT8 NOT NULL`)
}
