package sietch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newBufferedLogger(buf *bytes.Buffer) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestSlogLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("success at debug", func(t *testing.T) {
		var buf bytes.Buffer
		newBufferedLogger(&buf).LogQuery(ctx, "Query", `SELECT 1`, []any{1}, time.Millisecond, nil)
		out := buf.String()
		assert.Contains(t, out, "level=DEBUG")
		assert.Contains(t, out, "component=sietch")
		assert.Contains(t, out, "operation=Query")
	})

	t.Run("not found is not an error", func(t *testing.T) {
		var buf bytes.Buffer
		newBufferedLogger(&buf).LogOperation(ctx, "Find", "Widget", time.Millisecond, ErrItemNotFound)
		out := buf.String()
		assert.Contains(t, out, "level=DEBUG")
		assert.Contains(t, out, "entity=Widget")
		assert.Contains(t, out, "item not found")
	})

	t.Run("failures at error", func(t *testing.T) {
		var buf bytes.Buffer
		newBufferedLogger(&buf).LogOperation(ctx, "Save", "Widget", time.Millisecond, errors.New("boom"))
		assert.True(t, strings.Contains(buf.String(), "level=ERROR"), buf.String())
	})
}

func TestRepo_Logging(t *testing.T) {
	var buf bytes.Buffer
	repo, _ := newWidgetRepo(t, WithLogger(newBufferedLogger(&buf)))
	_, err := repo.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Contains(t, buf.String(), "operation=Find")
	assert.IsType(t, &SlogLogger{}, repo.GetLogger())
}
