package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormats(t *testing.T) {
	for _, format := range []string{"text", "json", "human", ""} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(&buf, format, slog.LevelInfo)
			require.NoError(t, err)
			ForService(l, "web", "abc123").Info("No image updates found!")
			assert.Contains(t, buf.String(), "No image updates found!")
			assert.Contains(t, buf.String(), "web")
		})
	}

	_, err := New(&bytes.Buffer{}, "xml", slog.LevelInfo)
	assert.Error(t, err)
}

func TestHumanHandler(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "human", slog.LevelInfo)
	require.NoError(t, err)

	ForService(l, "web", "abc123").Info("Update found!", "image", "app:stable")
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INFO: web - Update found! image=app:stable")
	assert.NotContains(t, out, "abc123")
	assert.NotContains(t, out, "hidden")
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Level(true))
	assert.Equal(t, slog.LevelInfo, Level(false))
}

func TestContext(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
