package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "docjournal/internal/core/context"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docjournal.log")

	l, err := New(Config{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "u-7"})
	l.WithContext(ctx).WithComponent("test").Infow("numbers reserved", "count", 3)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"numbers reserved"`)
	assert.Contains(t, string(data), `"trace_id":"t-1"`)
	assert.Contains(t, string(data), `"user_id":"u-7"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.log")

	l, err := New(Config{Level: "chatty", File: path})
	require.NoError(t, err)

	l.Debugw("hidden")
	l.Infow("shown")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestFromContext_PrefersContextLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	l, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), l)
	Info(ctx, "via context")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "via context")
}
