package sl_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evently/apiserver/internal/lib/sl"
)

func TestErr_ReturnsErrorAttr(t *testing.T) {
	attr := sl.Err(errors.New("upload failed"))

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("upload failed"), attr.Value)
}

func TestNew_LevelsByEnv(t *testing.T) {
	ctx := t.Context()

	assert.True(t, sl.New("local").Enabled(ctx, slog.LevelDebug))
	assert.True(t, sl.New("dev").Enabled(ctx, slog.LevelDebug))
	assert.False(t, sl.New("prod").Enabled(ctx, slog.LevelDebug))
	assert.True(t, sl.New("prod").Enabled(ctx, slog.LevelInfo))
}
