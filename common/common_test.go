package common

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]float32{}))
	b := SliceToBytes([]uint32{1, 2})
	require.Len(t, b, 8)
}

func TestBGRAToRGBA(t *testing.T) {
	px := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	BGRAToRGBA(px)
	assert.Equal(t, []byte{3, 2, 1, 4, 7, 6, 5, 8}, px)
}

func TestLoggerDefaultsToSilent(t *testing.T) {
	require.NotNil(t, Logger())
	assert.False(t, Logger().Enabled(t.Context(), slog.LevelError))
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(nil)

	Logger().Info("adapter selected", "name", "test")
	assert.Contains(t, buf.String(), "adapter selected")

	SetLogger(nil)
	Logger().Info("dropped")
	assert.NotContains(t, buf.String(), "dropped")
}
