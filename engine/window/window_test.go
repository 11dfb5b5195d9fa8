package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowDefaults(t *testing.T) {
	w := newEngineWindow(WithTitle(""))
	assert.Equal(t, "Hello Triangle", w.title)
	assert.True(t, w.resizable)
	assert.True(t, w.closeOnEscape)

	width, height := w.FramebufferSize()
	assert.Equal(t, 800, width)
	assert.Equal(t, 600, height)
	assert.Equal(t, 1.0, w.ScaleFactor())
}

func TestWindowOptions(t *testing.T) {
	w := newEngineWindow(
		WithTitle("Triangle"),
		WithSize(100, 5000),
		WithMinSize(320, 240),
		WithMaxSize(1920, 1080),
		WithResizable(false),
		WithCloseOnEscape(false),
	)
	assert.Equal(t, "Triangle", w.title)
	assert.False(t, w.resizable)
	assert.False(t, w.closeOnEscape)
	assert.Equal(t, 320, w.Width(), "clamped to min width")
	assert.Equal(t, 1080, w.Height(), "clamped to max height")
}

func TestWindowUnboundedMax(t *testing.T) {
	w := newEngineWindow(WithMaxSize(0, 0), WithSize(5000, 4000))
	assert.Equal(t, 5000, w.Width())
	assert.Equal(t, 4000, w.Height())
}

func TestWindowResizeCallback(t *testing.T) {
	w := newEngineWindow(WithSize(400, 300))

	var got [][2]int
	w.SetResizeCallback(func(width, height int) {
		got = append(got, [2]int{width, height})
	})

	w.framebufferResized(0, 0)
	w.framebufferResized(1280, 720)
	assert.Equal(t, [][2]int{{0, 0}, {1280, 720}}, got)

	width, height := w.FramebufferSize()
	assert.Equal(t, 1280, width)
	assert.Equal(t, 720, height)
}

func TestWindowScaleFactor(t *testing.T) {
	w := newEngineWindow(WithSize(400, 300))
	w.windowResized(400)
	w.framebufferResized(800, 600)

	assert.Equal(t, 2.0, w.ScaleFactor())
	lw, lh := w.Size()
	assert.Equal(t, 400, lw)
	assert.Equal(t, 300, lh)
}

func TestWindowKeyCallbacks(t *testing.T) {
	w := newEngineWindow()
	w.keyPressed(1) // no callback set

	var down, up []uint32
	w.SetKeyDownCallback(func(k uint32) { down = append(down, k) })
	w.SetKeyUpCallback(func(k uint32) { up = append(up, k) })
	w.keyPressed(81)
	w.keyReleased(81)
	assert.Equal(t, []uint32{81}, down)
	assert.Equal(t, []uint32{81}, up)
}

func TestWindowNotSpawned(t *testing.T) {
	w := newEngineWindow()
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	require.ErrorIs(t, w.Close(), ErrNotInitialized)

	_, _, err := w.NativeHandles()
	assert.ErrorIs(t, err, ErrNotInitialized)

	// returns immediately without a platform window
	w.ProcessMessages()
	w.RequestRedraw()
	w.RequestClose()
}
