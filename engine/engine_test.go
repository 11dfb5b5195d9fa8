package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/hello-triangle/engine/renderer"
	"github.com/Carmen-Shannon/hello-triangle/engine/surface"
	"github.com/gogpu/gputypes"
	_ "github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeadless(t *testing.T) (renderer.Renderer, surface.OffscreenHost) {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeHAL,
		renderer.WithHALBackends(gputypes.BackendEmpty),
		renderer.WithFeatureTier(renderer.FeatureTierHeadless),
	)
	require.NoError(t, err)
	t.Cleanup(r.Release)

	host, err := r.NewOffscreenHost(32, 32)
	require.NoError(t, err)
	t.Cleanup(host.Release)
	return r, host
}

func TestNewEngineRequiresRenderer(t *testing.T) {
	_, err := NewEngine()
	assert.ErrorIs(t, err, ErrNoRenderer)
}

func TestNewEngineRequiresHost(t *testing.T) {
	r, _ := newHeadless(t)
	_, err := NewEngine(WithRenderer(r))
	assert.ErrorIs(t, err, ErrNoHost)
}

func TestEngineHeadlessMaxFrames(t *testing.T) {
	r, host := newHeadless(t)

	var results []renderer.FrameResult
	e, err := NewEngine(WithRenderer(r), WithHost(host), WithMaxFrames(5), WithProfiling(true))
	require.NoError(t, err)
	e.SetRenderCallback(func(_ float32, result renderer.FrameResult) {
		results = append(results, result)
	})

	e.Run()

	require.Len(t, results, 5)
	for i, res := range results {
		assert.Equal(t, renderer.FramePresented, res.Outcome)
		assert.Equal(t, uint64(i), res.Frame)
	}
	assert.Equal(t, uint64(5), r.Stats().Presented)
	assert.Equal(t, uint64(5), host.Presented())
	assert.Equal(t, renderer.FrameStateIdle, r.State())
	assert.Same(t, host, e.Host())
	assert.Nil(t, e.Window())
}

func TestEngineQuitFromCallback(t *testing.T) {
	r, host := newHeadless(t)

	e, err := NewEngine(WithRenderer(r), WithHost(host))
	require.NoError(t, err)

	var frames atomic.Int32
	e.SetRenderCallback(func(float32, renderer.FrameResult) {
		if frames.Add(1) == 3 {
			e.Quit()
			e.Quit()
		}
	})

	e.Run()
	assert.Equal(t, int32(3), frames.Load())
	assert.Equal(t, uint64(3), r.Stats().Presented)
}

func TestEngineStopsOnReleasedRenderer(t *testing.T) {
	r, host := newHeadless(t)
	e, err := NewEngine(WithRenderer(r), WithHost(host))
	require.NoError(t, err)

	called := false
	e.SetRenderCallback(func(float32, renderer.FrameResult) { called = true })
	host.Release()
	r.Release()

	e.Run()
	assert.False(t, called)
}

func TestEngineRecoversFromPanic(t *testing.T) {
	r, host := newHeadless(t)
	e, err := NewEngine(WithRenderer(r), WithHost(host))
	require.NoError(t, err)
	e.SetRenderCallback(func(float32, renderer.FrameResult) { panic("boom") })

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after panic")
	}
	assert.Equal(t, uint64(1), r.Stats().Presented)
}

func TestEngineResizeForwardsToHost(t *testing.T) {
	r, host := newHeadless(t)
	e, err := NewEngine(WithRenderer(r), WithHost(host))
	require.NoError(t, err)
	eng := e.(*engine)

	eng.resize(0, 0)
	res := r.RenderFrame(host)
	assert.Equal(t, renderer.FrameSkipped, res.Outcome)
	assert.Equal(t, renderer.SkipNoImage, res.Skip)

	eng.resize(64, 16)
	w, h := host.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 16, h)
	assert.Equal(t, renderer.FramePresented, r.RenderFrame(host).Outcome)
	assert.Equal(t, renderer.FrameStateIdle, r.State())
}

func TestEngineTickCallback(t *testing.T) {
	r, host := newHeadless(t)
	e, err := NewEngine(WithRenderer(r), WithHost(host), WithTickRate(500), WithRenderFrameLimit(200))
	require.NoError(t, err)

	var ticks atomic.Int32
	e.SetTickCallback(func(dt float32) {
		assert.Greater(t, dt, float32(0))
		if ticks.Add(1) == 3 {
			e.Quit()
		}
	})

	e.Run()
	assert.GreaterOrEqual(t, ticks.Load(), int32(3))
}

func TestEngineSetters(t *testing.T) {
	r, host := newHeadless(t)
	e, err := NewEngine(WithRenderer(r), WithHost(host))
	require.NoError(t, err)
	eng := e.(*engine)

	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, eng.engineTickRate)
	e.SetTickRate(120)
	assert.Equal(t, time.Second/120, eng.engineTickRate)

	e.SetRenderFrameLimit(0)
	assert.Zero(t, eng.renderFrameLimit)
	e.SetRenderFrameLimit(50)
	assert.Equal(t, 20*time.Millisecond, eng.renderFrameLimit)

	e.EnableProfiler()
	assert.True(t, eng.profilingEnabled.Load())
	e.DisableProfiler()
	assert.False(t, eng.profilingEnabled.Load())
	assert.Same(t, r, e.Renderer())
}
