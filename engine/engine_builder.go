package engine

import (
	"time"

	"github.com/Carmen-Shannon/hello-triangle/engine/renderer"
	"github.com/Carmen-Shannon/hello-triangle/engine/surface"
	"github.com/Carmen-Shannon/hello-triangle/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow sets the window whose events the engine pumps and whose resizes it forwards.
// The renderer should have been created with the same window.
//
// Parameters:
//   - w: a spawned Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer the render loop drives. Required.
//
// Parameters:
//   - r: an initialized Renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithHost sets the surface host frames are rendered into.
// Without it the renderer's window host is used.
//
// Parameters:
//   - h: the host, e.g. an offscreen host for headless runs
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithHost(h surface.Host) EngineBuilderOption {
	return func(e *engine) {
		e.host = h
	}
}

// WithMaxFrames stops the engine after the given number of presented frames.
// Pass 0 to run until quit (default).
func WithMaxFrames(frames uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxFrames = frames
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameDuration(fps)
	}
}
