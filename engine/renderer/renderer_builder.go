package renderer

import (
	"github.com/gogpu/gputypes"

	"github.com/Carmen-Shannon/hello-triangle/common"
	"github.com/Carmen-Shannon/hello-triangle/engine/model"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/shader"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLabel sets the prefix used to label the renderer's device objects.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - RendererBuilderOption: a function that applies the label option to a renderer
func WithLabel(label string) RendererBuilderOption {
	return func(r *renderer) {
		r.label = common.Coalesce(label, r.label)
	}
}

// WithFeatureTier sets the minimum capability set an adapter must offer to be selected.
// Defaults to FeatureTierExplicit.
//
// Parameters:
//   - tier: the feature tier
//
// Returns:
//   - RendererBuilderOption: a function that applies the feature tier option to a renderer
func WithFeatureTier(tier FeatureTier) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg.tier = tier
	}
}

// WithHALBackends restricts device selection to the given registered HAL backends, in order.
// When not specified, every registered backend is enumerated.
//
// Parameters:
//   - backends: the backend variants to enumerate
//
// Returns:
//   - RendererBuilderOption: a function that applies the backends option to a renderer
func WithHALBackends(backends ...gputypes.Backend) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg.halBackends = backends
	}
}

// WithWindow sets the window the renderer presents to. Without a window the renderer is headless
// and frames are rendered through hosts created by the caller.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - RendererBuilderOption: a function that applies the window option to a renderer
func WithWindow(w Window) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg.window = w
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithShaderLibrary replaces the embedded shader library.
// The library must provide vertex_main and fragment_main.
//
// Parameters:
//   - library: the shader library
//
// Returns:
//   - RendererBuilderOption: a function that applies the library option to a renderer
func WithShaderLibrary(library shader.Library) RendererBuilderOption {
	return func(r *renderer) {
		r.library = library
	}
}

// WithModel replaces the geometry the renderer draws.
//
// Parameters:
//   - m: the model
//
// Returns:
//   - RendererBuilderOption: a function that applies the model option to a renderer
func WithModel(m model.Model) RendererBuilderOption {
	return func(r *renderer) {
		r.model = m
	}
}

// WithColorFormat sets the color format of the pipeline and of every host the renderer creates.
// Defaults to gputypes.TextureFormatBGRA8Unorm.
//
// Parameters:
//   - format: the color format
//
// Returns:
//   - RendererBuilderOption: a function that applies the color format option to a renderer
func WithColorFormat(format gputypes.TextureFormat) RendererBuilderOption {
	return func(r *renderer) {
		r.colorFormat = format
	}
}

// WithStateObserver registers a callback invoked on every frame state transition.
// The callback runs with the renderer locked and must not call back into it.
//
// Parameters:
//   - observer: the transition callback
//
// Returns:
//   - RendererBuilderOption: a function that applies the observer option to a renderer
func WithStateObserver(observer func(from, to FrameState)) RendererBuilderOption {
	return func(r *renderer) {
		r.observer = observer
	}
}

// WithForceSoftwareRenderer prefers CPU/software adapters over hardware GPU acceleration.
// Useful for benchmarking CPU vs GPU rendering performance.
//
// Parameters:
//   - force: true to prefer software adapters, false to prefer hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg.forceSoftware = force
	}
}
