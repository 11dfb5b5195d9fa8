package surface

import "github.com/gogpu/gputypes"

// hostConfig holds the settings shared by every Host implementation.
type hostConfig struct {
	label       string
	format      gputypes.TextureFormat
	presentMode gputypes.PresentMode

	readbackWorkers int
}

func defaultHostConfig() hostConfig {
	return hostConfig{
		label:       "Surface",
		format:      gputypes.TextureFormatBGRA8Unorm,
		presentMode: gputypes.PresentModeFifo,
	}
}

// HostBuilderOption is a functional option for configuring a Host.
type HostBuilderOption func(*hostConfig)

// WithLabel is an option builder that sets the label used for the host's device objects and render passes.
//
// Parameters:
//   - label: the host label
//
// Returns:
//   - HostBuilderOption: a function that applies the label option to a host
func WithLabel(label string) HostBuilderOption {
	return func(c *hostConfig) {
		c.label = label
	}
}

// WithFormat is an option builder that sets the color format of the host's images.
// Defaults to gputypes.TextureFormatBGRA8Unorm.
//
// Parameters:
//   - format: the color format
//
// Returns:
//   - HostBuilderOption: a function that applies the format option to a host
func WithFormat(format gputypes.TextureFormat) HostBuilderOption {
	return func(c *hostConfig) {
		c.format = format
	}
}

// WithPresentMode is an option builder that sets how window hosts deliver frames to the display.
// Defaults to gputypes.PresentModeFifo. Offscreen hosts ignore it.
//
// Parameters:
//   - mode: the present mode
//
// Returns:
//   - HostBuilderOption: a function that applies the present mode option to a host
func WithPresentMode(mode gputypes.PresentMode) HostBuilderOption {
	return func(c *hostConfig) {
		c.presentMode = mode
	}
}

// WithReadbackWorkers is an option builder that sets how many goroutines an offscreen host uses
// to convert snapshot rows. Values below 2 convert on the calling goroutine.
// Window hosts ignore it.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - HostBuilderOption: a function that applies the worker count to a host
func WithReadbackWorkers(n int) HostBuilderOption {
	return func(c *hostConfig) {
		c.readbackWorkers = n
	}
}
