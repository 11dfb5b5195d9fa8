package surface

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/Carmen-Shannon/hello-triangle/common"
)

// ErrUnsupportedFormat is returned when a surface cannot present the requested color format.
var ErrUnsupportedFormat = errors.New("surface: format not supported")

// halHost is the implementation of Host for window surfaces driven through the HAL.
type halHost struct {
	mu sync.Mutex

	cfg     hostConfig
	device  hal.Device
	queue   hal.Queue
	surface hal.Surface
	config  hal.SurfaceConfiguration

	width, height int
	dirty         bool
	configured    bool

	current *halImage
}

var _ Host = &halHost{}

// halImage is a swapchain image acquired from a halHost.
type halImage struct {
	host       *halHost
	texture    hal.SurfaceTexture
	view       hal.TextureView
	submission uint64
	signaled   bool
	done       bool
}

var _ PresentableImage = &halImage{}

// NewHALHost creates a Host presenting to a HAL window surface.
// The surface is configured on the first acquire, and again after every size change.
//
// Parameters:
//   - adapter: the adapter the device was opened from, used to query surface capabilities
//   - device: the device rendering into the surface
//   - queue: the queue presenting the surface
//   - surface: the window surface, owned by the host from now on
//   - width: the initial drawable width in pixels
//   - height: the initial drawable height in pixels
//   - options: variadic list of HostBuilderOption functions to configure the Host
//
// Returns:
//   - Host: the window host
//   - error: ErrUnsupportedFormat if the surface cannot present the requested format
func NewHALHost(adapter hal.Adapter, device hal.Device, queue hal.Queue, surface hal.Surface, width, height int, options ...HostBuilderOption) (Host, error) {
	cfg := defaultHostConfig()
	for _, opt := range options {
		opt(&cfg)
	}

	caps := adapter.SurfaceCapabilities(surface)
	if caps == nil || !slices.Contains(caps.Formats, cfg.format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.format)
	}

	presentMode := cfg.presentMode
	if !slices.Contains(caps.PresentModes, presentMode) {
		presentMode = hal.PresentModeFifo
	}
	alphaMode := hal.CompositeAlphaModeOpaque
	if len(caps.AlphaModes) > 0 && !slices.Contains(caps.AlphaModes, alphaMode) {
		alphaMode = caps.AlphaModes[0]
	}

	return &halHost{
		cfg:     cfg,
		device:  device,
		queue:   queue,
		surface: surface,
		config: hal.SurfaceConfiguration{
			Format:      cfg.format,
			Usage:       gputypes.TextureUsageRenderAttachment,
			PresentMode: presentMode,
			AlphaMode:   alphaMode,
		},
		width:  width,
		height: height,
		dirty:  true,
	}, nil
}

func (h *halHost) OnSizeChanged(width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if width == h.width && height == h.height {
		return
	}
	h.width, h.height = width, height
	h.dirty = true
}

// reconfigure applies a pending size change. It reports false while the surface has no area.
func (h *halHost) reconfigure() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return h.configured
	}
	if h.width <= 0 || h.height <= 0 {
		return false
	}

	h.config.Width = uint32(h.width)
	h.config.Height = uint32(h.height)
	if err := h.surface.Configure(h.device, &h.config); err != nil {
		if !errors.Is(err, hal.ErrZeroArea) {
			common.Logger().Warn("surface configure failed", "label", h.cfg.label, "err", err)
		}
		h.configured = false
		return false
	}
	common.Logger().Debug("surface configured", "label", h.cfg.label, "width", h.width, "height", h.height)
	h.dirty = false
	h.configured = true
	return true
}

func (h *halHost) markDirty() {
	h.mu.Lock()
	h.dirty = true
	h.mu.Unlock()
}

func (h *halHost) NextPresentableImage() PresentableImage {
	if h.current != nil {
		// the previous frame never returned its image
		h.current.Discard()
	}
	if !h.reconfigure() {
		return nil
	}

	acquired, err := h.surface.AcquireTexture(nil)
	switch {
	case err == nil:
	case errors.Is(err, hal.ErrSurfaceOutdated):
		h.markDirty()
		return nil
	case errors.Is(err, hal.ErrNotReady), errors.Is(err, hal.ErrTimeout):
		return nil
	default:
		common.Logger().Warn("surface acquire failed", "label", h.cfg.label, "err", err)
		return nil
	}
	if acquired.Suboptimal {
		h.markDirty()
	}

	view, err := h.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:           h.cfg.label + " View",
		Format:          h.config.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		h.surface.DiscardTexture(acquired.Texture)
		common.Logger().Warn("surface view creation failed", "label", h.cfg.label, "err", err)
		return nil
	}

	h.current = &halImage{host: h, texture: acquired.Texture, view: view}
	return h.current
}

func (h *halHost) CurrentRenderPassDescriptor() *RenderPassDescriptor {
	if h.current == nil || h.current.done {
		return nil
	}
	return DefaultRenderPass(h.cfg.label+" Pass", HALTextureView(h.current.view), h.config.Format, h.config.Width, h.config.Height)
}

func (h *halHost) Release() {
	if h.current != nil {
		h.current.Discard()
	}
	if h.configured {
		h.surface.Unconfigure(h.device)
		h.configured = false
	}
	h.surface.Destroy()
}

func (i *halImage) Signal(submission uint64) {
	i.submission = submission
	i.signaled = true
}

func (i *halImage) Present() error {
	if i.done {
		return ErrImageFinished
	}
	if !i.signaled {
		return fmt.Errorf("surface: present before signal")
	}
	err := i.host.queue.Present(i.host.surface, i.texture, nil)
	i.finish()
	if errors.Is(err, hal.ErrSurfaceOutdated) {
		i.host.markDirty()
		return nil
	}
	return err
}

func (i *halImage) Discard() {
	if i.done {
		return
	}
	i.host.surface.DiscardTexture(i.texture)
	i.finish()
}

func (i *halImage) finish() {
	i.done = true
	i.host.device.DestroyTextureView(i.view)
	if i.host.current == i {
		i.host.current = nil
	}
}
