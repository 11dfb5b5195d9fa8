package surface

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"

	"github.com/Carmen-Shannon/hello-triangle/common"
)

// wgpuHost is the implementation of Host for WebGPU window surfaces.
type wgpuHost struct {
	mu sync.Mutex

	cfg     hostConfig
	adapter *wgpu.Adapter
	device  *wgpu.Device
	surface *wgpu.Surface

	format      wgpu.TextureFormat
	alphaMode   wgpu.CompositeAlphaMode
	presentMode wgpu.PresentMode

	width, height int
	dirty         bool

	current *wgpuImage
}

var _ Host = &wgpuHost{}

// wgpuImage is a swapchain texture acquired from a wgpuHost.
type wgpuImage struct {
	host       *wgpuHost
	texture    *wgpu.Texture
	view       *wgpu.TextureView
	submission uint64
	signaled   bool
	done       bool
}

var _ PresentableImage = &wgpuImage{}

// NewWGPUHost creates a Host presenting to a WebGPU window surface.
//
// Parameters:
//   - adapter: the adapter the device was requested from
//   - device: the device rendering into the surface
//   - surface: the window surface, owned by the host from now on
//   - width: the initial drawable width in pixels
//   - height: the initial drawable height in pixels
//   - options: variadic list of HostBuilderOption functions to configure the Host
//
// Returns:
//   - Host: the window host
//   - error: ErrUnsupportedFormat if the surface cannot present the requested format
func NewWGPUHost(adapter *wgpu.Adapter, device *wgpu.Device, surface *wgpu.Surface, width, height int, options ...HostBuilderOption) (Host, error) {
	cfg := defaultHostConfig()
	for _, opt := range options {
		opt(&cfg)
	}

	format, ok := ToWGPUTextureFormat(cfg.format)
	capabilities := surface.GetCapabilities(adapter)
	if !ok || !slices.Contains(capabilities.Formats, format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.format)
	}

	h := &wgpuHost{
		cfg:         cfg,
		adapter:     adapter,
		device:      device,
		surface:     surface,
		format:      format,
		presentMode: toWGPUPresentMode(cfg.presentMode),
		width:       width,
		height:      height,
		dirty:       true,
	}
	if len(capabilities.AlphaModes) > 0 {
		h.alphaMode = capabilities.AlphaModes[0]
	}
	return h, nil
}

// ToWGPUTextureFormat maps the color formats used by the engine onto their WebGPU equivalents.
//
// Parameters:
//   - f: the texture format
//
// Returns:
//   - wgpu.TextureFormat: the WebGPU format
//   - bool: false if the format has no mapping
func ToWGPUTextureFormat(f gputypes.TextureFormat) (wgpu.TextureFormat, bool) {
	switch f {
	case gputypes.TextureFormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm, true
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return wgpu.TextureFormatBGRA8UnormSrgb, true
	case gputypes.TextureFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm, true
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb, true
	default:
		return wgpu.TextureFormatUndefined, false
	}
}

func toWGPUPresentMode(m gputypes.PresentMode) wgpu.PresentMode {
	switch m {
	case gputypes.PresentModeImmediate:
		return wgpu.PresentModeImmediate
	case gputypes.PresentModeMailbox:
		return wgpu.PresentModeMailbox
	default:
		return wgpu.PresentModeFifo
	}
}

func (h *wgpuHost) OnSizeChanged(width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if width == h.width && height == h.height {
		return
	}
	h.width, h.height = width, height
	h.dirty = true
}

func (h *wgpuHost) reconfigure() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return true
	}
	if h.width <= 0 || h.height <= 0 {
		return false
	}
	h.surface.Configure(h.adapter, h.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      h.format,
		Width:       uint32(h.width),
		Height:      uint32(h.height),
		PresentMode: h.presentMode,
		AlphaMode:   h.alphaMode,
	})
	common.Logger().Debug("surface configured", "label", h.cfg.label, "width", h.width, "height", h.height)
	h.dirty = false
	return true
}

func (h *wgpuHost) NextPresentableImage() PresentableImage {
	if h.current != nil {
		h.current.Discard()
	}
	if !h.reconfigure() {
		return nil
	}

	texture, err := h.surface.GetCurrentTexture()
	if err != nil {
		// outdated or lost swapchains recover after a reconfigure
		common.Logger().Debug("surface acquire failed", "label", h.cfg.label, "err", err)
		h.mu.Lock()
		h.dirty = true
		h.mu.Unlock()
		return nil
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		common.Logger().Warn("surface view creation failed", "label", h.cfg.label, "err", err)
		return nil
	}

	h.current = &wgpuImage{host: h, texture: texture, view: view}
	return h.current
}

func (h *wgpuHost) CurrentRenderPassDescriptor() *RenderPassDescriptor {
	if h.current == nil || h.current.done {
		return nil
	}
	h.mu.Lock()
	w, ht := h.width, h.height
	h.mu.Unlock()
	return DefaultRenderPass(h.cfg.label+" Pass", WGPUTextureView(h.current.view), h.cfg.format, uint32(w), uint32(ht))
}

func (h *wgpuHost) Release() {
	if h.current != nil {
		h.current.Discard()
	}
	h.surface.Release()
}

func (i *wgpuImage) Signal(submission uint64) {
	i.submission = submission
	i.signaled = true
}

func (i *wgpuImage) Present() error {
	if i.done {
		return ErrImageFinished
	}
	if !i.signaled {
		return fmt.Errorf("surface: present before signal")
	}
	i.host.surface.Present()
	i.finish()
	return nil
}

func (i *wgpuImage) Discard() {
	if i.done {
		return
	}
	i.finish()
}

func (i *wgpuImage) finish() {
	i.done = true
	i.view.Release()
	i.texture.Release()
	if i.host.current == i {
		i.host.current = nil
	}
}
