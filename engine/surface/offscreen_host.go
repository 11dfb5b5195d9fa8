package surface

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/Carmen-Shannon/hello-triangle/common"
)

// ErrNothingPresented is returned by Snapshot before the first image has been presented.
var ErrNothingPresented = errors.New("surface: nothing presented yet")

// copyPitchAlignment is the row pitch alignment required for texture to buffer copies.
const copyPitchAlignment = 256

// maxReadbackWorkers caps the default number of goroutines converting snapshot rows.
const maxReadbackWorkers = 8

// OffscreenHost is a Host rendering into a device texture instead of a window.
type OffscreenHost interface {
	Host

	// Size returns the current target size in pixels.
	//
	// Returns:
	//   - int: the width
	//   - int: the height
	Size() (int, int)

	// Presented returns how many images have been presented.
	//
	// Returns:
	//   - uint64: the number of presents
	Presented() uint64

	// Snapshot reads the last presented image back from the device.
	// Blocks until the device is idle.
	//
	// Returns:
	//   - *image.RGBA: the image in RGBA order
	//   - error: ErrNothingPresented before the first present, or any device error
	Snapshot() (*image.RGBA, error)
}

// offscreenHost is the implementation of the OffscreenHost interface.
type offscreenHost struct {
	mu sync.Mutex

	cfg    hostConfig
	device hal.Device
	queue  hal.Queue

	width, height int
	dirty         bool

	texture  hal.Texture
	view     hal.TextureView
	readback hal.Buffer
	pitch    uint32

	current   *offscreenImage
	presented uint64

	// pool converts snapshot rows in bands; nil converts on the calling goroutine.
	pool worker.DynamicWorkerPool
}

var _ OffscreenHost = &offscreenHost{}

// offscreenImage is the single render target of an offscreenHost, handed out once per frame.
type offscreenImage struct {
	host       *offscreenHost
	submission uint64
	signaled   bool
	done       bool
}

var _ PresentableImage = &offscreenImage{}

// NewOffscreenHost creates a Host that renders into a texture owned by the host.
//
// Parameters:
//   - device: the device rendering into the texture
//   - queue: the queue used for readback submissions
//   - width: the target width in pixels
//   - height: the target height in pixels
//   - options: variadic list of HostBuilderOption functions to configure the Host
//
// Returns:
//   - OffscreenHost: the offscreen host
//   - error: any device error while creating the target
func NewOffscreenHost(device hal.Device, queue hal.Queue, width, height int, options ...HostBuilderOption) (OffscreenHost, error) {
	cfg := defaultHostConfig()
	cfg.label = "Offscreen"
	cfg.readbackWorkers = min(runtime.GOMAXPROCS(0), maxReadbackWorkers)
	for _, opt := range options {
		opt(&cfg)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("surface: invalid offscreen size %dx%d", width, height)
	}

	h := &offscreenHost{
		cfg:    cfg,
		device: device,
		queue:  queue,
		width:  width,
		height: height,
	}
	if err := h.createTarget(); err != nil {
		return nil, err
	}
	if cfg.readbackWorkers > 1 {
		h.pool = worker.NewDynamicWorkerPool(cfg.readbackWorkers, cfg.readbackWorkers, time.Second)
	}
	return h, nil
}

func (h *offscreenHost) createTarget() error {
	tex, err := h.device.CreateTexture(&hal.TextureDescriptor{
		Label: h.cfg.label + " Target",
		Size: hal.Extent3D{
			Width:              uint32(h.width),
			Height:             uint32(h.height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        h.cfg.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("surface: create offscreen target: %w", err)
	}

	view, err := h.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           h.cfg.label + " View",
		Format:          h.cfg.format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		h.device.DestroyTexture(tex)
		return fmt.Errorf("surface: create offscreen view: %w", err)
	}

	pitch := alignUp(uint32(h.width)*4, copyPitchAlignment)
	buf, err := h.device.CreateBuffer(&hal.BufferDescriptor{
		Label: h.cfg.label + " Readback",
		Size:  uint64(pitch) * uint64(h.height),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		h.device.DestroyTextureView(view)
		h.device.DestroyTexture(tex)
		return fmt.Errorf("surface: create readback buffer: %w", err)
	}

	h.texture, h.view, h.readback, h.pitch = tex, view, buf, pitch
	return nil
}

func (h *offscreenHost) destroyTarget() {
	if h.readback != nil {
		h.device.DestroyBuffer(h.readback)
		h.readback = nil
	}
	if h.view != nil {
		h.device.DestroyTextureView(h.view)
		h.view = nil
	}
	if h.texture != nil {
		h.device.DestroyTexture(h.texture)
		h.texture = nil
	}
}

func (h *offscreenHost) OnSizeChanged(width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if width == h.width && height == h.height {
		return
	}
	h.width, h.height = width, height
	h.dirty = true
}

func (h *offscreenHost) NextPresentableImage() PresentableImage {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil && !h.current.done {
		h.current.done = true
	}
	if h.dirty {
		if h.width <= 0 || h.height <= 0 {
			return nil
		}
		if err := h.device.WaitIdle(); err != nil {
			common.Logger().Warn("offscreen wait failed", "label", h.cfg.label, "err", err)
			return nil
		}
		h.destroyTarget()
		h.presented = 0
		if err := h.createTarget(); err != nil {
			common.Logger().Warn("offscreen resize failed", "label", h.cfg.label, "err", err)
			return nil
		}
		h.dirty = false
	}
	if h.texture == nil {
		return nil
	}

	h.current = &offscreenImage{host: h}
	return h.current
}

func (h *offscreenHost) CurrentRenderPassDescriptor() *RenderPassDescriptor {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil || h.current.done {
		return nil
	}
	return DefaultRenderPass(h.cfg.label+" Pass", HALTextureView(h.view), h.cfg.format, uint32(h.width), uint32(h.height))
}

func (h *offscreenHost) Size() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width, h.height
}

func (h *offscreenHost) Presented() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presented
}

func (h *offscreenHost) Snapshot() (*image.RGBA, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.presented == 0 {
		return nil, ErrNothingPresented
	}

	encoder, err := h.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: h.cfg.label + " Readback"})
	if err != nil {
		return nil, fmt.Errorf("surface: snapshot encoder: %w", err)
	}
	defer encoder.Destroy()

	if err := encoder.BeginEncoding(h.cfg.label + " Readback"); err != nil {
		return nil, fmt.Errorf("surface: snapshot encoding: %w", err)
	}
	encoder.CopyTextureToBuffer(h.texture, h.readback, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			BytesPerRow:  h.pitch,
			RowsPerImage: uint32(h.height),
		},
		TextureBase: hal.ImageCopyTexture{
			Texture: h.texture,
			Aspect:  gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{
			Width:              uint32(h.width),
			Height:             uint32(h.height),
			DepthOrArrayLayers: 1,
		},
	}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("surface: snapshot encoding: %w", err)
	}
	defer h.device.FreeCommandBuffer(cmd)

	if _, err := h.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return nil, fmt.Errorf("surface: snapshot submit: %w", err)
	}
	if err := h.device.WaitIdle(); err != nil {
		return nil, fmt.Errorf("surface: snapshot wait: %w", err)
	}

	size := uint64(h.pitch) * uint64(h.height)
	mapping, err := h.device.MapBuffer(h.readback, 0, size)
	if err != nil {
		return nil, fmt.Errorf("surface: snapshot map: %w", err)
	}
	defer func() {
		_ = h.device.UnmapBuffer(h.readback)
	}()

	raw := unsafe.Slice((*byte)(mapping.Ptr), size)
	img := image.NewRGBA(image.Rect(0, 0, h.width, h.height))
	h.readRows(img, raw)
	return img, nil
}

// readRows copies the padded readback rows into img, converting BGRA to RGBA when needed.
// With a worker pool the rows are split into one band per worker.
func (h *offscreenHost) readRows(img *image.RGBA, raw []byte) {
	bgra := isBGRA(h.cfg.format)
	if h.pool == nil || h.height < 2 {
		copyRows(img, raw, h.pitch, 0, h.height, bgra)
		return
	}

	bands := min(h.pool.GetMaxWorkers(), h.height)
	per := (h.height + bands - 1) / bands

	var wg sync.WaitGroup
	for id, y0 := 0, 0; y0 < h.height; id, y0 = id+1, y0+per {
		y1 := min(y0+per, h.height)
		wg.Add(1)
		h.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				copyRows(img, raw, h.pitch, y0, y1, bgra)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// copyRows copies rows [y0, y1) of a buffer with the given row pitch into img.
func copyRows(img *image.RGBA, raw []byte, pitch uint32, y0, y1 int, bgra bool) {
	rowBytes := img.Rect.Dx() * 4
	for y := y0; y < y1; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+rowBytes]
		copy(row, raw[uint64(y)*uint64(pitch):])
		if bgra {
			common.BGRAToRGBA(row)
		}
	}
}

func (h *offscreenHost) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.destroyTarget()
	h.current = nil
	if h.pool != nil {
		h.pool.Stop()
		h.pool = nil
	}
}

func (i *offscreenImage) Signal(submission uint64) {
	i.submission = submission
	i.signaled = true
}

func (i *offscreenImage) Present() error {
	h := i.host
	h.mu.Lock()
	defer h.mu.Unlock()

	if i.done {
		return ErrImageFinished
	}
	if !i.signaled {
		return fmt.Errorf("surface: present before signal")
	}
	i.done = true
	h.presented++
	return nil
}

func (i *offscreenImage) Discard() {
	h := i.host
	h.mu.Lock()
	defer h.mu.Unlock()
	i.done = true
}

func isBGRA(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatBGRA8Unorm || f == gputypes.TextureFormatBGRA8UnormSrgb
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}
