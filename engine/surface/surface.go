package surface

import (
	"errors"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrImageFinished is returned by Present on an image that was already presented or discarded.
var ErrImageFinished = errors.New("surface: image already finished")

// PresentableImage is one image acquired from a Host for a single frame.
// Exactly one of Present or Discard must be called for every acquired image.
type PresentableImage interface {
	// Signal records the submission that renders into the image.
	// Present must not be called before the image has been signaled.
	//
	// Parameters:
	//   - submission: the queue submission index that writes the image
	Signal(submission uint64)

	// Present hands the image back to the host for display.
	//
	// Returns:
	//   - error: ErrImageFinished, or any presentation error reported by the device
	Present() error

	// Discard returns the image to the host without displaying it.
	Discard()
}

// Host owns a presentation target and hands out one image per frame.
// Hosts are driven from the render goroutine, except OnSizeChanged which may be called from the window thread.
type Host interface {
	// NextPresentableImage acquires the image for the next frame.
	//
	// Returns:
	//   - PresentableImage: the acquired image, or nil when no image is available this tick
	NextPresentableImage() PresentableImage

	// CurrentRenderPassDescriptor describes the render pass targeting the most recently acquired image.
	//
	// Returns:
	//   - *RenderPassDescriptor: the pass description, or nil when no image is held
	CurrentRenderPassDescriptor() *RenderPassDescriptor

	// OnSizeChanged notifies the host that its drawable size changed.
	// The host reconfigures before the next image is acquired.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	OnSizeChanged(width, height int)

	// Release frees every device object owned by the host.
	Release()
}

// RenderPassDescriptor describes the single color attachment of a frame's render pass.
type RenderPassDescriptor struct {
	Label      string
	Target     gpucontext.TextureView
	Format     gputypes.TextureFormat
	Width      uint32
	Height     uint32
	ClearColor gputypes.Color
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
}

// DefaultRenderPass returns a descriptor for target that clears to opaque black and stores the result.
//
// Parameters:
//   - label: the pass label
//   - target: the color attachment view
//   - format: the color attachment format
//   - width: the attachment width in pixels
//   - height: the attachment height in pixels
//
// Returns:
//   - *RenderPassDescriptor: the render pass descriptor
func DefaultRenderPass(label string, target gpucontext.TextureView, format gputypes.TextureFormat, width, height uint32) *RenderPassDescriptor {
	return &RenderPassDescriptor{
		Label:      label,
		Target:     target,
		Format:     format,
		Width:      width,
		Height:     height,
		ClearColor: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
	}
}

// HALTextureView wraps a HAL texture view in an opaque handle.
//
// Parameters:
//   - view: the HAL texture view
//
// Returns:
//   - gpucontext.TextureView: the opaque handle, nil if view is nil
func HALTextureView(view hal.TextureView) gpucontext.TextureView {
	if view == nil {
		return gpucontext.TextureView{}
	}
	boxed := &view
	return gpucontext.NewTextureView(unsafe.Pointer(boxed))
}

// AsHALTextureView unwraps a handle created by HALTextureView.
//
// Parameters:
//   - tv: the opaque handle
//
// Returns:
//   - hal.TextureView: the HAL texture view, or nil for a nil handle
func AsHALTextureView(tv gpucontext.TextureView) hal.TextureView {
	if tv.IsNil() {
		return nil
	}
	return *(*hal.TextureView)(tv.Pointer())
}

// WGPUTextureView wraps a WebGPU texture view in an opaque handle.
//
// Parameters:
//   - view: the WebGPU texture view
//
// Returns:
//   - gpucontext.TextureView: the opaque handle
func WGPUTextureView(view *wgpu.TextureView) gpucontext.TextureView {
	return gpucontext.NewTextureView(unsafe.Pointer(view))
}

// AsWGPUTextureView unwraps a handle created by WGPUTextureView.
//
// Parameters:
//   - tv: the opaque handle
//
// Returns:
//   - *wgpu.TextureView: the WebGPU texture view, or nil for a nil handle
func AsWGPUTextureView(tv gpucontext.TextureView) *wgpu.TextureView {
	return (*wgpu.TextureView)(tv.Pointer())
}
