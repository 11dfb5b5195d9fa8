package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/shader"
	"github.com/Carmen-Shannon/hello-triangle/engine/surface"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeHAL selects the explicit backend built on the wgpu hardware abstraction layer.
	BackendTypeHAL RendererBackendType = iota

	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU
)

// String returns the backend name.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeHAL:
		return "hal"
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

func (m PresentMode) surfaceMode() gputypes.PresentMode {
	if m == PresentModeUncapped {
		return gputypes.PresentModeImmediate
	}
	return gputypes.PresentModeFifo
}

// Window is the part of a native window a backend needs to create a presentation surface.
type Window interface {
	// FramebufferSize returns the drawable size in pixels.
	FramebufferSize() (int, int)

	// NativeHandles returns the platform display and window handles for explicit backends.
	NativeHandles() (display, window uintptr, err error)

	// SurfaceDescriptor returns the descriptor WebGPU uses to create a surface for the window.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

// backendConfig carries the renderer options a backend needs during device selection.
type backendConfig struct {
	label         string
	tier          FeatureTier
	window        Window
	forceSoftware bool
	bufferSize    uint64
	halBackends   []gputypes.Backend
}

// RendererBackend is the device-facing half of the Renderer.
// A backend owns every device object it creates and destroys them all in Release.
type RendererBackend interface {
	// Type returns the backend implementation type.
	Type() RendererBackendType

	// AdapterInfo describes the selected adapter.
	AdapterInfo() gpucontext.AdapterInfo

	// CreateVertexBuffer allocates a vertex buffer and writes data into it once.
	//
	// Parameters:
	//   - label: the buffer label
	//   - data: the buffer contents
	//
	// Returns:
	//   - BufferBinding: the bindable buffer
	//   - error: an error if the buffer could not be created or written
	CreateVertexBuffer(label string, data []byte) (BufferBinding, error)

	// PipelineCompiler returns the compiler turning pipeline descriptors into device pipeline objects.
	PipelineCompiler() pipeline.Compiler

	// NewSubmissionUnit creates the command queue, command buffer and allocator used to record frames.
	//
	// Parameters:
	//   - label: the label for the unit's device objects
	//
	// Returns:
	//   - SubmissionUnit: the submission unit
	//   - error: an error if the unit could not be created
	NewSubmissionUnit(label string) (SubmissionUnit, error)

	// NewSurfaceHost creates a Host presenting to the backend's window surface.
	//
	// Parameters:
	//   - options: variadic list of surface.HostBuilderOption functions to configure the Host
	//
	// Returns:
	//   - surface.Host: the window host
	//   - error: ErrHostUnsupported when the backend was created without a window
	NewSurfaceHost(options ...surface.HostBuilderOption) (surface.Host, error)

	// NewOffscreenHost creates a Host rendering into a device texture.
	//
	// Parameters:
	//   - width: the target width in pixels
	//   - height: the target height in pixels
	//   - options: variadic list of surface.HostBuilderOption functions to configure the Host
	//
	// Returns:
	//   - surface.OffscreenHost: the offscreen host
	//   - error: ErrHostUnsupported when the backend cannot render offscreen
	NewOffscreenHost(width, height int, options ...surface.HostBuilderOption) (surface.OffscreenHost, error)

	// Release destroys every device object created through the backend, then the device itself.
	Release()
}

// SubmissionUnit records and submits one frame at a time.
// Only one submission is ever in flight; Synchronize must complete before the allocator is reset.
type SubmissionUnit interface {
	// Synchronize waits until the previous submission has completed on the GPU.
	// It returns immediately when nothing has been submitted yet.
	//
	// Returns:
	//   - error: an error if waiting failed
	Synchronize() error

	// Reset reclaims the allocator memory used by the previous frame.
	Reset()

	// Begin starts recording a new command buffer.
	//
	// Returns:
	//   - error: an error if recording could not begin
	Begin() error

	// BeginRenderPass opens a render pass on the command buffer being recorded.
	//
	// Parameters:
	//   - desc: the render pass description supplied by the host
	//
	// Returns:
	//   - RenderEncoder: the encoder for the pass
	//   - error: an error if the pass target is unusable
	BeginRenderPass(desc *surface.RenderPassDescriptor) (RenderEncoder, error)

	// End finishes recording.
	//
	// Returns:
	//   - error: an error if the command buffer could not be finished
	End() error

	// Commit submits the recorded command buffer.
	//
	// Returns:
	//   - uint64: the submission index
	//   - error: an error if the submission was rejected
	Commit() (uint64, error)

	// Discard abandons the command buffer being recorded.
	Discard()

	// Waits returns how many times Synchronize actually blocked.
	Waits() uint64

	// Release destroys the unit's device objects after waiting for in-flight work.
	Release()
}

// RenderEncoder records draw commands into one render pass.
type RenderEncoder interface {
	// SetPipelineState binds a compiled pipeline.
	//
	// Parameters:
	//   - state: the pipeline state built for this backend
	//
	// Returns:
	//   - error: an error if the state was built by another backend
	SetPipelineState(state pipeline.State) error

	// SetBindingTable binds every filled slot of table for the given shader stage.
	//
	// Parameters:
	//   - table: the binding table
	//   - stage: the shader stage consuming the table
	//
	// Returns:
	//   - error: an error if the stage cannot consume buffers or a slot holds a foreign buffer
	SetBindingTable(table BindingTable, stage shader.ShaderType) error

	// DrawPrimitives draws count vertices starting at start.
	//
	// Parameters:
	//   - topology: the primitive topology, which must match the bound pipeline
	//   - start: the first vertex
	//   - count: the number of vertices
	//
	// Returns:
	//   - error: an error if no pipeline is bound or the topology differs from it
	DrawPrimitives(topology gputypes.PrimitiveTopology, start, count uint32) error

	// EndEncoding closes the render pass.
	//
	// Returns:
	//   - error: an error if the pass was already closed
	EndEncoding() error
}

// encoderState holds the checks shared by every RenderEncoder implementation.
type encoderState struct {
	topology gputypes.PrimitiveTopology
	hasState bool
	ended    bool
}

func (s *encoderState) bind(state pipeline.State) {
	s.topology = state.Descriptor().Topology
	s.hasState = true
}

func (s *encoderState) checkDraw(topology gputypes.PrimitiveTopology) error {
	if s.ended {
		return errEncoderEnded
	}
	if !s.hasState {
		return errNoPipelineBound
	}
	if topology != s.topology {
		return errTopologyMismatch
	}
	return nil
}

func (s *encoderState) end() error {
	if s.ended {
		return errEncoderEnded
	}
	s.ended = true
	return nil
}
