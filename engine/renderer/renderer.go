package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/Carmen-Shannon/hello-triangle/common"
	"github.com/Carmen-Shannon/hello-triangle/engine/model"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/shader"
	"github.com/Carmen-Shannon/hello-triangle/engine/surface"
)

// BindingTableCapacity is the number of slots in the renderer's vertex binding table.
const BindingTableCapacity = 1

// VertexBufferSlot is the binding table slot holding the vertex buffer.
const VertexBufferSlot = 0

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu sync.Mutex

	label       string
	colorFormat gputypes.TextureFormat
	presentMode PresentMode
	library     shader.Library
	model       model.Model
	observer    func(from, to FrameState)

	backendType RendererBackendType
	backend     RendererBackend
	cfg         backendConfig

	vertexBuffer BufferBinding
	table        BindingTable
	pipeline     pipeline.State
	unit         SubmissionUnit
	host         surface.Host

	state    FrameState
	stats    FrameStats
	released bool
}

// Renderer owns every device resource needed to draw the triangle and renders it one frame at a time.
//
// All resources are created once by NewRenderer and never change afterwards. The host loop calls
// RenderFrame once per refresh tick.
type Renderer interface {
	// RenderFrame renders one frame into the host's next image.
	// Errors abort only the current frame and are reported in the result.
	//
	// Parameters:
	//   - host: the host that provides and presents the image
	//
	// Returns:
	//   - FrameResult: the frame outcome
	RenderFrame(host surface.Host) FrameResult

	// Resize acknowledges a new drawable size. The renderer holds no size dependent state,
	// so this only logs; hosts reconfigure themselves through OnSizeChanged.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// State returns the current frame state. Between RenderFrame calls it is always FrameStateIdle.
	State() FrameState

	// Stats returns the frame counters.
	Stats() FrameStats

	// AdapterInfo describes the selected adapter.
	AdapterInfo() gpucontext.AdapterInfo

	// Backend returns the backend the renderer was created on.
	Backend() RendererBackend

	// BindingTable returns the sealed vertex binding table.
	BindingTable() BindingTable

	// Pipeline returns the pipeline state built at initialization.
	Pipeline() pipeline.State

	// VertexBuffer returns the vertex buffer binding.
	VertexBuffer() BufferBinding

	// Model returns the geometry the renderer draws.
	Model() model.Model

	// SurfaceHost returns the window host, or nil when the renderer was created without a window.
	SurfaceHost() surface.Host

	// NewOffscreenHost creates a host rendering into a device texture in the renderer's color format.
	//
	// Parameters:
	//   - width: the target width in pixels
	//   - height: the target height in pixels
	//
	// Returns:
	//   - surface.OffscreenHost: the offscreen host, released by the caller before the renderer
	//   - error: ErrHostUnsupported when the backend cannot render offscreen
	NewOffscreenHost(width, height int) (surface.OffscreenHost, error)

	// Release waits for in-flight work and destroys every resource in reverse creation order.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer selects a device and creates every resource needed to draw.
//
// Parameters:
//   - backendType: the backend implementation to use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the ready renderer
//   - error: an *InitError naming the failed stage; nothing is left allocated on failure
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := newRenderer(backendType, options...)

	var (
		backend RendererBackend
		err     error
	)
	switch backendType {
	case BackendTypeHAL:
		var b *halRendererBackendImpl
		if b, err = newHALRendererBackend(r.cfg); err == nil {
			backend = b
		}
	case BackendTypeWGPU:
		var b *wgpuRendererBackendImpl
		if b, err = newWGPURendererBackend(r.cfg); err == nil {
			backend = b
		}
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownBackend, int(backendType))
	}
	if err != nil {
		return nil, &InitError{Stage: InitStageDevice, Err: err}
	}

	if err := r.initialize(backend); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRendererWithBackend creates every resource needed to draw on an already selected backend.
// The renderer takes ownership of the backend and releases it on failure.
//
// Parameters:
//   - backend: the device backend
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the ready renderer
//   - error: an *InitError naming the failed stage
func NewRendererWithBackend(backend RendererBackend, options ...RendererBuilderOption) (Renderer, error) {
	if backend == nil {
		return nil, &InitError{Stage: InitStageDevice, Err: ErrNoCompatibleDevice}
	}
	r := newRenderer(backend.Type(), options...)
	if err := r.initialize(backend); err != nil {
		return nil, err
	}
	return r, nil
}

func newRenderer(backendType RendererBackendType, options ...RendererBuilderOption) *renderer {
	r := &renderer{
		label:       "Triangle",
		colorFormat: gputypes.TextureFormatBGRA8Unorm,
		presentMode: PresentModeVSync,
		backendType: backendType,
		cfg: backendConfig{
			tier: FeatureTierExplicit,
		},
	}
	for _, opt := range options {
		opt(r)
	}
	if r.model == nil {
		r.model = model.NewModel()
	}
	r.cfg.label = r.label
	r.cfg.bufferSize = uint64(len(r.model.VertexData()))
	return r
}

// initialize creates the renderer's resources on backend in dependency order.
func (r *renderer) initialize(backend RendererBackend) error {
	r.backend = backend
	r.backendType = backend.Type()

	if err := r.createResources(); err != nil {
		r.destroy()
		common.Logger().Warn("renderer init failed", "err", err)
		return err
	}

	info := backend.AdapterInfo()
	common.Logger().Info("renderer ready",
		"backend", r.backendType.String(),
		"adapter", info.Name,
		"pipeline", r.pipeline.Label(),
		"vertices", r.model.VertexCount(),
	)
	return nil
}

func (r *renderer) createResources() error {
	var err error

	r.vertexBuffer, err = r.backend.CreateVertexBuffer(r.label+" Vertex Buffer", r.model.VertexData())
	if err != nil {
		return &InitError{Stage: InitStageVertexBuffer, Err: wrapSentinel(ErrBufferAllocation, err)}
	}

	r.table = NewBindingTable(BindingTableCapacity)
	if err := r.table.SetAddress(VertexBufferSlot, r.vertexBuffer); err != nil {
		return &InitError{Stage: InitStageBindingTable, Err: err}
	}
	r.table.Seal()

	if r.library == nil {
		r.library, err = shader.NewLibrary()
		if err != nil {
			return &InitError{Stage: InitStagePipeline, Err: err}
		}
	}
	r.pipeline, err = pipeline.BuildPipeline(
		r.backend.PipelineCompiler(),
		r.library,
		shader.VertexMain,
		shader.FragmentMain,
		r.model.Layout(),
		r.colorFormat,
		pipeline.WithLabel(r.label+" Pipeline"),
	)
	if err != nil {
		return &InitError{Stage: InitStagePipeline, Err: err}
	}

	r.unit, err = r.backend.NewSubmissionUnit(r.label)
	if err != nil {
		return &InitError{Stage: InitStageSubmissionUnit, Err: wrapSentinel(ErrSubmissionUnit, err)}
	}

	if r.cfg.window != nil {
		r.host, err = r.backend.NewSurfaceHost(
			surface.WithLabel(r.label+" Surface"),
			surface.WithFormat(r.colorFormat),
			surface.WithPresentMode(r.presentMode.surfaceMode()),
		)
		if err != nil {
			return &InitError{Stage: InitStageSurface, Err: wrapSentinel(ErrSurface, err)}
		}
	}
	return nil
}

// wrapSentinel wraps err with sentinel unless err already carries it.
func wrapSentinel(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func (r *renderer) Resize(width, height int) {
	common.Logger().Debug("renderer resize", "width", width, "height", height)
}

func (r *renderer) State() FrameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *renderer) Stats() FrameStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *renderer) AdapterInfo() gpucontext.AdapterInfo {
	return r.backend.AdapterInfo()
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) BindingTable() BindingTable {
	return r.table
}

func (r *renderer) Pipeline() pipeline.State {
	return r.pipeline
}

func (r *renderer) VertexBuffer() BufferBinding {
	return r.vertexBuffer
}

func (r *renderer) Model() model.Model {
	return r.model
}

func (r *renderer) SurfaceHost() surface.Host {
	return r.host
}

func (r *renderer) NewOffscreenHost(width, height int) (surface.OffscreenHost, error) {
	return r.backend.NewOffscreenHost(width, height,
		surface.WithLabel(r.label+" Offscreen"),
		surface.WithFormat(r.colorFormat),
	)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	r.destroy()
}

// destroy releases whatever has been created so far, newest first.
func (r *renderer) destroy() {
	if r.host != nil {
		r.host.Release()
		r.host = nil
	}
	if r.unit != nil {
		r.unit.Release()
		r.unit = nil
	}
	if r.backend != nil {
		r.backend.Release()
	}
}
