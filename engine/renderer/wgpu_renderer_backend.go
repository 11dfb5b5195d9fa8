package renderer

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/Carmen-Shannon/hello-triangle/common"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/shader"
	"github.com/Carmen-Shannon/hello-triangle/engine/surface"
)

// wgpuRendererBackendImpl is the implementation of RendererBackend on WebGPU.
type wgpuRendererBackendImpl struct {
	mu     sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	info     wgpu.AdapterInfo
	surface  *wgpu.Surface

	cfg           backendConfig
	surfaceHanded bool

	modules   map[string]*wgpu.ShaderModule
	layouts   []*wgpu.PipelineLayout
	pipelines []*wgpu.RenderPipeline
	buffers   []*wgpu.Buffer
}

var _ RendererBackend = &wgpuRendererBackendImpl{}
var _ pipeline.Compiler = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(cfg backendConfig) (*wgpuRendererBackendImpl, error) {
	// WebGPU only drives explicit APIs underneath, so a tier without them can never match.
	if !cfg.tier.includesExplicit() {
		return nil, fmt.Errorf("%w: tier %s has no WebGPU backend", ErrNoCompatibleDevice, cfg.tier.Name)
	}

	w := &wgpuRendererBackendImpl{
		cfg:      cfg,
		instance: wgpu.CreateInstance(nil),
		modules:  make(map[string]*wgpu.ShaderModule),
	}
	if cfg.window != nil {
		w.surface = w.instance.CreateSurface(cfg.window.SurfaceDescriptor())
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceSoftware,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		w.releaseInstance()
		return nil, fmt.Errorf("%w: %w", ErrNoCompatibleDevice, err)
	}
	w.adapter = a
	w.info = a.GetInfo()

	if !wgpuTierAccepts(cfg.tier, w.info, a.GetLimits(), cfg.bufferSize) {
		w.releaseInstance()
		return nil, fmt.Errorf("%w: adapter %q on %s rejected by tier %s",
			ErrNoCompatibleDevice, w.info.Name, w.info.BackendType, cfg.tier.Name)
	}

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: cfg.label + " Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		w.releaseInstance()
		return nil, fmt.Errorf("%w: %w", ErrNoCompatibleDevice, err)
	}
	w.device = d
	w.queue = d.GetQueue()

	common.Logger().Info("adapter selected", "backend", "wgpu", "name", w.info.Name,
		"api", w.info.BackendType.String(), "tier", cfg.tier.Name)
	return w, nil
}

func (b *wgpuRendererBackendImpl) Type() RendererBackendType {
	return BackendTypeWGPU
}

func (b *wgpuRendererBackendImpl) AdapterInfo() gpucontext.AdapterInfo {
	return fromWGPUAdapterInfo(b.info)
}

// wgpuTierAccepts reports whether a WebGPU adapter qualifies under tier.
// Adapters on an API the tier cannot name, such as D3D11, are rejected.
//
// Parameters:
//   - tier: the required feature tier
//   - info: the adapter's info
//   - limits: the adapter's supported limits
//   - bufferSize: the size of the vertex buffer the renderer will allocate
//
// Returns:
//   - bool: true if the adapter qualifies
func wgpuTierAccepts(tier FeatureTier, info wgpu.AdapterInfo, limits wgpu.SupportedLimits, bufferSize uint64) bool {
	backend, ok := fromWGPUBackend(info.BackendType)
	if !ok {
		return false
	}
	return tier.Accepts(backend, gputypes.Limits{
		MaxVertexBuffers:    limits.Limits.MaxVertexBuffers,
		MaxVertexAttributes: limits.Limits.MaxVertexAttributes,
		MaxBufferSize:       limits.Limits.MaxBufferSize,
	}, bufferSize)
}

func fromWGPUBackend(t wgpu.BackendType) (gputypes.Backend, bool) {
	switch t {
	case wgpu.BackendTypeVulkan:
		return gputypes.BackendVulkan, true
	case wgpu.BackendTypeMetal:
		return gputypes.BackendMetal, true
	case wgpu.BackendTypeD3D12:
		return gputypes.BackendDX12, true
	case wgpu.BackendTypeOpenGL, wgpu.BackendTypeOpenGLES:
		return gputypes.BackendGL, true
	case wgpu.BackendTypeNull:
		return gputypes.BackendEmpty, true
	default:
		return gputypes.BackendEmpty, false
	}
}

func fromWGPUAdapterInfo(info wgpu.AdapterInfo) gpucontext.AdapterInfo {
	out := gpucontext.AdapterInfo{Name: info.Name}
	switch info.AdapterType {
	case wgpu.AdapterTypeDiscreteGPU:
		out.Type = gpucontext.AdapterTypeDiscrete
	case wgpu.AdapterTypeIntegratedGPU:
		out.Type = gpucontext.AdapterTypeIntegrated
	case wgpu.AdapterTypeCPU:
		out.Type = gpucontext.AdapterTypeSoftware
	default:
		out.Type = gpucontext.AdapterTypeUnknown
	}
	return out
}

func (b *wgpuRendererBackendImpl) CreateVertexBuffer(label string, data []byte) (BufferBinding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(data) == 0 {
		return BufferBinding{}, fmt.Errorf("%w: %s is empty", ErrBufferAllocation, label)
	}

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             uint64(len(data)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return BufferBinding{}, fmt.Errorf("%w: %w", ErrBufferAllocation, err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	b.buffers = append(b.buffers, buf)

	return BufferBinding{
		Label:  label,
		Length: uint64(len(data)),
		Handle: buf,
	}, nil
}

func (b *wgpuRendererBackendImpl) PipelineCompiler() pipeline.Compiler {
	return b
}

// CompileRenderPipeline creates the WebGPU render pipeline for desc.
//
// Parameters:
//   - desc: the validated pipeline descriptor
//
// Returns:
//   - any: the *wgpu.RenderPipeline
//   - error: any device error, or an error if desc uses a format WebGPU cannot express here
func (b *wgpuRendererBackendImpl) CompileRenderPipeline(desc *pipeline.Descriptor) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	format, ok := surface.ToWGPUTextureFormat(desc.ColorFormat)
	if !ok {
		return nil, fmt.Errorf("unsupported color format %s", desc.ColorFormat)
	}
	vertexLayout, err := toWGPUVertexLayout(desc.VertexLayout)
	if err != nil {
		return nil, err
	}

	vs, err := b.shaderModule(desc.VertexStage)
	if err != nil {
		return nil, err
	}
	fs, err := b.shaderModule(desc.FragmentStage)
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label: desc.Label + " Layout",
	})
	if err != nil {
		return nil, err
	}
	b.layouts = append(b.layouts, pipelineLayout)

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexStage.Name,
			Buffers:    []wgpu.VertexBufferLayout{vertexLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.FragmentStage.Name,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMask(desc.WriteMask),
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  toWGPUTopology(desc.Topology),
			FrontFace: toWGPUFrontFace(desc.FrontFace),
			CullMode:  toWGPUCullMode(desc.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: desc.SampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	b.pipelines = append(b.pipelines, created)
	return created, nil
}

func (b *wgpuRendererBackendImpl) shaderModule(stage shader.Stage) (*wgpu.ShaderModule, error) {
	if m, ok := b.modules[stage.Module]; ok {
		return m, nil
	}
	m, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: stage.Module,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: stage.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shader module %s: %w", stage.Module, err)
	}
	b.modules[stage.Module] = m
	return m, nil
}

func (b *wgpuRendererBackendImpl) NewSubmissionUnit(label string) (SubmissionUnit, error) {
	return &wgpuSubmissionUnit{
		device: b.device,
		queue:  b.queue,
		label:  label + " Frame",
	}, nil
}

func (b *wgpuRendererBackendImpl) NewSurfaceHost(options ...surface.HostBuilderOption) (surface.Host, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil || b.cfg.window == nil {
		return nil, fmt.Errorf("%w: no window surface", ErrHostUnsupported)
	}
	if b.surfaceHanded {
		return nil, fmt.Errorf("%w: surface host already created", ErrHostUnsupported)
	}

	width, height := b.cfg.window.FramebufferSize()
	host, err := surface.NewWGPUHost(b.adapter, b.device, b.surface, width, height, options...)
	if err != nil {
		return nil, err
	}
	b.surfaceHanded = true
	return host, nil
}

// NewOffscreenHost is not available on WebGPU; offscreen rendering goes through the HAL backend.
func (b *wgpuRendererBackendImpl) NewOffscreenHost(_, _ int, _ ...surface.HostBuilderOption) (surface.OffscreenHost, error) {
	return nil, fmt.Errorf("%w: offscreen rendering on %s", ErrHostUnsupported, BackendTypeWGPU)
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return
	}
	for i := len(b.pipelines) - 1; i >= 0; i-- {
		b.pipelines[i].Release()
	}
	for i := len(b.layouts) - 1; i >= 0; i-- {
		b.layouts[i].Release()
	}
	for _, m := range b.modules {
		m.Release()
	}
	for i := len(b.buffers) - 1; i >= 0; i-- {
		b.buffers[i].Release()
	}
	b.pipelines, b.layouts, b.buffers = nil, nil, nil
	clear(b.modules)

	b.device.Release()
	b.device = nil
	b.releaseInstance()
}

// releaseInstance releases the objects created before the device.
func (b *wgpuRendererBackendImpl) releaseInstance() {
	if b.surface != nil && !b.surfaceHanded {
		b.surface.Release()
	}
	b.surface = nil
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	b.instance.Release()
}

// wgpuSubmissionUnit records frames on WebGPU.
// WebGPU encoders are single-use, so the allocator reset maps to releasing last frame's encoder
// and creating a fresh one in Begin.
type wgpuSubmissionUnit struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	label  string

	encoder  *wgpu.CommandEncoder
	recorded *wgpu.CommandBuffer
	inFlight *wgpu.CommandBuffer

	submissions uint64
	waits       uint64
}

var _ SubmissionUnit = &wgpuSubmissionUnit{}

func (u *wgpuSubmissionUnit) Synchronize() error {
	if u.submissions == 0 {
		return nil
	}
	u.device.Poll(true, nil)
	u.waits++
	return nil
}

func (u *wgpuSubmissionUnit) Reset() {
	if u.inFlight != nil {
		u.inFlight.Release()
		u.inFlight = nil
	}
}

func (u *wgpuSubmissionUnit) Begin() error {
	if u.encoder != nil {
		return fmt.Errorf("%s: already recording", u.label)
	}
	encoder, err := u.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: u.label})
	if err != nil {
		return err
	}
	u.encoder = encoder
	return nil
}

func (u *wgpuSubmissionUnit) BeginRenderPass(desc *surface.RenderPassDescriptor) (RenderEncoder, error) {
	if u.encoder == nil {
		return nil, errNotRecording
	}
	view := surface.AsWGPUTextureView(desc.Target)
	if view == nil {
		return nil, fmt.Errorf("%s: render pass has no WebGPU target", desc.Label)
	}

	loadOp := wgpu.LoadOpLoad
	if desc.LoadOp == gputypes.LoadOpClear {
		loadOp = wgpu.LoadOpClear
	}
	storeOp := wgpu.StoreOpStore
	if desc.StoreOp == gputypes.StoreOpDiscard {
		storeOp = wgpu.StoreOpDiscard
	}

	pass := u.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    view,
				LoadOp:  loadOp,
				StoreOp: storeOp,
				ClearValue: wgpu.Color{
					R: desc.ClearColor.R, G: desc.ClearColor.G, B: desc.ClearColor.B, A: desc.ClearColor.A,
				},
			},
		},
	})
	return &wgpuRenderEncoder{pass: pass}, nil
}

func (u *wgpuSubmissionUnit) End() error {
	if u.encoder == nil {
		return errNotRecording
	}
	commandBuffer, err := u.encoder.Finish(nil)
	u.encoder.Release()
	u.encoder = nil
	if err != nil {
		return err
	}
	u.recorded = commandBuffer
	return nil
}

func (u *wgpuSubmissionUnit) Commit() (uint64, error) {
	if u.recorded == nil {
		return 0, errNotRecording
	}
	u.queue.Submit(u.recorded)
	u.inFlight = u.recorded
	u.recorded = nil
	u.submissions++
	return u.submissions, nil
}

func (u *wgpuSubmissionUnit) Discard() {
	if u.encoder != nil {
		u.encoder.Release()
		u.encoder = nil
	}
	if u.recorded != nil {
		u.recorded.Release()
		u.recorded = nil
	}
}

func (u *wgpuSubmissionUnit) Waits() uint64 {
	return u.waits
}

func (u *wgpuSubmissionUnit) Release() {
	if u.submissions > 0 {
		u.device.Poll(true, nil)
	}
	u.Discard()
	u.Reset()
}

// wgpuRenderEncoder records into a WebGPU render pass.
type wgpuRenderEncoder struct {
	encoderState
	pass *wgpu.RenderPassEncoder
}

var _ RenderEncoder = &wgpuRenderEncoder{}

func (e *wgpuRenderEncoder) SetPipelineState(state pipeline.State) error {
	p, ok := state.Pipeline().(*wgpu.RenderPipeline)
	if !ok || p == nil {
		return fmt.Errorf("%w: pipeline %s", errForeignObject, state.Label())
	}
	e.pass.SetPipeline(p)
	e.bind(state)
	return nil
}

func (e *wgpuRenderEncoder) SetBindingTable(table BindingTable, stage shader.ShaderType) error {
	if stage != shader.ShaderTypeVertex {
		return fmt.Errorf("%w: %s", errStageUnsupported, stage)
	}
	for slot := range table.Capacity() {
		binding, ok := table.Binding(slot)
		if !ok {
			continue
		}
		buf, ok := binding.Handle.(*wgpu.Buffer)
		if !ok {
			return fmt.Errorf("%w: buffer %s", errForeignObject, binding.Label)
		}
		e.pass.SetVertexBuffer(uint32(slot), buf, binding.Offset, wgpu.WholeSize)
	}
	return nil
}

func (e *wgpuRenderEncoder) DrawPrimitives(topology gputypes.PrimitiveTopology, start, count uint32) error {
	if err := e.checkDraw(topology); err != nil {
		return err
	}
	e.pass.Draw(count, 1, start, 0)
	return nil
}

func (e *wgpuRenderEncoder) EndEncoding() error {
	if err := e.end(); err != nil {
		return err
	}
	e.pass.End()
	return nil
}

func toWGPUVertexLayout(layout gputypes.VertexBufferLayout) (wgpu.VertexBufferLayout, error) {
	attributes := make([]wgpu.VertexAttribute, 0, len(layout.Attributes))
	for _, a := range layout.Attributes {
		format, ok := toWGPUVertexFormat(a.Format)
		if !ok {
			return wgpu.VertexBufferLayout{}, fmt.Errorf("unsupported vertex format %s", a.Format)
		}
		attributes = append(attributes, wgpu.VertexAttribute{
			Format:         format,
			Offset:         a.Offset,
			ShaderLocation: a.ShaderLocation,
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: layout.ArrayStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attributes,
	}, nil
}

func toWGPUVertexFormat(f gputypes.VertexFormat) (wgpu.VertexFormat, bool) {
	switch f {
	case gputypes.VertexFormatFloat32:
		return wgpu.VertexFormatFloat32, true
	case gputypes.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2, true
	case gputypes.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3, true
	case gputypes.VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4, true
	case gputypes.VertexFormatFloat16x2:
		return wgpu.VertexFormatFloat16x2, true
	case gputypes.VertexFormatFloat16x4:
		return wgpu.VertexFormatFloat16x4, true
	case gputypes.VertexFormatUint32:
		return wgpu.VertexFormatUint32, true
	case gputypes.VertexFormatUint32x2:
		return wgpu.VertexFormatUint32x2, true
	case gputypes.VertexFormatUint32x3:
		return wgpu.VertexFormatUint32x3, true
	case gputypes.VertexFormatUint32x4:
		return wgpu.VertexFormatUint32x4, true
	case gputypes.VertexFormatSint32:
		return wgpu.VertexFormatSint32, true
	case gputypes.VertexFormatSint32x2:
		return wgpu.VertexFormatSint32x2, true
	case gputypes.VertexFormatSint32x3:
		return wgpu.VertexFormatSint32x3, true
	case gputypes.VertexFormatSint32x4:
		return wgpu.VertexFormatSint32x4, true
	default:
		return wgpu.VertexFormatUndefined, false
	}
}

func toWGPUTopology(t gputypes.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case gputypes.PrimitiveTopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	case gputypes.PrimitiveTopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case gputypes.PrimitiveTopologyLineStrip:
		return wgpu.PrimitiveTopologyLineStrip
	case gputypes.PrimitiveTopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func toWGPUFrontFace(f gputypes.FrontFace) wgpu.FrontFace {
	if f == gputypes.FrontFaceCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func toWGPUCullMode(c gputypes.CullMode) wgpu.CullMode {
	switch c {
	case gputypes.CullModeFront:
		return wgpu.CullModeFront
	case gputypes.CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}
