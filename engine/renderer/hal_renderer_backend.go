package renderer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/Carmen-Shannon/hello-triangle/common"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/shader"
	"github.com/Carmen-Shannon/hello-triangle/engine/surface"
)

// halRendererBackendImpl is the implementation of RendererBackend on the wgpu HAL.
type halRendererBackendImpl struct {
	mu sync.Mutex

	cfg backendConfig

	instance hal.Instance
	adapter  hal.Adapter
	info     gputypes.AdapterInfo
	device   hal.Device
	queue    hal.Queue

	// surface is created before adapter selection so only adapters able to present to it qualify.
	surface       hal.Surface
	surfaceHanded bool

	modules   map[string]hal.ShaderModule
	layouts   []hal.PipelineLayout
	pipelines []hal.RenderPipeline
	buffers   []hal.Buffer
}

var _ RendererBackend = &halRendererBackendImpl{}
var _ pipeline.Compiler = &halRendererBackendImpl{}

// halCandidate is an adapter that passed the feature tier check.
type halCandidate struct {
	owner   *halInstance
	adapter hal.ExposedAdapter
}

// halInstance is an instance opened during device selection together with its window surface.
type halInstance struct {
	variant  gputypes.Backend
	instance hal.Instance
	surface  hal.Surface
}

func (i *halInstance) destroy() {
	if i.surface != nil {
		i.surface.Destroy()
	}
	i.instance.Destroy()
}

// NewHALRendererBackend selects and opens the best adapter across the registered HAL backends.
//
// Parameters:
//   - options: variadic list of RendererBuilderOption functions; only device selection options apply
//
// Returns:
//   - RendererBackend: the opened backend
//   - error: ErrNoCompatibleDevice if no adapter satisfies the feature tier
func NewHALRendererBackend(options ...RendererBuilderOption) (RendererBackend, error) {
	r := newRenderer(BackendTypeHAL, options...)
	b, err := newHALRendererBackend(r.cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func newHALRendererBackend(cfg backendConfig) (*halRendererBackendImpl, error) {
	variants := cfg.halBackends
	if len(variants) == 0 {
		variants = hal.AvailableBackends()
	}

	var (
		instances  []*halInstance
		candidates []halCandidate
	)
	for _, variant := range variants {
		inst, err := openHALInstance(variant, cfg.window)
		if err != nil {
			common.Logger().Debug("backend skipped", "backend", variant.String(), "err", err)
			continue
		}
		instances = append(instances, inst)

		for _, exposed := range inst.instance.EnumerateAdapters(inst.surface) {
			if !cfg.tier.Accepts(exposed.Info.Backend, exposed.Capabilities.Limits, cfg.bufferSize) {
				common.Logger().Debug("adapter rejected by tier",
					"adapter", exposed.Info.Name, "backend", exposed.Info.Backend.String(), "tier", cfg.tier.Name)
				exposed.Adapter.Destroy()
				continue
			}
			if inst.surface != nil && exposed.Adapter.SurfaceCapabilities(inst.surface) == nil {
				exposed.Adapter.Destroy()
				continue
			}
			candidates = append(candidates, halCandidate{owner: inst, adapter: exposed})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return adapterRank(candidates[i].adapter.Info.DeviceType, cfg.forceSoftware) <
			adapterRank(candidates[j].adapter.Info.DeviceType, cfg.forceSoftware)
	})

	var (
		selected *halCandidate
		opened   hal.OpenDevice
		openErrs []error
	)
	for i := range candidates {
		c := &candidates[i]
		if selected != nil {
			c.adapter.Adapter.Destroy()
			continue
		}
		dev, err := c.adapter.Adapter.Open(0, c.adapter.Capabilities.Limits)
		if err != nil {
			openErrs = append(openErrs, fmt.Errorf("%s: %w", c.adapter.Info.Name, err))
			c.adapter.Adapter.Destroy()
			continue
		}
		selected = c
		opened = dev
	}

	for _, inst := range instances {
		if selected == nil || inst != selected.owner {
			inst.destroy()
		}
	}
	if selected == nil {
		if len(openErrs) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrNoCompatibleDevice, errors.Join(openErrs...))
		}
		return nil, fmt.Errorf("%w: tier %s", ErrNoCompatibleDevice, cfg.tier.Name)
	}

	b := &halRendererBackendImpl{
		cfg:      cfg,
		instance: selected.owner.instance,
		surface:  selected.owner.surface,
		adapter:  selected.adapter.Adapter,
		info:     selected.adapter.Info,
		device:   opened.Device,
		queue:    opened.Queue,
		modules:  make(map[string]hal.ShaderModule),
	}
	common.Logger().Info("adapter selected",
		"adapter", b.info.Name,
		"backend", b.info.Backend.String(),
		"type", b.info.DeviceType.String(),
		"tier", cfg.tier.Name,
	)
	return b, nil
}

// openHALInstance creates an instance of the registered backend variant and, when a window is given,
// a surface for it.
func openHALInstance(variant gputypes.Backend, window Window) (*halInstance, error) {
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, hal.ErrBackendNotFound
	}
	inst, err := backend.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsAll})
	if err != nil {
		return nil, err
	}
	out := &halInstance{variant: variant, instance: inst}
	if window == nil {
		return out, nil
	}

	display, handle, err := window.NativeHandles()
	if err == nil {
		out.surface, err = inst.CreateSurface(display, handle)
	}
	if err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("create surface: %w", err)
	}
	return out, nil
}

// adapterRank orders adapters from most to least preferred.
func adapterRank(t gputypes.DeviceType, preferSoftware bool) int {
	switch t {
	case gputypes.DeviceTypeCPU:
		if preferSoftware {
			return -1
		}
		return 4
	case gputypes.DeviceTypeDiscreteGPU:
		return 0
	case gputypes.DeviceTypeIntegratedGPU:
		return 1
	case gputypes.DeviceTypeVirtualGPU:
		return 2
	default:
		return 3
	}
}

func (b *halRendererBackendImpl) Type() RendererBackendType {
	return BackendTypeHAL
}

func (b *halRendererBackendImpl) AdapterInfo() gpucontext.AdapterInfo {
	info := gpucontext.AdapterInfo{Name: b.info.Name}
	switch b.info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		info.Type = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		info.Type = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		info.Type = gpucontext.AdapterTypeSoftware
	default:
		info.Type = gpucontext.AdapterTypeUnknown
	}
	return info
}

// Device returns the opened HAL device.
func (b *halRendererBackendImpl) Device() hal.Device {
	return b.device
}

// Queue returns the device queue.
func (b *halRendererBackendImpl) Queue() hal.Queue {
	return b.queue
}

func (b *halRendererBackendImpl) CreateVertexBuffer(label string, data []byte) (BufferBinding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(data) == 0 {
		return BufferBinding{}, fmt.Errorf("%w: %s is empty", ErrBufferAllocation, label)
	}

	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return BufferBinding{}, fmt.Errorf("%w: %w", ErrBufferAllocation, err)
	}
	if err := b.queue.WriteBuffer(buf, 0, data); err != nil {
		b.device.DestroyBuffer(buf)
		return BufferBinding{}, fmt.Errorf("%w: write %s: %w", ErrBufferAllocation, label, err)
	}
	b.buffers = append(b.buffers, buf)

	return BufferBinding{
		Label:   label,
		Address: uint64(buf.NativeHandle()),
		Length:  uint64(len(data)),
		Handle:  buf,
	}, nil
}

func (b *halRendererBackendImpl) PipelineCompiler() pipeline.Compiler {
	return b
}

// CompileRenderPipeline creates the HAL render pipeline for desc.
// Shader modules are created once per library module and shared between stages.
//
// Parameters:
//   - desc: the validated pipeline descriptor
//
// Returns:
//   - any: the hal.RenderPipeline
//   - error: any device error
func (b *halRendererBackendImpl) CompileRenderPipeline(desc *pipeline.Descriptor) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.shaderModule(desc.VertexStage)
	if err != nil {
		return nil, err
	}
	fs, err := b.shaderModule(desc.FragmentStage)
	if err != nil {
		return nil, err
	}

	layout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: desc.Label + " Layout",
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline layout: %w", err)
	}
	b.layouts = append(b.layouts, layout)

	multisample := gputypes.DefaultMultisampleState()
	multisample.Count = desc.SampleCount

	created, err := b.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexStage.Name,
			Buffers:    []gputypes.VertexBufferLayout{desc.VertexLayout},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  desc.Topology,
			FrontFace: desc.FrontFace,
			CullMode:  desc.CullMode,
		},
		Multisample: multisample,
		Fragment: &hal.FragmentState{
			Module:     fs,
			EntryPoint: desc.FragmentStage.Name,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    desc.ColorFormat,
					WriteMask: desc.WriteMask,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	b.pipelines = append(b.pipelines, created)
	return created, nil
}

// shaderModule returns the device module for stage, creating it on first use.
// Vulkan consumes the precompiled SPIR-V; other backends translate WGSL themselves.
func (b *halRendererBackendImpl) shaderModule(stage shader.Stage) (hal.ShaderModule, error) {
	if m, ok := b.modules[stage.Module]; ok {
		return m, nil
	}

	source := hal.ShaderSource{WGSL: stage.Source}
	if b.info.Backend == gputypes.BackendVulkan && len(stage.SPIRV) > 0 {
		source = hal.ShaderSource{SPIRV: stage.SPIRV}
	}
	m, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  stage.Module,
		Source: source,
	})
	if err != nil {
		return nil, fmt.Errorf("shader module %s: %w", stage.Module, err)
	}
	b.modules[stage.Module] = m
	return m, nil
}

func (b *halRendererBackendImpl) NewSubmissionUnit(label string) (SubmissionUnit, error) {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + " Commands"})
	if err != nil {
		return nil, err
	}
	return &halSubmissionUnit{
		device:  b.device,
		queue:   b.queue,
		encoder: encoder,
		label:   label + " Frame",
	}, nil
}

func (b *halRendererBackendImpl) NewSurfaceHost(options ...surface.HostBuilderOption) (surface.Host, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil || b.cfg.window == nil {
		return nil, fmt.Errorf("%w: no window surface", ErrHostUnsupported)
	}
	if b.surfaceHanded {
		return nil, fmt.Errorf("%w: surface host already created", ErrHostUnsupported)
	}

	width, height := b.cfg.window.FramebufferSize()
	host, err := surface.NewHALHost(b.adapter, b.device, b.queue, b.surface, width, height, options...)
	if err != nil {
		return nil, err
	}
	b.surfaceHanded = true
	return host, nil
}

func (b *halRendererBackendImpl) NewOffscreenHost(width, height int, options ...surface.HostBuilderOption) (surface.OffscreenHost, error) {
	return surface.NewOffscreenHost(b.device, b.queue, width, height, options...)
}

func (b *halRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return
	}
	if err := b.device.WaitIdle(); err != nil {
		common.Logger().Warn("wait idle on release", "err", err)
	}

	for i := len(b.pipelines) - 1; i >= 0; i-- {
		b.device.DestroyRenderPipeline(b.pipelines[i])
	}
	for i := len(b.layouts) - 1; i >= 0; i-- {
		b.device.DestroyPipelineLayout(b.layouts[i])
	}
	for _, m := range b.modules {
		b.device.DestroyShaderModule(m)
	}
	for i := len(b.buffers) - 1; i >= 0; i-- {
		b.device.DestroyBuffer(b.buffers[i])
	}
	b.pipelines, b.layouts, b.buffers = nil, nil, nil
	clear(b.modules)

	if b.surface != nil && !b.surfaceHanded {
		b.surface.Destroy()
	}
	b.surface = nil

	b.device.Destroy()
	b.device = nil
	b.adapter.Destroy()
	b.instance.Destroy()
}

// halSubmissionUnit records frames with a single HAL command encoder.
// The encoder is the allocator: ResetAll reclaims the previous frame's command buffer once the GPU is done with it.
type halSubmissionUnit struct {
	device  hal.Device
	queue   hal.Queue
	encoder hal.CommandEncoder
	label   string

	lastSubmission uint64
	inFlight       hal.CommandBuffer
	recorded       hal.CommandBuffer
	recording      bool
	waits          uint64
}

var _ SubmissionUnit = &halSubmissionUnit{}

func (u *halSubmissionUnit) Synchronize() error {
	if u.lastSubmission == 0 {
		return nil
	}
	if u.queue.PollCompleted() >= u.lastSubmission {
		return nil
	}
	u.waits++
	return u.device.WaitIdle()
}

func (u *halSubmissionUnit) Reset() {
	if u.inFlight != nil {
		u.encoder.ResetAll([]hal.CommandBuffer{u.inFlight})
		u.inFlight = nil
	}
}

func (u *halSubmissionUnit) Begin() error {
	if u.recording {
		return fmt.Errorf("%s: already recording", u.label)
	}
	if err := u.encoder.BeginEncoding(u.label); err != nil {
		return err
	}
	u.recording = true
	return nil
}

func (u *halSubmissionUnit) BeginRenderPass(desc *surface.RenderPassDescriptor) (RenderEncoder, error) {
	if !u.recording {
		return nil, errNotRecording
	}
	view := surface.AsHALTextureView(desc.Target)
	if view == nil {
		return nil, fmt.Errorf("%s: render pass has no HAL target", desc.Label)
	}

	pass := u.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     desc.LoadOp,
				StoreOp:    desc.StoreOp,
				ClearValue: desc.ClearColor,
			},
		},
	})
	if desc.Width > 0 && desc.Height > 0 {
		pass.SetViewport(0, 0, float32(desc.Width), float32(desc.Height), 0, 1)
		pass.SetScissorRect(0, 0, desc.Width, desc.Height)
	}
	return &halRenderEncoder{pass: pass}, nil
}

func (u *halSubmissionUnit) End() error {
	if !u.recording {
		return errNotRecording
	}
	u.recording = false
	cb, err := u.encoder.EndEncoding()
	if err != nil {
		return err
	}
	u.recorded = cb
	return nil
}

func (u *halSubmissionUnit) Commit() (uint64, error) {
	if u.recorded == nil {
		return 0, errNotRecording
	}
	cb := u.recorded
	u.recorded = nil

	index, err := u.queue.Submit([]hal.CommandBuffer{cb})
	if err != nil {
		u.encoder.ResetAll([]hal.CommandBuffer{cb})
		return 0, err
	}
	u.inFlight = cb
	u.lastSubmission = index
	return index, nil
}

func (u *halSubmissionUnit) Discard() {
	if u.recording {
		u.encoder.DiscardEncoding()
		u.recording = false
	}
	if u.recorded != nil {
		u.encoder.ResetAll([]hal.CommandBuffer{u.recorded})
		u.recorded = nil
	}
}

func (u *halSubmissionUnit) Waits() uint64 {
	return u.waits
}

func (u *halSubmissionUnit) Release() {
	if u.encoder == nil {
		return
	}
	if u.lastSubmission > 0 {
		if err := u.device.WaitIdle(); err != nil {
			common.Logger().Warn("wait idle on submission unit release", "err", err)
		}
	}
	u.Discard()
	u.Reset()
	u.encoder.Destroy()
	u.encoder = nil
}

// halRenderEncoder records into a HAL render pass.
type halRenderEncoder struct {
	encoderState
	pass hal.RenderPassEncoder
}

var _ RenderEncoder = &halRenderEncoder{}

func (e *halRenderEncoder) SetPipelineState(state pipeline.State) error {
	p, ok := state.Pipeline().(hal.RenderPipeline)
	if !ok || p == nil {
		return fmt.Errorf("%w: pipeline %s", errForeignObject, state.Label())
	}
	e.pass.SetPipeline(p)
	e.bind(state)
	return nil
}

func (e *halRenderEncoder) SetBindingTable(table BindingTable, stage shader.ShaderType) error {
	if stage != shader.ShaderTypeVertex {
		return fmt.Errorf("%w: %s", errStageUnsupported, stage)
	}
	for slot := range table.Capacity() {
		binding, ok := table.Binding(slot)
		if !ok {
			continue
		}
		buf, ok := binding.Handle.(hal.Buffer)
		if !ok {
			return fmt.Errorf("%w: buffer %s", errForeignObject, binding.Label)
		}
		e.pass.SetVertexBuffer(uint32(slot), buf, binding.Offset)
	}
	return nil
}

func (e *halRenderEncoder) DrawPrimitives(topology gputypes.PrimitiveTopology, start, count uint32) error {
	if err := e.checkDraw(topology); err != nil {
		return err
	}
	e.pass.Draw(count, 1, start, 0)
	return nil
}

func (e *halRenderEncoder) EndEncoding() error {
	if err := e.end(); err != nil {
		return err
	}
	e.pass.End()
	return nil
}
