package renderer

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/hello-triangle/engine/model"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/shader"
	"github.com/Carmen-Shannon/hello-triangle/engine/surface"
)

var errInjected = errors.New("injected failure")

type fakeDraw struct {
	topology gputypes.PrimitiveTopology
	start    uint32
	count    uint32
}

type fakeBackend struct {
	buffers     [][]byte
	compiles    int
	units       []*fakeUnit
	released    bool
	failBuffer  error
	failCompile error
	failUnit    error
}

var _ RendererBackend = &fakeBackend{}

func (b *fakeBackend) Type() RendererBackendType { return BackendTypeHAL }

func (b *fakeBackend) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "fake", Type: gpucontext.AdapterTypeSoftware}
}

func (b *fakeBackend) CreateVertexBuffer(label string, data []byte) (BufferBinding, error) {
	if b.failBuffer != nil {
		return BufferBinding{}, b.failBuffer
	}
	b.buffers = append(b.buffers, append([]byte(nil), data...))
	return BufferBinding{Label: label, Address: 0x1000, Length: uint64(len(data)), Handle: "vertex-buffer"}, nil
}

func (b *fakeBackend) PipelineCompiler() pipeline.Compiler { return b }

func (b *fakeBackend) CompileRenderPipeline(_ *pipeline.Descriptor) (any, error) {
	if b.failCompile != nil {
		return nil, b.failCompile
	}
	b.compiles++
	return "pipeline", nil
}

func (b *fakeBackend) NewSubmissionUnit(_ string) (SubmissionUnit, error) {
	if b.failUnit != nil {
		return nil, b.failUnit
	}
	u := &fakeUnit{}
	b.units = append(b.units, u)
	return u, nil
}

func (b *fakeBackend) NewSurfaceHost(_ ...surface.HostBuilderOption) (surface.Host, error) {
	return nil, ErrHostUnsupported
}

func (b *fakeBackend) NewOffscreenHost(_, _ int, _ ...surface.HostBuilderOption) (surface.OffscreenHost, error) {
	return nil, ErrHostUnsupported
}

func (b *fakeBackend) Release() { b.released = true }

type fakeUnit struct {
	syncs      int
	waitLog    []bool
	waits      uint64
	resets     int
	begins     int
	ends       int
	discards   int
	recording  bool
	submitted  uint64
	failCommit error
	draws      []fakeDraw
	pipelines  []any
	bindings   map[int]any
	released   bool
}

func (u *fakeUnit) Synchronize() error {
	u.syncs++
	wait := u.submitted > 0
	if wait {
		u.waits++
	}
	u.waitLog = append(u.waitLog, wait)
	return nil
}

func (u *fakeUnit) Reset() { u.resets++ }

func (u *fakeUnit) Begin() error {
	u.begins++
	u.recording = true
	return nil
}

func (u *fakeUnit) BeginRenderPass(_ *surface.RenderPassDescriptor) (RenderEncoder, error) {
	if !u.recording {
		return nil, errNotRecording
	}
	return &fakeEncoder{unit: u}, nil
}

func (u *fakeUnit) End() error {
	u.ends++
	u.recording = false
	return nil
}

func (u *fakeUnit) Commit() (uint64, error) {
	if u.failCommit != nil {
		err := u.failCommit
		u.failCommit = nil
		return 0, err
	}
	u.submitted++
	return u.submitted, nil
}

func (u *fakeUnit) Discard() {
	u.discards++
	u.recording = false
}

func (u *fakeUnit) Waits() uint64 { return u.waits }

func (u *fakeUnit) Release() { u.released = true }

type fakeEncoder struct {
	encoderState
	unit *fakeUnit
}

func (e *fakeEncoder) SetPipelineState(state pipeline.State) error {
	e.unit.pipelines = append(e.unit.pipelines, state.Pipeline())
	e.bind(state)
	return nil
}

func (e *fakeEncoder) SetBindingTable(table BindingTable, stage shader.ShaderType) error {
	if stage != shader.ShaderTypeVertex {
		return errStageUnsupported
	}
	e.unit.bindings = make(map[int]any)
	for slot := range table.Capacity() {
		if b, ok := table.Binding(slot); ok {
			e.unit.bindings[slot] = b.Handle
		}
	}
	return nil
}

func (e *fakeEncoder) DrawPrimitives(topology gputypes.PrimitiveTopology, start, count uint32) error {
	if err := e.checkDraw(topology); err != nil {
		return err
	}
	e.unit.draws = append(e.unit.draws, fakeDraw{topology: topology, start: start, count: count})
	return nil
}

func (e *fakeEncoder) EndEncoding() error { return e.end() }

type fakeHost struct {
	noImage     bool
	noPass      bool
	format      gputypes.TextureFormat
	failPresent error
	images      []*fakeImage
	current     *fakeImage
	lastPass    *surface.RenderPassDescriptor
	sizes       [][2]int
}

func newFakeHost() *fakeHost {
	return &fakeHost{format: gputypes.TextureFormatBGRA8Unorm}
}

func (h *fakeHost) NextPresentableImage() surface.PresentableImage {
	if h.noImage {
		return nil
	}
	h.current = &fakeImage{host: h}
	h.images = append(h.images, h.current)
	return h.current
}

func (h *fakeHost) CurrentRenderPassDescriptor() *surface.RenderPassDescriptor {
	if h.noPass || h.current == nil {
		return nil
	}
	h.lastPass = surface.DefaultRenderPass("fake", gpucontext.TextureView{}, h.format, 64, 64)
	return h.lastPass
}

func (h *fakeHost) OnSizeChanged(width, height int) {
	h.sizes = append(h.sizes, [2]int{width, height})
}

func (h *fakeHost) Release() {}

type fakeImage struct {
	host       *fakeHost
	submission uint64
	signaled   bool
	presented  bool
	discarded  bool
}

func (i *fakeImage) Signal(submission uint64) {
	i.submission = submission
	i.signaled = true
}

func (i *fakeImage) Present() error {
	if i.host.failPresent != nil {
		return i.host.failPresent
	}
	i.presented = true
	return nil
}

func (i *fakeImage) Discard() { i.discarded = true }

func newFakeRenderer(t *testing.T, b *fakeBackend, options ...RendererBuilderOption) Renderer {
	t.Helper()
	r, err := NewRendererWithBackend(b, options...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func TestRenderFrameSixtyTicks(t *testing.T) {
	b := &fakeBackend{}
	r := newFakeRenderer(t, b)
	host := newFakeHost()

	for i := range 60 {
		res := r.RenderFrame(host)
		require.Equal(t, FramePresented, res.Outcome, "frame %d: %v", i, res.Err)
		assert.Equal(t, uint64(i), res.Frame)
		assert.Equal(t, uint64(i+1), res.Submission)
		assert.Equal(t, FrameStateIdle, r.State())
	}

	require.Len(t, b.units, 1)
	u := b.units[0]
	assert.Equal(t, 60, u.resets)
	assert.Equal(t, 60, u.begins)
	assert.Equal(t, uint64(60), u.submitted)
	require.Len(t, u.draws, 60)
	for _, d := range u.draws {
		assert.Equal(t, fakeDraw{topology: gputypes.PrimitiveTopologyTriangleList, start: 0, count: 3}, d)
	}
	assert.False(t, u.waitLog[0], "first frame must not wait")
	assert.Equal(t, uint64(59), u.waits)
	assert.Equal(t, map[int]any{VertexBufferSlot: "vertex-buffer"}, u.bindings)

	for i, img := range host.images {
		assert.True(t, img.signaled)
		assert.True(t, img.presented)
		assert.False(t, img.discarded)
		assert.Equal(t, uint64(i+1), img.submission)
	}

	stats := r.Stats()
	assert.Equal(t, FrameStats{Presented: 60, Resets: 60, Waits: 59, Draws: 60}, stats)
	assert.Equal(t, 1, b.compiles, "pipeline is built once")
}

func TestRenderFrameForcesClear(t *testing.T) {
	r := newFakeRenderer(t, &fakeBackend{})
	host := newFakeHost()

	require.Equal(t, FramePresented, r.RenderFrame(host).Outcome)
	require.NotNil(t, host.lastPass)
	// The host's own descriptor is left untouched; the renderer clears on a copy.
	assert.Equal(t, gputypes.Color{A: 1}, host.lastPass.ClearColor)
	assert.Equal(t, gputypes.Color{R: 0.2, G: 0.2, B: 0.25, A: 1}, ClearColor)
}

func TestRenderFrameNoImage(t *testing.T) {
	b := &fakeBackend{}
	var transitions int
	r := newFakeRenderer(t, b, WithStateObserver(func(_, _ FrameState) { transitions++ }))
	host := newFakeHost()
	host.noImage = true

	for range 5 {
		res := r.RenderFrame(host)
		assert.Equal(t, FrameSkipped, res.Outcome)
		assert.Equal(t, SkipNoImage, res.Skip)
		assert.NoError(t, res.Err)
	}

	assert.Equal(t, uint64(0), b.units[0].submitted)
	assert.Equal(t, 0, b.units[0].syncs)
	assert.Equal(t, 0, transitions)
	assert.Equal(t, FrameStateIdle, r.State())
	assert.Equal(t, uint64(5), r.Stats().Skipped)

	res := r.RenderFrame(nil)
	assert.Equal(t, SkipNoImage, res.Skip)
}

func TestRenderFrameNoRenderPass(t *testing.T) {
	b := &fakeBackend{}
	r := newFakeRenderer(t, b)
	host := newFakeHost()
	host.noPass = true

	res := r.RenderFrame(host)
	assert.Equal(t, FrameSkipped, res.Outcome)
	assert.Equal(t, SkipNoRenderPass, res.Skip)

	u := b.units[0]
	assert.Equal(t, 1, u.discards)
	assert.Equal(t, uint64(0), u.submitted)
	assert.Empty(t, u.draws)
	require.Len(t, host.images, 1)
	assert.True(t, host.images[0].discarded)
	assert.False(t, host.images[0].presented)
	assert.Equal(t, FrameStateIdle, r.State())
}

func TestRenderFrameWaitsCountedOnSkip(t *testing.T) {
	b := &fakeBackend{}
	r := newFakeRenderer(t, b)
	host := newFakeHost()

	require.Equal(t, FramePresented, r.RenderFrame(host).Outcome)
	assert.Zero(t, r.Stats().Waits)

	host.noPass = true
	res := r.RenderFrame(host)
	require.Equal(t, SkipNoRenderPass, res.Skip)
	assert.Equal(t, uint64(1), b.units[0].waits)
	assert.Equal(t, uint64(1), r.Stats().Waits)

	host.noPass = false
	host.format = gputypes.TextureFormatRGBA8Unorm
	require.Equal(t, FrameFailed, r.RenderFrame(host).Outcome)
	assert.Equal(t, uint64(2), r.Stats().Waits)
}

func TestRenderFrameObserverOrder(t *testing.T) {
	type step struct{ from, to FrameState }
	var steps []step
	r := newFakeRenderer(t, &fakeBackend{}, WithStateObserver(func(from, to FrameState) {
		steps = append(steps, step{from, to})
	}))

	require.Equal(t, FramePresented, r.RenderFrame(newFakeHost()).Outcome)
	assert.Equal(t, []step{
		{FrameStateIdle, FrameStateAcquiredSurface},
		{FrameStateAcquiredSurface, FrameStateRecording},
		{FrameStateRecording, FrameStateEncoding},
		{FrameStateEncoding, FrameStateSubmitted},
		{FrameStateSubmitted, FrameStatePresented},
		{FrameStatePresented, FrameStateIdle},
	}, steps)
}

func TestRenderFrameCommitFailure(t *testing.T) {
	b := &fakeBackend{}
	r := newFakeRenderer(t, b)
	host := newFakeHost()
	b.units[0].failCommit = errInjected

	res := r.RenderFrame(host)
	assert.Equal(t, FrameFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, errInjected)
	assert.True(t, host.images[0].discarded)
	assert.Equal(t, FrameStateIdle, r.State())

	res = r.RenderFrame(host)
	assert.Equal(t, FramePresented, res.Outcome, "a failed frame does not poison the renderer")
	assert.Equal(t, uint64(0), res.Frame)
	assert.Equal(t, FrameStats{Presented: 1, Failed: 1, Resets: 2, Draws: 2}, r.Stats())
}

func TestRenderFramePresentFailure(t *testing.T) {
	r := newFakeRenderer(t, &fakeBackend{})
	host := newFakeHost()
	host.failPresent = errInjected

	res := r.RenderFrame(host)
	assert.Equal(t, FrameFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, errInjected)
	assert.Equal(t, uint64(1), res.Submission)
	assert.Equal(t, FrameStateIdle, r.State())
}

func TestRenderFrameFormatMismatch(t *testing.T) {
	b := &fakeBackend{}
	r := newFakeRenderer(t, b)
	host := newFakeHost()
	host.format = gputypes.TextureFormatRGBA8Unorm

	res := r.RenderFrame(host)
	assert.Equal(t, FrameFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrFormatMismatch)
	assert.Equal(t, 1, b.units[0].discards)
	assert.True(t, host.images[0].discarded)
}

func TestRenderFrameAfterRelease(t *testing.T) {
	b := &fakeBackend{}
	r, err := NewRendererWithBackend(b)
	require.NoError(t, err)

	r.Release()
	r.Release()
	assert.True(t, b.released)
	assert.True(t, b.units[0].released)

	res := r.RenderFrame(newFakeHost())
	assert.Equal(t, FrameFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrReleased)
}

func TestResizeKeepsState(t *testing.T) {
	r := newFakeRenderer(t, &fakeBackend{})
	before := r.Pipeline()

	r.Resize(1920, 1080)
	r.Resize(0, 0)

	assert.Same(t, before, r.Pipeline())
	assert.Equal(t, FrameStateIdle, r.State())
	assert.Equal(t, FramePresented, r.RenderFrame(newFakeHost()).Outcome)
}

func TestRendererResources(t *testing.T) {
	b := &fakeBackend{}
	r := newFakeRenderer(t, b, WithLabel("Test"))

	tri := model.Triangle()
	require.Len(t, b.buffers, 1)
	assert.Equal(t, model.MarshalVertices(tri[:]), b.buffers[0])
	assert.Len(t, b.buffers[0], 3*model.VertexStride)

	table := r.BindingTable()
	assert.True(t, table.Sealed())
	assert.Equal(t, BindingTableCapacity, table.Capacity())
	slot, ok := table.Binding(VertexBufferSlot)
	require.True(t, ok)
	assert.Equal(t, r.VertexBuffer(), slot)
	assert.Equal(t, uint64(0x1000), slot.Address)

	assert.Equal(t, "Test Pipeline", r.Pipeline().Label())
	assert.Equal(t, "pipeline", r.Pipeline().Pipeline())
	assert.Equal(t, "fake", r.AdapterInfo().Name)
	assert.Nil(t, r.SurfaceHost())
	assert.Equal(t, 3, r.Model().VertexCount())

	_, err := r.NewOffscreenHost(8, 8)
	assert.ErrorIs(t, err, ErrHostUnsupported)
}

func TestNewRendererWithBackendInitErrors(t *testing.T) {
	cases := []struct {
		name    string
		backend *fakeBackend
		stage   InitStage
		target  error
	}{
		{"buffer", &fakeBackend{failBuffer: errInjected}, InitStageVertexBuffer, ErrBufferAllocation},
		{"compile", &fakeBackend{failCompile: errInjected}, InitStagePipeline, pipeline.ErrCompile},
		{"submission unit", &fakeBackend{failUnit: errInjected}, InitStageSubmissionUnit, ErrSubmissionUnit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRendererWithBackend(tc.backend)
			require.Error(t, err)
			assert.Nil(t, r)

			var initErr *InitError
			require.ErrorAs(t, err, &initErr)
			assert.Equal(t, tc.stage, initErr.Stage)
			assert.ErrorIs(t, err, tc.target)
			assert.ErrorIs(t, err, errInjected)
			assert.True(t, tc.backend.released, "partial resources are released")
		})
	}
}

func TestNewRendererWithBackendMissingShader(t *testing.T) {
	lib, err := shader.NewLibrary(shader.WithSource("vertex-only", `
@vertex
fn vertex_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, 1.0);
}
`))
	require.NoError(t, err)

	b := &fakeBackend{}
	_, err = NewRendererWithBackend(b, WithShaderLibrary(lib))

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, InitStagePipeline, initErr.Stage)
	assert.ErrorIs(t, err, pipeline.ErrShaderNotFound)
	assert.Equal(t, 0, b.compiles)
}

func TestNewRendererUnknownBackend(t *testing.T) {
	r, err := NewRenderer(RendererBackendType(42))
	assert.Nil(t, r)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, InitStageDevice, initErr.Stage)
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Contains(t, err.Error(), "device")
}

func TestNewRendererWithNilBackend(t *testing.T) {
	_, err := NewRendererWithBackend(nil)
	assert.ErrorIs(t, err, ErrNoCompatibleDevice)
}

func TestFrameStateString(t *testing.T) {
	assert.Equal(t, "Idle", FrameStateIdle.String())
	assert.Equal(t, "Encoding", FrameStateEncoding.String())
	assert.Equal(t, "FrameState(99)", FrameState(99).String())
	assert.Equal(t, "skipped", FrameSkipped.String())
	assert.Equal(t, "vertex buffer", InitStageVertexBuffer.String())
	assert.Equal(t, "wgpu", BackendTypeWGPU.String())
}
