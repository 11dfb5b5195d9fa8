package surface

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopGPU struct {
	instance hal.Instance
	adapter  hal.Adapter
	device   hal.Device
	queue    hal.Queue
}

func createNoopDevice(t *testing.T) noopGPU {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	require.NoError(t, err)
	adapters := instance.EnumerateAdapters(nil)
	require.NotEmpty(t, adapters)
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	require.NoError(t, err)
	t.Cleanup(func() {
		open.Device.Destroy()
		instance.Destroy()
	})
	return noopGPU{instance: instance, adapter: adapters[0].Adapter, device: open.Device, queue: open.Queue}
}

func TestHALTextureViewRoundTrip(t *testing.T) {
	assert.True(t, HALTextureView(nil).IsNil())
	assert.Nil(t, AsHALTextureView(HALTextureView(nil)))

	gpu := createNoopDevice(t)
	tex, err := gpu.device.CreateTexture(&hal.TextureDescriptor{Label: "t", Size: hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1}})
	require.NoError(t, err)
	view, err := gpu.device.CreateTextureView(tex, &hal.TextureViewDescriptor{})
	require.NoError(t, err)

	tv := HALTextureView(view)
	assert.False(t, tv.IsNil())
	assert.Same(t, view, AsHALTextureView(tv))
}

func TestOffscreenHostLifecycle(t *testing.T) {
	gpu := createNoopDevice(t)
	host, err := NewOffscreenHost(gpu.device, gpu.queue, 64, 48)
	require.NoError(t, err)
	defer host.Release()

	_, err = host.Snapshot()
	assert.ErrorIs(t, err, ErrNothingPresented)
	assert.Nil(t, host.CurrentRenderPassDescriptor())

	img := host.NextPresentableImage()
	require.NotNil(t, img)

	rp := host.CurrentRenderPassDescriptor()
	require.NotNil(t, rp)
	assert.False(t, rp.Target.IsNil())
	assert.Equal(t, gputypes.TextureFormatBGRA8Unorm, rp.Format)
	assert.Equal(t, uint32(64), rp.Width)
	assert.Equal(t, uint32(48), rp.Height)
	assert.Equal(t, gputypes.LoadOpClear, rp.LoadOp)
	assert.Equal(t, gputypes.StoreOpStore, rp.StoreOp)

	assert.Error(t, img.Present(), "present before signal")
	img.Signal(1)
	require.NoError(t, img.Present())
	assert.Equal(t, uint64(1), host.Presented())
	assert.Nil(t, host.CurrentRenderPassDescriptor())

	// a finished image cannot be presented again
	assert.ErrorIs(t, img.Present(), ErrImageFinished)
	assert.Equal(t, uint64(1), host.Presented())

	snap, err := host.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 64, snap.Bounds().Dx())
	assert.Equal(t, 48, snap.Bounds().Dy())
}

func TestOffscreenHostDiscard(t *testing.T) {
	gpu := createNoopDevice(t)
	host, err := NewOffscreenHost(gpu.device, gpu.queue, 8, 8)
	require.NoError(t, err)
	defer host.Release()

	img := host.NextPresentableImage()
	require.NotNil(t, img)
	img.Discard()
	assert.Nil(t, host.CurrentRenderPassDescriptor())

	img.Signal(1)
	assert.ErrorIs(t, img.Present(), ErrImageFinished)
	assert.Zero(t, host.Presented())
}

func TestOffscreenHostResize(t *testing.T) {
	gpu := createNoopDevice(t)
	host, err := NewOffscreenHost(gpu.device, gpu.queue, 8, 8)
	require.NoError(t, err)
	defer host.Release()

	host.OnSizeChanged(0, 0)
	assert.Nil(t, host.NextPresentableImage())

	host.OnSizeChanged(32, 16)
	require.NotNil(t, host.NextPresentableImage())
	w, h := host.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 16, h)
	assert.Equal(t, uint32(32), host.CurrentRenderPassDescriptor().Width)
}

func TestOffscreenHostInvalidSize(t *testing.T) {
	gpu := createNoopDevice(t)
	_, err := NewOffscreenHost(gpu.device, gpu.queue, 0, 10)
	assert.Error(t, err)
}

func TestOffscreenReadRowsInBands(t *testing.T) {
	gpu := createNoopDevice(t)
	host, err := NewOffscreenHost(gpu.device, gpu.queue, 3, 7, WithReadbackWorkers(4))
	require.NoError(t, err)
	defer host.Release()

	oh := host.(*offscreenHost)
	require.NotNil(t, oh.pool)

	raw := make([]byte, int(oh.pitch)*7)
	for i := range raw {
		raw[i] = byte(i)
	}
	want := image.NewRGBA(image.Rect(0, 0, 3, 7))
	copyRows(want, raw, oh.pitch, 0, 7, true)
	assert.Equal(t, []byte{2, 1, 0, 3}, want.Pix[:4])

	got := image.NewRGBA(image.Rect(0, 0, 3, 7))
	oh.readRows(got, raw)
	assert.Equal(t, want.Pix, got.Pix)
}

func TestOffscreenSingleReadbackWorker(t *testing.T) {
	gpu := createNoopDevice(t)
	host, err := NewOffscreenHost(gpu.device, gpu.queue, 4, 4, WithReadbackWorkers(1))
	require.NoError(t, err)
	assert.Nil(t, host.(*offscreenHost).pool)
	host.Release()
	host.Release()
}

func TestHALHost(t *testing.T) {
	gpu := createNoopDevice(t)
	s, err := gpu.instance.CreateSurface(0, 0)
	require.NoError(t, err)

	host, err := NewHALHost(gpu.adapter, gpu.device, gpu.queue, s, 640, 480, WithLabel("Window"))
	require.NoError(t, err)
	defer host.Release()

	img := host.NextPresentableImage()
	require.NotNil(t, img)
	rp := host.CurrentRenderPassDescriptor()
	require.NotNil(t, rp)
	assert.Equal(t, "Window Pass", rp.Label)
	assert.Equal(t, uint32(640), rp.Width)

	img.Signal(1)
	require.NoError(t, img.Present())
	assert.Nil(t, host.CurrentRenderPassDescriptor())

	host.OnSizeChanged(0, 480)
	assert.Nil(t, host.NextPresentableImage(), "no image while minimized")

	host.OnSizeChanged(800, 600)
	require.NotNil(t, host.NextPresentableImage())
	assert.Equal(t, uint32(800), host.CurrentRenderPassDescriptor().Width)
}

func TestHALHostUnsupportedFormat(t *testing.T) {
	gpu := createNoopDevice(t)
	s, err := gpu.instance.CreateSurface(0, 0)
	require.NoError(t, err)

	_, err = NewHALHost(gpu.adapter, gpu.device, gpu.queue, s, 640, 480, WithFormat(gputypes.TextureFormatRGBA16Float))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
