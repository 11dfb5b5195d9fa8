package renderer

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gpucontext"
	"github.com/stretchr/testify/assert"
)

func wgpuLimits(vertexBuffers, vertexAttributes uint32, bufferSize uint64) wgpu.SupportedLimits {
	return wgpu.SupportedLimits{Limits: wgpu.Limits{
		MaxVertexBuffers:    vertexBuffers,
		MaxVertexAttributes: vertexAttributes,
		MaxBufferSize:       bufferSize,
	}}
}

func TestWGPUTierAccepts(t *testing.T) {
	limits := wgpuLimits(8, 16, 1<<28)
	vulkan := wgpu.AdapterInfo{Name: "gpu", BackendType: wgpu.BackendTypeVulkan}
	gl := wgpu.AdapterInfo{Name: "gl", BackendType: wgpu.BackendTypeOpenGL}
	gles := wgpu.AdapterInfo{Name: "gles", BackendType: wgpu.BackendTypeOpenGLES}

	assert.True(t, wgpuTierAccepts(FeatureTierExplicit, vulkan, limits, 96))
	assert.True(t, wgpuTierAccepts(FeatureTierExplicit, wgpu.AdapterInfo{BackendType: wgpu.BackendTypeMetal}, limits, 96))
	assert.True(t, wgpuTierAccepts(FeatureTierExplicit, wgpu.AdapterInfo{BackendType: wgpu.BackendTypeD3D12}, limits, 96))

	assert.False(t, wgpuTierAccepts(FeatureTierExplicit, gl, limits, 96), "GL is not explicit")
	assert.False(t, wgpuTierAccepts(FeatureTierExplicit, gles, limits, 96))
	assert.True(t, wgpuTierAccepts(FeatureTierPortable, gl, limits, 96))
	assert.True(t, wgpuTierAccepts(FeatureTierPortable, gles, limits, 96))

	null := wgpu.AdapterInfo{BackendType: wgpu.BackendTypeNull}
	assert.False(t, wgpuTierAccepts(FeatureTierPortable, null, limits, 96))
	assert.True(t, wgpuTierAccepts(FeatureTierHeadless, null, limits, 96))

	for _, bt := range []wgpu.BackendType{wgpu.BackendTypeD3D11, wgpu.BackendTypeWebGPU, wgpu.BackendTypeUndefined} {
		assert.False(t, wgpuTierAccepts(FeatureTierHeadless, wgpu.AdapterInfo{BackendType: bt}, limits, 96), bt.String())
	}

	assert.False(t, wgpuTierAccepts(FeatureTierExplicit, vulkan, wgpuLimits(8, 16, 64), 96), "buffer does not fit")
	assert.False(t, wgpuTierAccepts(FeatureTierExplicit, vulkan, wgpuLimits(0, 16, 1<<28), 96))
	assert.False(t, wgpuTierAccepts(FeatureTierExplicit, vulkan, wgpuLimits(8, 1, 1<<28), 96))
}

func TestFromWGPUAdapterInfo(t *testing.T) {
	tests := []struct {
		in   wgpu.AdapterType
		want gpucontext.AdapterType
	}{
		{wgpu.AdapterTypeDiscreteGPU, gpucontext.AdapterTypeDiscrete},
		{wgpu.AdapterTypeIntegratedGPU, gpucontext.AdapterTypeIntegrated},
		{wgpu.AdapterTypeCPU, gpucontext.AdapterTypeSoftware},
		{wgpu.AdapterTypeUnknown, gpucontext.AdapterTypeUnknown},
	}
	for _, tt := range tests {
		got := fromWGPUAdapterInfo(wgpu.AdapterInfo{Name: "adapter", AdapterType: tt.in})
		assert.Equal(t, gpucontext.AdapterInfo{Name: "adapter", Type: tt.want}, got)
	}
}

func TestWGPUBackendRejectsTierWithoutExplicitAPI(t *testing.T) {
	tier := FeatureTier{Name: "gl-only", Backends: FeatureTierPortable.Backends[3:]}
	_, err := newWGPURendererBackend(backendConfig{tier: tier})
	assert.ErrorIs(t, err, ErrNoCompatibleDevice)
}
