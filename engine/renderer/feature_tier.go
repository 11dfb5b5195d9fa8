package renderer

import (
	"slices"

	"github.com/gogpu/gputypes"
)

// FeatureTier is the minimum device capability set a renderer accepts during device selection.
type FeatureTier struct {
	// Name identifies the tier in logs.
	Name string

	// Backends lists the graphics APIs an adapter may be driven through.
	Backends []gputypes.Backend

	// MinVertexBuffers is the minimum number of vertex buffer slots.
	MinVertexBuffers uint32

	// MinVertexAttributes is the minimum number of vertex attributes per pipeline.
	MinVertexAttributes uint32
}

var (
	// FeatureTierExplicit accepts only explicit, command-buffer based APIs. It is the default tier.
	FeatureTierExplicit = FeatureTier{
		Name:                "explicit",
		Backends:            []gputypes.Backend{gputypes.BackendVulkan, gputypes.BackendMetal, gputypes.BackendDX12},
		MinVertexBuffers:    1,
		MinVertexAttributes: 2,
	}

	// FeatureTierPortable additionally accepts OpenGL and OpenGL ES adapters.
	FeatureTierPortable = FeatureTier{
		Name: "portable",
		Backends: []gputypes.Backend{
			gputypes.BackendVulkan, gputypes.BackendMetal, gputypes.BackendDX12, gputypes.BackendGL,
		},
		MinVertexBuffers:    1,
		MinVertexAttributes: 2,
	}

	// FeatureTierHeadless accepts every adapter including backends that never touch a GPU.
	FeatureTierHeadless = FeatureTier{
		Name: "headless",
		Backends: []gputypes.Backend{
			gputypes.BackendVulkan, gputypes.BackendMetal, gputypes.BackendDX12, gputypes.BackendGL, gputypes.BackendEmpty,
		},
		MinVertexBuffers:    1,
		MinVertexAttributes: 2,
	}
)

// Accepts reports whether an adapter on backend with limits can hold a vertex buffer of bufferSize bytes
// under this tier.
//
// Parameters:
//   - backend: the adapter's graphics API
//   - limits: the adapter's limits
//   - bufferSize: the size of the vertex buffer the renderer will allocate
//
// Returns:
//   - bool: true if the adapter qualifies
func (t FeatureTier) Accepts(backend gputypes.Backend, limits gputypes.Limits, bufferSize uint64) bool {
	if !slices.Contains(t.Backends, backend) {
		return false
	}
	return limits.MaxVertexBuffers >= t.MinVertexBuffers &&
		limits.MaxVertexAttributes >= t.MinVertexAttributes &&
		limits.MaxBufferSize >= bufferSize
}

// includesExplicit reports whether the tier admits any explicit API.
func (t FeatureTier) includesExplicit() bool {
	for _, b := range FeatureTierExplicit.Backends {
		if slices.Contains(t.Backends, b) {
			return true
		}
	}
	return false
}
