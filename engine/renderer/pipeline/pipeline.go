package pipeline

import (
	"errors"

	"github.com/gogpu/gputypes"

	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/shader"
)

var (
	// ErrShaderNotFound is returned when a stage name does not resolve to an entry point of the expected kind.
	// It is the same value as shader.ErrShaderNotFound.
	ErrShaderNotFound = shader.ErrShaderNotFound

	// ErrLayoutMismatch is returned when the vertex layout, the vertex stage inputs and the color format disagree.
	ErrLayoutMismatch = errors.New("pipeline: layout mismatch")

	// ErrCompile is returned when the device fails to compile the pipeline state.
	ErrCompile = errors.New("pipeline: compile failed")
)

// Descriptor is the complete, backend-neutral description of a render pipeline.
type Descriptor struct {
	Label         string
	VertexStage   shader.Stage
	FragmentStage shader.Stage
	VertexLayout  gputypes.VertexBufferLayout
	ColorFormat   gputypes.TextureFormat
	Topology      gputypes.PrimitiveTopology
	CullMode      gputypes.CullMode
	FrontFace     gputypes.FrontFace
	WriteMask     gputypes.ColorWriteMask
	SampleCount   uint32
}

// Compiler turns a validated Descriptor into a device pipeline object.
// It is implemented by each renderer backend.
type Compiler interface {
	// CompileRenderPipeline creates the device pipeline object for desc.
	//
	// Parameters:
	//   - desc: the validated pipeline descriptor
	//
	// Returns:
	//   - any: the backend pipeline handle
	//   - error: any device error
	CompileRenderPipeline(desc *Descriptor) (any, error)
}

// state is the implementation of the State interface.
type state struct {
	desc   Descriptor
	handle any
}

// State is an immutable, compiled render pipeline.
type State interface {
	// Label returns the label the pipeline was built with.
	//
	// Returns:
	//   - string: the pipeline label
	Label() string

	// Descriptor returns a copy of the descriptor the pipeline was compiled from.
	//
	// Returns:
	//   - Descriptor: the pipeline descriptor
	Descriptor() Descriptor

	// Pipeline returns the backend pipeline handle.
	// The concrete type depends on the backend that compiled it.
	//
	// Returns:
	//   - any: the backend pipeline handle
	Pipeline() any
}

var _ State = &state{}

func (s *state) Label() string {
	return s.desc.Label
}

func (s *state) Descriptor() Descriptor {
	d := s.desc
	d.VertexLayout.Attributes = append([]gputypes.VertexAttribute(nil), s.desc.VertexLayout.Attributes...)
	return d
}

func (s *state) Pipeline() any {
	return s.handle
}
