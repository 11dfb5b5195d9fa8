package pipeline

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/Carmen-Shannon/hello-triangle/common"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/shader"
)

// PipelineBuilderOption is a functional option for configuring the Descriptor assembled by BuildPipeline.
type PipelineBuilderOption func(*Descriptor)

// WithLabel is an option builder that sets the pipeline label.
//
// Parameters:
//   - label: the label used in logs and by the device
//
// Returns:
//   - PipelineBuilderOption: a function that applies the label option to a descriptor
func WithLabel(label string) PipelineBuilderOption {
	return func(d *Descriptor) {
		d.Label = label
	}
}

// WithCullMode is an option builder that sets the face culling mode.
//
// Parameters:
//   - mode: the cull mode, defaults to gputypes.CullModeNone
//
// Returns:
//   - PipelineBuilderOption: a function that applies the cull mode option to a descriptor
func WithCullMode(mode gputypes.CullMode) PipelineBuilderOption {
	return func(d *Descriptor) {
		d.CullMode = mode
	}
}

// WithFrontFace is an option builder that sets the front face winding order.
//
// Parameters:
//   - frontFace: the winding order, defaults to gputypes.FrontFaceCCW
//
// Returns:
//   - PipelineBuilderOption: a function that applies the front face option to a descriptor
func WithFrontFace(frontFace gputypes.FrontFace) PipelineBuilderOption {
	return func(d *Descriptor) {
		d.FrontFace = frontFace
	}
}

// WithWriteMask is an option builder that sets the color write mask.
//
// Parameters:
//   - writeMask: the channels written, defaults to gputypes.ColorWriteMaskAll
//
// Returns:
//   - PipelineBuilderOption: a function that applies the write mask option to a descriptor
func WithWriteMask(writeMask gputypes.ColorWriteMask) PipelineBuilderOption {
	return func(d *Descriptor) {
		d.WriteMask = writeMask
	}
}

// BuildPipeline validates a vertex layout against a pair of shader stages and compiles the resulting pipeline once.
//
// The layout is validated first, then both stages are resolved by name, then every @location input of the
// vertex stage is matched against the layout. Only a fully consistent descriptor reaches the compiler.
//
// Parameters:
//   - compiler: the device pipeline compiler
//   - library: the shader library holding both stages
//   - vertexName: the vertex entry point name
//   - fragmentName: the fragment entry point name
//   - layout: the vertex buffer layout feeding the vertex stage
//   - colorFormat: the color target format
//   - options: variadic list of PipelineBuilderOption functions to configure the Descriptor
//
// Returns:
//   - State: the compiled pipeline state
//   - error: wraps ErrShaderNotFound, ErrLayoutMismatch or ErrCompile
func BuildPipeline(
	compiler Compiler,
	library shader.Library,
	vertexName, fragmentName string,
	layout gputypes.VertexBufferLayout,
	colorFormat gputypes.TextureFormat,
	options ...PipelineBuilderOption,
) (State, error) {
	if err := validateLayout(layout); err != nil {
		return nil, err
	}

	vs, err := resolve(library, vertexName, shader.ShaderTypeVertex)
	if err != nil {
		return nil, err
	}
	fs, err := resolve(library, fragmentName, shader.ShaderTypeFragment)
	if err != nil {
		return nil, err
	}

	if err := matchInputs(vs, layout); err != nil {
		return nil, err
	}
	if err := checkColorTarget(fs, colorFormat); err != nil {
		return nil, err
	}

	desc := &Descriptor{
		Label:         vertexName + "+" + fragmentName,
		VertexStage:   vs,
		FragmentStage: fs,
		VertexLayout:  layout,
		ColorFormat:   colorFormat,
		Topology:      gputypes.PrimitiveTopologyTriangleList,
		CullMode:      gputypes.CullModeNone,
		FrontFace:     gputypes.FrontFaceCCW,
		WriteMask:     gputypes.ColorWriteMaskAll,
		SampleCount:   1,
	}
	for _, opt := range options {
		opt(desc)
	}
	desc.VertexLayout.Attributes = append([]gputypes.VertexAttribute(nil), layout.Attributes...)

	handle, err := compiler.CompileRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, desc.Label, err)
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: %s: device returned no pipeline", ErrCompile, desc.Label)
	}

	common.Logger().Info("pipeline built",
		"label", desc.Label,
		"format", desc.ColorFormat.String(),
		"topology", desc.Topology.String(),
	)
	return &state{desc: *desc, handle: handle}, nil
}

func resolve(library shader.Library, name string, want shader.ShaderType) (shader.Stage, error) {
	st, err := library.ResolveStage(name)
	if err != nil {
		return shader.Stage{}, err
	}
	if st.Type != want {
		return shader.Stage{}, fmt.Errorf("%w: %q is a %s stage, want %s", ErrShaderNotFound, name, st.Type, want)
	}
	return st, nil
}

// validateLayout checks that every attribute lies inside the stride and that attributes neither share a
// location nor overlap in bytes.
func validateLayout(layout gputypes.VertexBufferLayout) error {
	if layout.ArrayStride == 0 {
		return fmt.Errorf("%w: zero vertex stride", ErrLayoutMismatch)
	}
	seen := make(map[uint32]bool, len(layout.Attributes))
	for i, a := range layout.Attributes {
		size := a.Format.Size()
		if size == 0 {
			return fmt.Errorf("%w: attribute %d has unsupported format %s", ErrLayoutMismatch, i, a.Format)
		}
		if a.Offset+size > layout.ArrayStride {
			return fmt.Errorf("%w: attribute %d ends at byte %d past stride %d",
				ErrLayoutMismatch, i, a.Offset+size, layout.ArrayStride)
		}
		if seen[a.ShaderLocation] {
			return fmt.Errorf("%w: location %d bound twice", ErrLayoutMismatch, a.ShaderLocation)
		}
		seen[a.ShaderLocation] = true

		for j := range i {
			b := layout.Attributes[j]
			if a.Offset < b.Offset+b.Format.Size() && b.Offset < a.Offset+size {
				return fmt.Errorf("%w: attributes %d and %d overlap", ErrLayoutMismatch, j, i)
			}
		}
	}
	return nil
}

// matchInputs checks that each vertex stage input is fed by an attribute of the same shape.
func matchInputs(vs shader.Stage, layout gputypes.VertexBufferLayout) error {
	byLocation := make(map[uint32]gputypes.VertexAttribute, len(layout.Attributes))
	for _, a := range layout.Attributes {
		byLocation[a.ShaderLocation] = a
	}
	for _, in := range vs.Inputs {
		a, ok := byLocation[in.Location]
		if !ok {
			return fmt.Errorf("%w: %s input %q at location %d has no attribute",
				ErrLayoutMismatch, vs.Name, in.Name, in.Location)
		}
		n, kind := formatShape(a.Format)
		if n != in.Components || kind != in.Kind {
			return fmt.Errorf("%w: location %d is %s, %s expects %d components",
				ErrLayoutMismatch, in.Location, a.Format, vs.Name, in.Components)
		}
	}
	return nil
}

func checkColorTarget(fs shader.Stage, format gputypes.TextureFormat) error {
	if format == gputypes.TextureFormatUndefined || format.IsDepthStencil() {
		return fmt.Errorf("%w: %s is not a color format", ErrLayoutMismatch, format)
	}
	for _, loc := range fs.Outputs {
		if loc != 0 {
			return fmt.Errorf("%w: %s writes location %d, only one color target is bound",
				ErrLayoutMismatch, fs.Name, loc)
		}
	}
	return nil
}

// formatShape returns the component count and shader-side scalar kind of a vertex format.
func formatShape(f gputypes.VertexFormat) (int, shader.ScalarKind) {
	switch f {
	case gputypes.VertexFormatFloat32:
		return 1, shader.ScalarFloat
	case gputypes.VertexFormatUnorm8x2, gputypes.VertexFormatSnorm8x2, gputypes.VertexFormatUnorm16x2,
		gputypes.VertexFormatSnorm16x2, gputypes.VertexFormatFloat16x2, gputypes.VertexFormatFloat32x2:
		return 2, shader.ScalarFloat
	case gputypes.VertexFormatFloat32x3:
		return 3, shader.ScalarFloat
	case gputypes.VertexFormatUnorm8x4, gputypes.VertexFormatSnorm8x4, gputypes.VertexFormatUnorm16x4,
		gputypes.VertexFormatSnorm16x4, gputypes.VertexFormatFloat16x4, gputypes.VertexFormatFloat32x4,
		gputypes.VertexFormatUnorm1010102:
		return 4, shader.ScalarFloat
	case gputypes.VertexFormatUint32:
		return 1, shader.ScalarUint
	case gputypes.VertexFormatUint8x2, gputypes.VertexFormatUint16x2, gputypes.VertexFormatUint32x2:
		return 2, shader.ScalarUint
	case gputypes.VertexFormatUint32x3:
		return 3, shader.ScalarUint
	case gputypes.VertexFormatUint8x4, gputypes.VertexFormatUint16x4, gputypes.VertexFormatUint32x4:
		return 4, shader.ScalarUint
	case gputypes.VertexFormatSint32:
		return 1, shader.ScalarSint
	case gputypes.VertexFormatSint8x2, gputypes.VertexFormatSint16x2, gputypes.VertexFormatSint32x2:
		return 2, shader.ScalarSint
	case gputypes.VertexFormatSint32x3:
		return 3, shader.ScalarSint
	case gputypes.VertexFormatSint8x4, gputypes.VertexFormatSint16x4, gputypes.VertexFormatSint32x4:
		return 4, shader.ScalarSint
	default:
		return 0, shader.ScalarFloat
	}
}
