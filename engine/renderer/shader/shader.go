package shader

import (
	"errors"
	"fmt"
)

// ShaderType identifies the pipeline stage a shader entry point runs in.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the lowercase stage name.
func (s ShaderType) String() string {
	switch s {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(s))
	}
}

// Entry point names of the default library.
const (
	VertexMain   = "vertex_main"
	FragmentMain = "fragment_main"
)

var (
	// ErrShaderNotFound is returned when a library has no entry point with the requested name.
	ErrShaderNotFound = errors.New("shader: entry point not found")

	// ErrInvalidLibrary is returned when library source fails to parse, validate or compile.
	ErrInvalidLibrary = errors.New("shader: invalid library")
)

// ScalarKind is the element kind of a shader input.
type ScalarKind int

const (
	ScalarFloat ScalarKind = iota
	ScalarSint
	ScalarUint
	ScalarBool
)

// Input is a user-defined @location input of a vertex entry point.
type Input struct {
	Name       string
	Location   uint32
	Components int
	Kind       ScalarKind
}

// Stage is one compiled entry point of a shader library.
// Stage values are immutable once the library has been loaded; slices are shared and must not be modified.
type Stage struct {
	// Name is the entry point name, e.g. vertex_main.
	Name string

	// Type is the pipeline stage the entry point runs in.
	Type ShaderType

	// Module is the label of the module the entry point was compiled from.
	// Stages with equal Module share Source and SPIRV.
	Module string

	// Source is the WGSL source of the module.
	Source string

	// SPIRV is the precompiled module as SPIR-V words.
	SPIRV []uint32

	// Inputs lists the @location inputs of a vertex entry point ordered by location.
	Inputs []Input

	// Outputs lists the @location outputs of a fragment entry point.
	Outputs []uint32
}
