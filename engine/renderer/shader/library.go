package shader

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/Carmen-Shannon/hello-triangle/common"
)

//go:embed assets/triangle.wgsl
var triangleSource string

// DefaultModuleLabel is the module label of the embedded triangle program.
const DefaultModuleLabel = "triangle"

// moduleSource is one WGSL program registered with a library.
type moduleSource struct {
	label  string
	source string
}

// library is the implementation of the Library interface.
type library struct {
	sources []moduleSource
	stages  map[string]Stage
	order   []string
}

// Library is a set of precompiled shader entry points that can be looked up by name.
// All compilation happens in NewLibrary; lookups never compile.
type Library interface {
	// ResolveStage looks up a compiled entry point by name.
	//
	// Parameters:
	//   - name: the entry point name
	//
	// Returns:
	//   - Stage: the compiled entry point
	//   - error: ErrShaderNotFound if the library has no such entry point
	ResolveStage(name string) (Stage, error)

	// Stages returns the names of every entry point in the library in declaration order.
	//
	// Returns:
	//   - []string: entry point names
	Stages() []string
}

var _ Library = &library{}

// NewLibrary compiles every registered WGSL program and returns the resulting Library.
// Without options the library holds the embedded triangle program with vertex_main and fragment_main.
//
// Parameters:
//   - options: variadic list of LibraryBuilderOption functions to configure the Library
//
// Returns:
//   - Library: the loaded library
//   - error: wraps ErrInvalidLibrary if any program fails to compile, or two programs declare the same entry point
func NewLibrary(options ...LibraryBuilderOption) (Library, error) {
	l := &library{
		stages: make(map[string]Stage),
	}
	for _, opt := range options {
		opt(l)
	}
	if len(l.sources) == 0 {
		l.sources = []moduleSource{{label: DefaultModuleLabel, source: triangleSource}}
	}

	for _, src := range l.sources {
		if err := l.load(src); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *library) load(src moduleSource) error {
	ast, err := naga.Parse(src.source)
	if err != nil {
		return fmt.Errorf("%w: module %q: %w", ErrInvalidLibrary, src.label, err)
	}
	module, err := naga.LowerWithSource(ast, src.source)
	if err != nil {
		return fmt.Errorf("%w: module %q: %w", ErrInvalidLibrary, src.label, err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("%w: module %q: %w", ErrInvalidLibrary, src.label, err)
	}
	if len(verrs) > 0 {
		return fmt.Errorf("%w: module %q: %w", ErrInvalidLibrary, src.label, verrs[0])
	}
	code, err := naga.GenerateSPIRV(module, spirv.Options{Version: naga.DefaultOptions().SPIRVVersion})
	if err != nil {
		return fmt.Errorf("%w: module %q: %w", ErrInvalidLibrary, src.label, err)
	}
	words := bytesToWords(code)

	for _, ep := range module.EntryPoints {
		if _, dup := l.stages[ep.Name]; dup {
			return fmt.Errorf("%w: entry point %q declared twice", ErrInvalidLibrary, ep.Name)
		}
		st := Stage{
			Name:   ep.Name,
			Module: src.label,
			Source: src.source,
			SPIRV:  words,
		}
		switch ep.Stage {
		case ir.StageVertex:
			st.Type = ShaderTypeVertex
			st.Inputs = reflectInputs(module, ep.Function.Arguments)
		case ir.StageFragment:
			st.Type = ShaderTypeFragment
			st.Outputs = reflectOutputs(module, ep.Function.Result)
		case ir.StageCompute:
			st.Type = ShaderTypeCompute
		default:
			continue
		}
		l.stages[ep.Name] = st
		l.order = append(l.order, ep.Name)
		common.Logger().Debug("shader stage loaded", "module", src.label, "entry", ep.Name, "stage", st.Type.String())
	}
	return nil
}

func (l *library) ResolveStage(name string) (Stage, error) {
	st, ok := l.stages[name]
	if !ok {
		return Stage{}, fmt.Errorf("%w: %q", ErrShaderNotFound, name)
	}
	return st, nil
}

func (l *library) Stages() []string {
	return append([]string(nil), l.order...)
}

// bytesToWords converts little-endian SPIR-V bytes into 32-bit words.
func bytesToWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

// locationOf returns the @location index of a binding, if it is one.
func locationOf(b *ir.Binding) (uint32, bool) {
	if b == nil || *b == nil {
		return 0, false
	}
	switch lb := (*b).(type) {
	case ir.LocationBinding:
		return lb.Location, true
	case *ir.LocationBinding:
		return lb.Location, true
	}
	return 0, false
}

// shapeOf returns the component count and kind of a scalar or vector type.
func shapeOf(module *ir.Module, h ir.TypeHandle) (int, ScalarKind, bool) {
	if int(h) >= len(module.Types) {
		return 0, 0, false
	}
	switch t := module.Types[h].Inner.(type) {
	case ir.ScalarType:
		return 1, kindOf(t.Kind), true
	case ir.VectorType:
		return int(t.Size), kindOf(t.Scalar.Kind), true
	}
	return 0, 0, false
}

func kindOf(k ir.ScalarKind) ScalarKind {
	switch k {
	case ir.ScalarSint:
		return ScalarSint
	case ir.ScalarUint:
		return ScalarUint
	case ir.ScalarBool:
		return ScalarBool
	default:
		return ScalarFloat
	}
}

// reflectInputs collects @location inputs from entry point arguments, looking through struct arguments.
func reflectInputs(module *ir.Module, args []ir.FunctionArgument) []Input {
	var inputs []Input
	add := func(name string, b *ir.Binding, h ir.TypeHandle) {
		loc, ok := locationOf(b)
		if !ok {
			return
		}
		n, kind, ok := shapeOf(module, h)
		if !ok {
			return
		}
		inputs = append(inputs, Input{Name: name, Location: loc, Components: n, Kind: kind})
	}

	for _, arg := range args {
		if arg.Binding != nil {
			add(arg.Name, arg.Binding, arg.Type)
			continue
		}
		if int(arg.Type) >= len(module.Types) {
			continue
		}
		if st, ok := module.Types[arg.Type].Inner.(ir.StructType); ok {
			for _, m := range st.Members {
				add(m.Name, m.Binding, m.Type)
			}
		}
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Location < inputs[j].Location })
	return inputs
}

// reflectOutputs collects the @location outputs of a fragment entry point.
func reflectOutputs(module *ir.Module, result *ir.FunctionResult) []uint32 {
	if result == nil {
		return nil
	}
	if loc, ok := locationOf(result.Binding); ok {
		return []uint32{loc}
	}
	var outputs []uint32
	if int(result.Type) < len(module.Types) {
		if st, ok := module.Types[result.Type].Inner.(ir.StructType); ok {
			for _, m := range st.Members {
				if loc, ok := locationOf(m.Binding); ok {
					outputs = append(outputs, loc)
				}
			}
		}
	}
	return outputs
}
