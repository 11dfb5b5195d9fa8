package model

import "github.com/gogpu/gputypes"

// model is the implementation of the Model interface.
type model struct {
	name       string
	vertices   []Vertex
	vertexData []byte
	topology   gputypes.PrimitiveTopology
}

// Model defines the interface for static, GPU-ready vertex geometry.
// A Model is immutable once created: its vertex bytes are serialized a single time in NewModel.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Vertices returns a copy of the model's vertices.
	//
	// Returns:
	//   - []Vertex: the vertices in draw order
	Vertices() []Vertex

	// VertexCount returns the number of vertices to draw.
	//
	// Returns:
	//   - int: the vertex count
	VertexCount() int

	// VertexData returns the serialized vertex buffer contents.
	//
	// Returns:
	//   - []byte: VertexCount()*VertexStride bytes
	VertexData() []byte

	// Layout returns the vertex buffer layout matching VertexData.
	//
	// Returns:
	//   - gputypes.VertexBufferLayout: the vertex layout
	Layout() gputypes.VertexBufferLayout

	// Topology returns the primitive topology the vertices are assembled with.
	//
	// Returns:
	//   - gputypes.PrimitiveTopology: the primitive topology
	Topology() gputypes.PrimitiveTopology
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
// Without options the model is the static colored triangle.
//
// Parameters:
//   - options: variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: the newly created Model instance
func NewModel(options ...ModelBuilderOption) Model {
	tri := Triangle()
	m := &model{
		name:     "triangle",
		vertices: tri[:],
		topology: gputypes.PrimitiveTopologyTriangleList,
	}
	for _, opt := range options {
		opt(m)
	}
	m.vertexData = MarshalVertices(m.vertices)
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Vertices() []Vertex {
	out := make([]Vertex, len(m.vertices))
	copy(out, m.vertices)
	return out
}

func (m *model) VertexCount() int {
	return len(m.vertices)
}

func (m *model) VertexData() []byte {
	out := make([]byte, len(m.vertexData))
	copy(out, m.vertexData)
	return out
}

func (m *model) Layout() gputypes.VertexBufferLayout {
	return VertexLayout()
}

func (m *model) Topology() gputypes.PrimitiveTopology {
	return m.topology
}
