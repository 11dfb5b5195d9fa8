package model

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/gogpu/gputypes"
)

// Vertex is the GPU-aligned representation of a single triangle vertex.
// Matches the WGSL vertex input of the default shader library exactly.
// Size: 32 bytes (position is padded to 16 bytes so color starts on a 16-byte boundary).
type Vertex struct {
	Position [3]float32 // offset  0: clip-space position (12 bytes)
	_        float32    // offset 12: padding (4 bytes)
	Color    [4]float32 // offset 16: linear RGBA color (16 bytes)
}

// VertexStride is the byte distance between consecutive vertices in a vertex buffer.
const VertexStride = int(unsafe.Sizeof(Vertex{}))

// Shader locations of the vertex attributes.
const (
	PositionLocation uint32 = 0
	ColorLocation    uint32 = 1
)

// triangle is never handed out directly; Triangle returns a copy.
var triangle = [3]Vertex{
	{Position: [3]float32{0.0, 0.5, 0.0}, Color: [4]float32{1, 0, 0, 1}},
	{Position: [3]float32{-0.5, -0.5, 0.0}, Color: [4]float32{0, 1, 0, 1}},
	{Position: [3]float32{0.5, -0.5, 0.0}, Color: [4]float32{0, 0, 1, 1}},
}

// Triangle returns the three vertices of the static triangle: top red, bottom-left green, bottom-right blue.
//
// Returns:
//   - [3]Vertex: a copy of the triangle vertex data
func Triangle() [3]Vertex {
	return triangle
}

// Size returns the size of the Vertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (v *Vertex) Size() int {
	return int(unsafe.Sizeof(*v))
}

// Marshal serializes the Vertex struct into a byte buffer suitable for GPU upload.
// The padding word is written as zero.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (v *Vertex) Marshal() []byte {
	buf := make([]byte, VertexStride)
	v.marshalInto(buf)
	return buf
}

func (v *Vertex) marshalInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(v.Color[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(v.Color[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(v.Color[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(v.Color[3]))
}

// MarshalVertices serializes a slice of vertices back to back.
//
// Parameters:
//   - vertices: the vertices to serialize
//
// Returns:
//   - []byte: len(vertices)*VertexStride bytes, little-endian
func MarshalVertices(vertices []Vertex) []byte {
	buf := make([]byte, len(vertices)*VertexStride)
	for i := range vertices {
		vertices[i].marshalInto(buf[i*VertexStride : (i+1)*VertexStride])
	}
	return buf
}

// VertexLayout describes how the pipeline reads Vertex values out of a vertex buffer.
//
// Returns:
//   - gputypes.VertexBufferLayout: per-vertex layout with position at location 0 and color at location 1
func VertexLayout() gputypes.VertexBufferLayout {
	var v Vertex
	return gputypes.VertexBufferLayout{
		ArrayStride: uint64(VertexStride),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{
				Format:         gputypes.VertexFormatFloat32x3,
				Offset:         uint64(unsafe.Offsetof(v.Position)),
				ShaderLocation: PositionLocation,
			},
			{
				Format:         gputypes.VertexFormatFloat32x4,
				Offset:         uint64(unsafe.Offsetof(v.Color)),
				ShaderLocation: ColorLocation,
			},
		},
	}
}
