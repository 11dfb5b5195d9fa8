package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/hello-triangle/common"
)

func TestVertexStride(t *testing.T) {
	var v Vertex
	assert.Equal(t, 32, VertexStride)
	assert.Equal(t, VertexStride, v.Size())
}

func TestTriangleValues(t *testing.T) {
	tri := Triangle()
	assert.Equal(t, [3]float32{0, 0.5, 0}, tri[0].Position)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, tri[0].Color)
	assert.Equal(t, [3]float32{-0.5, -0.5, 0}, tri[1].Position)
	assert.Equal(t, [4]float32{0, 1, 0, 1}, tri[1].Color)
	assert.Equal(t, [3]float32{0.5, -0.5, 0}, tri[2].Position)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, tri[2].Color)
}

func TestTriangleReturnsCopy(t *testing.T) {
	tri := Triangle()
	tri[0].Position[0] = 42
	assert.Equal(t, float32(0), Triangle()[0].Position[0])
}

func TestMarshalVertices(t *testing.T) {
	tri := Triangle()
	data := MarshalVertices(tri[:])
	require.Len(t, data, 3*VertexStride)

	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
	}
	// vertex 1 position x and vertex 2 color blue
	assert.Equal(t, float32(-0.5), f(VertexStride))
	assert.Equal(t, float32(1), f(2*VertexStride+16+8))
	// padding stays zero
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[12:16]))

	// the in-memory layout matches the serialized one on little-endian hosts
	assert.Equal(t, common.SliceToBytes(tri[:]), data)
}

func TestVertexMarshalMatchesMarshalVertices(t *testing.T) {
	tri := Triangle()
	assert.Equal(t, MarshalVertices(tri[1:2]), tri[1].Marshal())
}

func TestVertexLayout(t *testing.T) {
	layout := VertexLayout()
	assert.Equal(t, uint64(VertexStride), layout.ArrayStride)
	assert.Equal(t, gputypes.VertexStepModeVertex, layout.StepMode)
	require.Len(t, layout.Attributes, 2)

	pos, col := layout.Attributes[0], layout.Attributes[1]
	assert.Equal(t, gputypes.VertexFormatFloat32x3, pos.Format)
	assert.Equal(t, uint64(0), pos.Offset)
	assert.Equal(t, PositionLocation, pos.ShaderLocation)
	assert.Equal(t, gputypes.VertexFormatFloat32x4, col.Format)
	assert.Equal(t, uint64(16), col.Offset)
	assert.Equal(t, ColorLocation, col.ShaderLocation)

	for _, a := range layout.Attributes {
		assert.LessOrEqual(t, a.Offset+a.Format.Size(), layout.ArrayStride)
	}
}

func TestNewModelDefaults(t *testing.T) {
	m := NewModel()
	assert.Equal(t, "triangle", m.Name())
	assert.Equal(t, 3, m.VertexCount())
	assert.Len(t, m.VertexData(), 96)
	assert.Equal(t, gputypes.PrimitiveTopologyTriangleList, m.Topology())
	assert.Equal(t, VertexLayout(), m.Layout())
}

func TestNewModelImmutable(t *testing.T) {
	verts := []Vertex{{Position: [3]float32{1, 2, 3}}}
	m := NewModel(WithName("point"), WithVertices(verts))
	verts[0].Position[0] = 9

	assert.Equal(t, float32(1), m.Vertices()[0].Position[0])
	data := m.VertexData()
	data[0] = 0xFF
	assert.NotEqual(t, byte(0xFF), m.VertexData()[0])
}
