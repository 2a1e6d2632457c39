package model

import (
	"encoding/binary"
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Vertex is a model vertex
type Vertex struct {
	Pos   glm.Vec3
	Color glm.Vec4
	UV    glm.Vec2
}

// VertexSize is the packed size of a Vertex in a vertex buffer
const VertexSize = 4 * (3 + 4 + 2)

// IndexSize is the size of one index, indices are always 32bit
const IndexSize = 4

// Semantic names what a vertex element carries
type Semantic int

// Semantics of the vertex elements
const (
	SemanticPosition Semantic = iota
	SemanticColor
	SemanticTexcoord
)

// Format is the component layout of a vertex element
type Format int

// Formats the vertex elements use
const (
	FormatFloat2 Format = iota
	FormatFloat3
	FormatFloat4
)

// VertexElement describes one attribute in an interleaved vertex
type VertexElement struct {
	Semantic Semantic
	Format   Format
	Offset   uint32
}

// VertexLayout is the descriptor backends build their input layouts from
type VertexLayout struct {
	Stride   uint32
	Elements []VertexElement
}

// DefaultLayout is the layout of Vertex
var DefaultLayout = VertexLayout{
	Stride: VertexSize,
	Elements: []VertexElement{
		{Semantic: SemanticPosition, Format: FormatFloat3, Offset: 0},
		{Semantic: SemanticColor, Format: FormatFloat4, Offset: 12},
		{Semantic: SemanticTexcoord, Format: FormatFloat2, Offset: 28},
	},
}

func putFloats(dst []byte, floats ...float32) []byte {
	for _, f := range floats {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

func readFloat(src []byte, at int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src[at:]))
}

// EncodeVertices packs vertices into little endian vertex buffer bytes
func EncodeVertices(vertices []Vertex) []byte {
	return AppendVertices(make([]byte, 0, len(vertices)*VertexSize), vertices)
}

// AppendVertices packs vertices onto the end of dst
func AppendVertices(dst []byte, vertices []Vertex) []byte {
	for _, v := range vertices {
		dst = putFloats(dst, v.Pos[0], v.Pos[1], v.Pos[2])
		dst = putFloats(dst, v.Color[0], v.Color[1], v.Color[2], v.Color[3])
		dst = putFloats(dst, v.UV[0], v.UV[1])
	}
	return dst
}

// DecodeVertices unpacks vertex buffer bytes written by EncodeVertices
func DecodeVertices(data []byte) []Vertex {
	vertices := make([]Vertex, len(data)/VertexSize)
	for idx := range vertices {
		base := idx * VertexSize
		v := &vertices[idx]
		for c := 0; c < 3; c++ {
			v.Pos[c] = readFloat(data, base+4*c)
		}
		for c := 0; c < 4; c++ {
			v.Color[c] = readFloat(data, base+12+4*c)
		}
		for c := 0; c < 2; c++ {
			v.UV[c] = readFloat(data, base+28+4*c)
		}
	}
	return vertices
}

// EncodeIndices packs indices into little endian index buffer bytes
func EncodeIndices(indices []uint32) []byte {
	out := make([]byte, 0, len(indices)*IndexSize)
	for _, i := range indices {
		out = binary.LittleEndian.AppendUint32(out, i)
	}
	return out
}

// DecodeIndices unpacks index buffer bytes
func DecodeIndices(data []byte) []uint32 {
	indices := make([]uint32, len(data)/IndexSize)
	for idx := range indices {
		indices[idx] = binary.LittleEndian.Uint32(data[idx*IndexSize:])
	}
	return indices
}
