package model

import (
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/utility/luatable"
)

// DrawInfo is everything needed to create the vertex and
// index buffers of a mesh and to issue its draw call.
// It is immutable once loaded.
type DrawInfo struct {
	VertexCount    uint32
	IndexCount     uint32
	PrimitiveCount uint32
	Layout         VertexLayout

	VertexData []byte
	IndexData  []byte
}

// NewDrawInfo packs an indexed triangle list
func NewDrawInfo(vertices []Vertex, indices []uint32) (*DrawInfo, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: index count %d is not a triangle list", ErrCorrupt, len(indices))
	}
	for _, i := range indices {
		if int(i) >= len(vertices) {
			return nil, fmt.Errorf("%w: index %d out of %d vertices", ErrCorrupt, i, len(vertices))
		}
	}
	return &DrawInfo{
		VertexCount:    uint32(len(vertices)),
		IndexCount:     uint32(len(indices)),
		PrimitiveCount: uint32(len(indices) / 3),
		Layout:         DefaultLayout,
		VertexData:     EncodeVertices(vertices),
		IndexData:      EncodeIndices(indices),
	}, nil
}

// Vertices decodes the vertex data
func (d *DrawInfo) Vertices() []Vertex {
	return DecodeVertices(d.VertexData)
}

// Indices decodes the index data
func (d *DrawInfo) Indices() []uint32 {
	return DecodeIndices(d.IndexData)
}

// ParseDrawInfo reads a mesh file. The format is chosen by the
// extension of name: ".mesh" Lua tables or ".dae" Collada documents.
func ParseDrawInfo(name string, data []byte) (*DrawInfo, error) {
	switch extension(name) {
	case ".mesh", ".lua":
		return parseLuaMesh(name, data)
	case ".dae":
		return ImportCollada(name, data)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
}

// parseLuaMesh reads
//
//	return {
//		vertexCount = 3, indexCount = 3,
//		vertices = { { position = {x, y, z}, color = {r, g, b, a}, uv = {u, v} }, ... },
//		indices = { 0, 1, 2 },
//	}
//
// color and uv are optional. The declared counts must match.
func parseLuaMesh(name string, data []byte) (*DrawInfo, error) {
	tbl, err := luatable.Eval(name, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	vertexCount, err := tbl.Int("vertexCount")
	if err != nil {
		return nil, corrupt(name, "%s", err)
	}
	indexCount, err := tbl.Int("indexCount")
	if err != nil {
		return nil, corrupt(name, "%s", err)
	}

	vertexTable, err := tbl.Table("vertices")
	if err != nil {
		return nil, corrupt(name, "%s", err)
	}
	if vertexTable.Len() != vertexCount {
		return nil, corrupt(name, "declared %d vertices, found %d", vertexCount, vertexTable.Len())
	}

	vertices := make([]Vertex, vertexCount)
	for idx := range vertices {
		vt, err := vertexTable.Index(idx + 1)
		if err != nil {
			return nil, corrupt(name, "vertex %d: %s", idx, err)
		}
		if vertices[idx], err = luaVertex(vt); err != nil {
			return nil, corrupt(name, "vertex %d: %s", idx, err)
		}
	}

	indexTable, err := tbl.Table("indices")
	if err != nil {
		return nil, corrupt(name, "%s", err)
	}
	rawIndices, err := indexTable.Floats()
	if err != nil {
		return nil, corrupt(name, "indices: %s", err)
	}
	if len(rawIndices) != indexCount {
		return nil, corrupt(name, "declared %d indices, found %d", indexCount, len(rawIndices))
	}
	indices := make([]uint32, len(rawIndices))
	for idx, f := range rawIndices {
		if f < 0 || f != float32(uint32(f)) {
			return nil, corrupt(name, "index %d is not a vertex number: %v", idx, f)
		}
		indices[idx] = uint32(f)
	}

	info, err := NewDrawInfo(vertices, indices)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return info, nil
}

func luaVertex(vt *luatable.Table) (Vertex, error) {
	v := Vertex{Color: glm.Vec4{1, 1, 1, 1}}

	pos, err := vt.FloatsField("position", 3)
	if err != nil {
		return v, err
	}
	copy(v.Pos[:], pos)

	if vt.Has("color") {
		col, err := vt.FloatsField("color", 4)
		if err != nil {
			return v, err
		}
		copy(v.Color[:], col)
	}
	if vt.Has("uv") {
		uv, err := vt.FloatsField("uv", 2)
		if err != nil {
			return v, err
		}
		copy(v.UV[:], uv)
	}
	return v, nil
}
