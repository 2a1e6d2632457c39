package model_test

import (
	"errors"
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/model"
)

const quadMesh = `
return {
	vertexCount = 4,
	indexCount = 6,
	vertices = {
		{ position = { -1, -1, 0 }, color = { 1, 0, 0, 1 }, uv = { 0, 1 } },
		{ position = { 1, -1, 0 }, color = { 0, 1, 0, 1 }, uv = { 1, 1 } },
		{ position = { 1, 1, 0 }, color = { 0, 0, 1, 1 }, uv = { 1, 0 } },
		{ position = { -1, 1, 0 } },
	},
	indices = { 0, 1, 2, 0, 2, 3 },
}
`

func TestParseLuaMesh(t *testing.T) {
	info, err := model.ParseDrawInfo("meshes/quad.mesh", []byte(quadMesh))
	if err != nil {
		t.Fatal(err)
	}

	if info.VertexCount != 4 || info.IndexCount != 6 || info.PrimitiveCount != 2 {
		t.Fatalf("unexpected counts %d/%d/%d", info.VertexCount, info.IndexCount, info.PrimitiveCount)
	}
	if len(info.VertexData) != 4*model.VertexSize {
		t.Fatalf("unexpected vertex data size %d", len(info.VertexData))
	}
	if len(info.IndexData) != 6*model.IndexSize {
		t.Fatalf("unexpected index data size %d", len(info.IndexData))
	}

	vertices := info.Vertices()
	if vertices[1].Pos != (glm.Vec3{1, -1, 0}) {
		t.Errorf("unexpected position %v", vertices[1].Pos)
	}
	if vertices[2].Color != (glm.Vec4{0, 0, 1, 1}) {
		t.Errorf("unexpected color %v", vertices[2].Color)
	}
	if vertices[3].Color != (glm.Vec4{1, 1, 1, 1}) {
		t.Errorf("missing color should default to white, got %v", vertices[3].Color)
	}
	if vertices[0].UV != (glm.Vec2{0, 1}) {
		t.Errorf("unexpected uv %v", vertices[0].UV)
	}

	indices := info.Indices()
	expected := []uint32{0, 1, 2, 0, 2, 3}
	for idx := range expected {
		if indices[idx] != expected[idx] {
			t.Fatalf("unexpected indices %v", indices)
		}
	}
}

func TestParseLuaMeshCorrupt(t *testing.T) {
	cases := map[string]string{
		"count mismatch": `return { vertexCount = 2, indexCount = 3,
			vertices = { { position = { 0, 0, 0 } } }, indices = { 0, 0, 0 } }`,
		"index mismatch": `return { vertexCount = 1, indexCount = 6,
			vertices = { { position = { 0, 0, 0 } } }, indices = { 0, 0, 0 } }`,
		"index out of range": `return { vertexCount = 1, indexCount = 3,
			vertices = { { position = { 0, 0, 0 } } }, indices = { 0, 1, 0 } }`,
		"short position": `return { vertexCount = 1, indexCount = 3,
			vertices = { { position = { 0, 0 } } }, indices = { 0, 0, 0 } }`,
		"not lua":       `{{{`,
		"missing count": `return { vertices = {}, indices = {} }`,
	}

	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := model.ParseDrawInfo("broken.mesh", []byte(contents))
			if !errors.Is(err, model.ErrCorrupt) {
				t.Fatalf("expected corrupt error, got %v", err)
			}
		})
	}
}

func TestParseUnsupported(t *testing.T) {
	_, err := model.ParseDrawInfo("meshes/cube.obj", []byte("v 0 0 0"))
	if !errors.Is(err, model.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestVertexEncoding(t *testing.T) {
	in := []model.Vertex{{
		Pos:   glm.Vec3{1.5, -2, 3},
		Color: glm.Vec4{0.25, 0.5, 0.75, 1},
		UV:    glm.Vec2{0.125, 0.875},
	}}
	out := model.DecodeVertices(model.EncodeVertices(in))
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("vertex changed in encoding: %+v", out)
	}
}

func TestAppendVerticesReusesBuffer(t *testing.T) {
	in := []model.Vertex{{Pos: glm.Vec3{1, 2, 3}}, {Pos: glm.Vec3{4, 5, 6}}}
	buf := make([]byte, 0, 2*model.VertexSize)

	out := model.AppendVertices(buf, in)
	if len(out) != 2*model.VertexSize || &out[0] != &buf[:1][0] {
		t.Fatal("vertices not packed into the given buffer")
	}
	if allocs := testing.AllocsPerRun(10, func() { model.AppendVertices(buf[:0], in) }); allocs != 0 {
		t.Fatalf("appending allocated %v times", allocs)
	}
}

func BenchmarkParseLuaMesh(b *testing.B) {
	for idx := 0; idx < b.N; idx++ {
		if _, err := model.ParseDrawInfo("quad.mesh", []byte(quadMesh)); err != nil {
			b.Fatal(err)
		}
	}
}
