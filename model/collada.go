package model

import (
	"encoding/xml"
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/util/collada"
)

// colladaColor is given to imported vertices, Collada colors are not read
var colladaColor = glm.Vec4{1.0, 1.0, 0.0, 1.0}

// ImportCollada converts the triangles of the first geometry of a
// Collada document into draw information. Every triangle corner
// becomes its own vertex, indices are sequential.
func ImportCollada(name string, fileContents []byte) (*DrawInfo, error) {
	var colladaModel collada.Collada
	if err := xml.Unmarshal(fileContents, &colladaModel); err != nil {
		return nil, corrupt(name, "%s", err)
	}
	if len(colladaModel.Geometries) == 0 {
		return nil, corrupt(name, "no geometry")
	}

	mesh := &colladaModel.Geometries[0].Mesh
	positions, err := mesh.PositionSource()
	if err != nil {
		return nil, corrupt(name, "%s", err)
	}

	var (
		vertices []Vertex
		indices  []uint32
	)
	for _, triangles := range mesh.Triangles {
		vertexInput, ok := triangles.Input("VERTEX")
		if !ok {
			return nil, corrupt(name, "triangles without VERTEX input")
		}

		var texcoords *collada.Source
		texInput, hasTex := triangles.Input("TEXCOORD")
		if hasTex {
			if texcoords, err = mesh.SourceByRef(texInput.Source); err != nil {
				return nil, corrupt(name, "%s", err)
			}
		}

		stride := triangles.Stride()
		if len(triangles.Index)%(stride*3) != 0 {
			return nil, corrupt(name, "index list of %d does not fit stride %d", len(triangles.Index), stride)
		}

		for corner := 0; corner < len(triangles.Index)/stride; corner++ {
			prim := triangles.Index[corner*stride : corner*stride+stride]

			pos, err := positions.Element(prim[vertexInput.Offset])
			if err != nil {
				return nil, corrupt(name, "%s", err)
			}
			vert := Vertex{
				Pos:   glm.Vec3{pos[0], pos[1], pos[2]},
				Color: colladaColor,
			}
			if hasTex {
				uv, err := texcoords.Element(prim[texInput.Offset])
				if err != nil {
					return nil, corrupt(name, "%s", err)
				}
				vert.UV = glm.Vec2{uv[0], 1 - uv[1]}
			}

			indices = append(indices, uint32(len(vertices)))
			vertices = append(vertices, vert)
		}
	}

	info, err := NewDrawInfo(vertices, indices)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return info, nil
}
