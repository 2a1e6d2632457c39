package gfxtest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/devblok/frameforge/resource"
)

// Files is an in memory resource.Source. Reads are counted.
type Files struct {
	Data  map[string][]byte
	Reads map[string]int
}

var _ resource.Source = (*Files)(nil)

// NewFiles creates a source serving the given contents
func NewFiles(files map[string]string) *Files {
	f := &Files{
		Data:  make(map[string][]byte, len(files)),
		Reads: make(map[string]int),
	}
	for name, contents := range files {
		f.Data[resource.Clean(name)] = []byte(contents)
	}
	return f
}

// ReadFile implements resource.Source
func (f *Files) ReadFile(name string) ([]byte, error) {
	name = resource.Clean(name)
	f.Reads[name]++
	data, ok := f.Data[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, resource.ErrNotExist)
	}
	return data, nil
}

// Has implements resource.Source
func (f *Files) Has(name string) bool {
	_, ok := f.Data[resource.Clean(name)]
	return ok
}

// PNG encodes a solid w by h image
func PNG(w, h int) string {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0xff, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.String()
}

// Triangle is a single triangle mesh file
const Triangle = `
return {
	vertexCount = 3,
	indexCount = 3,
	vertices = {
		{ position = { -1, -1, 0 }, uv = { 0, 1 } },
		{ position = { 1, -1, 0 }, uv = { 1, 1 } },
		{ position = { 0, 1, 0 }, uv = { 0.5, 0 } },
	},
	indices = { 0, 1, 2 },
}
`

// Plain is a material file without shaders or texture
const Plain = `return { color = { 1, 0, 0, 1 } }`
