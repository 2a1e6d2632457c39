package model_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/bmp"

	"github.com/devblok/frameforge/model"
)

func TestParseMaterialInfo(t *testing.T) {
	info, err := model.ParseMaterialInfo("materials/bricks.mat", []byte(`
		return {
			vertexShader = "shaders/mesh.vert.spv",
			fragmentShader = "shaders/mesh.frag.spv",
			color = { 0.5, 0.5, 0.5, 1 },
			texture = "textures/bricks.png",
		}
	`))
	if err != nil {
		t.Fatal(err)
	}
	if info.VertexShader != "shaders/mesh.vert.spv" || info.FragmentShader != "shaders/mesh.frag.spv" {
		t.Errorf("shaders not read: %+v", info)
	}
	if info.Color != (glm.Vec4{0.5, 0.5, 0.5, 1}) {
		t.Errorf("unexpected color %v", info.Color)
	}
	if info.Texture != "textures/bricks.png" {
		t.Errorf("unexpected texture %q", info.Texture)
	}
}

func TestParseMaterialDefaults(t *testing.T) {
	info, err := model.ParseMaterialInfo("plain.mat", []byte(`return {}`))
	if err != nil {
		t.Fatal(err)
	}
	if info.Color != (glm.Vec4{1, 1, 1, 1}) {
		t.Errorf("expected white, got %v", info.Color)
	}
	if info.VertexShader != "" || info.Texture != "" {
		t.Errorf("expected empty defaults: %+v", info)
	}
}

func TestParseMaterialCorrupt(t *testing.T) {
	for _, contents := range []string{
		`return { vertexShader = "only.vert.spv" }`,
		`return { color = { 1, 1 } }`,
		`return { texture = 4 }`,
	} {
		if _, err := model.ParseMaterialInfo("bad.mat", []byte(contents)); !errors.Is(err, model.ErrCorrupt) {
			t.Errorf("%s: expected corrupt, got %v", contents, err)
		}
	}
	if _, err := model.ParseMaterialInfo("bad.json", []byte(`{}`)); !errors.Is(err, model.ErrUnsupportedFormat) {
		t.Errorf("expected unsupported format, got %v", err)
	}
}

func TestDecodeTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.Set(3, 1, color.NRGBA{G: 255, A: 255})

	var pngBuf, bmpBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&bmpBuf, img); err != nil {
		t.Fatal(err)
	}

	for name, data := range map[string][]byte{"t.png": pngBuf.Bytes(), "t.bmp": bmpBuf.Bytes()} {
		decoded, err := model.DecodeTexture(name, data)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if decoded.Bounds().Dx() != 4 || decoded.Bounds().Dy() != 2 {
			t.Errorf("%s: unexpected bounds %v", name, decoded.Bounds())
		}
		if _, g, _, _ := decoded.At(3, 1).RGBA(); g != 0xffff {
			t.Errorf("%s: pixel lost", name)
		}
	}

	if _, err := model.DecodeTexture("t.txt", []byte("hello")); !errors.Is(err, model.ErrUnsupportedFormat) {
		t.Errorf("expected unsupported format, got %v", err)
	}
}
