package core_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/devblok/frameforge/core"
)

func TestSliceUint32(t *testing.T) {
	data := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3}
	words := core.SliceUint32(data)
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if words[0] != 1 || words[1] != 2 {
		t.Fatalf("unexpected words: %v", words)
	}
	if core.SliceUint32([]byte{1, 2}) != nil {
		t.Fatal("expected nil for data shorter than a word")
	}
}

func TestSafeStrings(t *testing.T) {
	safe := core.SafeStrings([]string{"VK_KHR_swapchain", "already\x00"})
	if safe[0] != "VK_KHR_swapchain\x00" {
		t.Errorf("not terminated: %q", safe[0])
	}
	if safe[1] != "already\x00" {
		t.Errorf("terminated twice: %q", safe[1])
	}
}

func TestGetPixelsRowPitch(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})

	pix := core.GetPixels(img, 16)
	if len(pix) != 32 {
		t.Fatalf("expected padded rows, got %d bytes", len(pix))
	}
	if pix[16+4] != 255 || pix[16+7] != 255 {
		t.Fatalf("pixel at (1,1) misplaced: %v", pix[16:24])
	}

	tight := core.GetPixels(img, 0)
	if len(tight) != 16 {
		t.Fatalf("expected tight rows, got %d bytes", len(tight))
	}
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}
