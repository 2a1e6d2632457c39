package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devblok/frameforge/utility/kar"
)

func TestCompressExtract(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"meshes/cube.mesh":      "return {}",
		"materials/default.mat": "return { color = { 1, 1, 1, 1 } }",
	}
	for name, contents := range files {
		path := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	archive := filepath.Join(t.TempDir(), "res.kar")
	if err := compressFiles(src, archive, kar.Header{Author: "test", Version: 2}); err != nil {
		t.Fatal(err)
	}
	if err := compressFiles(src, archive, kar.Header{}); err == nil {
		t.Fatal("existing archive overwritten")
	}

	var listing bytes.Buffer
	if err := listFiles(archive, &listing); err != nil {
		t.Fatal(err)
	}
	for name := range files {
		if !strings.Contains(listing.String(), name) {
			t.Fatalf("listing misses %s:\n%s", name, listing.String())
		}
	}
	if !strings.Contains(listing.String(), "author: test") {
		t.Fatalf("listing misses the author:\n%s", listing.String())
	}

	dst := t.TempDir()
	if err := extractFiles(archive, dst); err != nil {
		t.Fatal(err)
	}
	for name, contents := range files {
		data, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != contents {
			t.Fatalf("%s: got %q", name, data)
		}
	}
}
