package resource_test

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packr"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/resource"
	"github.com/devblok/frameforge/utility/kar"
)

func writeArchive(c *qt.C, files map[string]string) string {
	builder, err := kar.NewBuilder(kar.Header{Author: "test", Version: 1})
	c.Assert(err, qt.IsNil)
	defer builder.Close()
	for name, contents := range files {
		c.Assert(builder.Add(name, strings.NewReader(contents)), qt.IsNil)
	}
	var buf bytes.Buffer
	_, err = builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	path := filepath.Join(c.TempDir(), "res.kar")
	c.Assert(os.WriteFile(path, buf.Bytes(), 0644), qt.IsNil)
	return path
}

func TestClean(t *testing.T) {
	c := qt.New(t)
	c.Assert(resource.Clean("meshes\\cube.mesh"), qt.Equals, "meshes/cube.mesh")
	c.Assert(resource.Clean("/meshes/../meshes/./cube.mesh"), qt.Equals, "meshes/cube.mesh")
	c.Assert(resource.Clean("../../etc/passwd"), qt.Equals, "etc/passwd")
}

func TestDir(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	c.Assert(os.MkdirAll(filepath.Join(dir, "meshes"), 0755), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "meshes", "a.mesh"), []byte("a"), 0644), qt.IsNil)

	src := resource.Dir(dir)
	data, err := src.ReadFile("meshes/a.mesh")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "a")
	c.Assert(src.Has("meshes/a.mesh"), qt.IsTrue)
	c.Assert(src.Has("meshes"), qt.IsFalse)

	_, err = src.ReadFile("meshes/b.mesh")
	c.Assert(err, qt.ErrorIs, fs.ErrNotExist)
}

func TestArchive(t *testing.T) {
	c := qt.New(t)
	path := writeArchive(c, map[string]string{"materials/a.mat": "return {}"})

	a, err := resource.OpenArchive(path)
	c.Assert(err, qt.IsNil)
	defer a.Destroy()

	data, err := a.ReadFile("materials\\a.mat")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "return {}")
	c.Assert(a.Has("materials/a.mat"), qt.IsTrue)

	_, err = a.ReadFile("materials/b.mat")
	c.Assert(err, qt.ErrorIs, resource.ErrNotExist)
}

func TestBox(t *testing.T) {
	c := qt.New(t)
	src := resource.NewBox(packr.NewBox("./testdata/box"))

	data, err := src.ReadFile("hello.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "from the box\n")

	_, err = src.ReadFile("missing.txt")
	c.Assert(errors.Is(err, fs.ErrNotExist), qt.IsTrue)
}

func TestOpenChainOrder(t *testing.T) {
	c := qt.New(t)
	archivePath := writeArchive(c, map[string]string{"hello.txt": "from the archive"})
	dir := c.TempDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("from the dir"), 0644), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "only-dir.txt"), []byte("dir"), 0644), qt.IsNil)

	box := packr.NewBox("./testdata/box")
	src, release, err := resource.Open(core.ResourceConfiguration{
		Directory: dir,
		Archives:  []string{archivePath},
		Builtin:   true,
	}, &box, nil)
	c.Assert(err, qt.IsNil)
	defer release()

	data, err := src.ReadFile("hello.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "from the archive")

	data, err = src.ReadFile("only-dir.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "dir")

	c.Assert(src.Has("nothing.txt"), qt.IsFalse)
	_, err = src.ReadFile("nothing.txt")
	c.Assert(err, qt.ErrorIs, fs.ErrNotExist)
}

func TestOpenBadArchive(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "bad.kar")
	c.Assert(os.WriteFile(path, []byte("not an archive at all"), 0644), qt.IsNil)

	_, _, err := resource.Open(core.ResourceConfiguration{Archives: []string{path}}, nil, nil)
	c.Assert(err, qt.ErrorIs, kar.ErrFileFormat)
}
