//go:build debug

package gfx_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/gfx/gfxtest"
)

func TestViolationPanics(t *testing.T) {
	c := qt.New(t)
	files := gfxtest.NewFiles(map[string]string{})
	sys, err := gfx.NewSystem(&gfxtest.Backend{}, gfxtest.Window{}, core.DefaultConfiguration().Graphics, files, nil)
	c.Assert(err, qt.IsNil)
	defer sys.Destroy()

	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	defer func() {
		err, _ := recover().(error)
		c.Assert(err, qt.ErrorIs, gfx.ErrStateViolation)
		c.Assert(err, qt.ErrorMatches, "BeginFrame called in state InFrame")
	}()
	sys.BeginFrame(glm.Vec4{})
	c.Fatal("second BeginFrame did not panic")
}
