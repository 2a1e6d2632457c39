package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestHeapProfileWrittenAfterFailure(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "mem.prof")
	c.Patch(memProfile, path)

	failed := errors.New("run failed")
	err := profiled(func() error { return failed })
	c.Assert(err, qt.ErrorIs, failed)

	info, err := os.Stat(path)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Size() > 0, qt.IsTrue)
}

func TestProfiledWithoutProfiles(t *testing.T) {
	c := qt.New(t)
	c.Patch(memProfile, "")
	c.Patch(cpuProfile, "")
	c.Patch(traceProfile, "")

	ran := false
	c.Assert(profiled(func() error { ran = true; return nil }), qt.IsNil)
	c.Assert(ran, qt.IsTrue)
}
