package registry

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/gfx"
)

// ErrNoDebugLines is returned by AddDebugLines before CreateDebugLines
var ErrNoDebugLines = errors.New("debug lines not created")

// DebugLinesEnabled reports whether debug lines are drawn. They are
// only compiled in with the debug build tag, elsewhere the debug line
// calls do nothing.
const DebugLinesEnabled = drawDebugLines

// CreateDebugLines reserves room for maxLines lines drawn at the end
// of every 3D pass. A second call replaces the previous lines.
func (r *Registry) CreateDebugLines(name string, maxLines int) error {
	if !drawDebugLines {
		return nil
	}
	lines, err := r.graphics.CreateDebugLines(name, maxLines)
	if err != nil {
		return err
	}
	if r.lines != nil {
		r.lines.Release()
	}
	r.lines = lines
	r.log.WithFields(log.Fields{
		"lines":    name,
		"capacity": maxLines,
	}).Debug("debug lines created")
	return nil
}

// AddDebugLines adds a line drawn every frame until ResetDebugLines.
// A full line set drops the line and returns ErrPoolExhausted.
func (r *Registry) AddDebugLines(line gfx.Line) error {
	if !drawDebugLines {
		return nil
	}
	if r.lines == nil {
		return ErrNoDebugLines
	}
	if !r.lines.Add(line) {
		return ErrPoolExhausted
	}
	return nil
}

// ResetDebugLines drops every debug line, the capacity stays reserved
func (r *Registry) ResetDebugLines() {
	if r.lines != nil {
		r.lines.Reset()
	}
}

// LenDebugLines is the number of debug lines drawn every frame
func (r *Registry) LenDebugLines() int {
	if r.lines == nil {
		return 0
	}
	return r.lines.Len()
}
