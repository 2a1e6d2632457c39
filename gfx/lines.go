package gfx

import (
	"errors"
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/model"
)

// Line is a colored segment in world space
type Line struct {
	From, To glm.Vec3
	Color    glm.Vec4
}

// DebugLines is a fixed capacity set of lines drawn as one line list.
// Lines stay until Reset.
type DebugLines struct {
	shared

	name     core.HashedName
	buffer   BufferHandle
	lines    []Line
	vertices []model.Vertex
}

// Name identifies the line set
func (d *DebugLines) Name() core.HashedName { return d.name }

// Len is the number of lines held
func (d *DebugLines) Len() int { return len(d.lines) }

// Cap is the most lines the set can hold
func (d *DebugLines) Cap() int { return cap(d.lines) }

// Add appends a line, reporting false when the set is full
func (d *DebugLines) Add(line Line) bool {
	if len(d.lines) == cap(d.lines) {
		return false
	}
	d.lines = append(d.lines, line)
	return true
}

// Reset drops every line
func (d *DebugLines) Reset() {
	d.lines = d.lines[:0]
}

// CreateDebugLines reserves a line buffer for up to maxLines lines.
// The caller owns the returned set and releases it.
func (s *System) CreateDebugLines(name string, maxLines int) (*DebugLines, error) {
	if maxLines <= 0 {
		return nil, &ResourceError{Kind: "lines", Path: name, Err: fmt.Errorf("capacity %d", maxLines)}
	}
	buffer, err := s.backend.CreateLineBuffer(maxLines)
	if err != nil {
		return nil, &ResourceError{Kind: "lines", Path: name, Err: err}
	}

	d := &DebugLines{
		name:     core.NewHashedName(name),
		buffer:   buffer,
		lines:    make([]Line, 0, maxLines),
		vertices: make([]model.Vertex, 0, 2*maxLines),
	}
	d.shared = newShared(func() { s.releaseHandles(Handle(buffer)) })
	s.log.WithFields(log.Fields{"lines": name, "capacity": maxLines}).Debug("debug lines created")
	return d, nil
}

// RenderLines submits every line of the set as one draw. It is legal
// where Render is. An empty set submits nothing.
func (s *System) RenderLines(lines *DebugLines) error {
	if _, err := s.transition(opRenderLines); err != nil {
		return err
	}
	if lines == nil {
		return errors.New("gfx: RenderLines without lines")
	}
	if len(lines.lines) == 0 {
		return nil
	}

	lines.vertices = lines.vertices[:0]
	for _, l := range lines.lines {
		lines.vertices = append(lines.vertices,
			model.Vertex{Pos: l.From, Color: l.Color},
			model.Vertex{Pos: l.To, Color: l.Color},
		)
	}
	s.backend.SubmitLines(LineCall{
		Buffer:         lines.buffer,
		Vertices:       lines.vertices,
		ViewProjection: s.viewProjection,
	})
	s.stats.LineCalls++
	return nil
}
