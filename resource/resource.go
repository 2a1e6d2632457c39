// Package resource locates resource files. Files are addressed by slash
// separated names relative to the source root, whichever storage backs it.
package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/utility/kar"
)

// ErrNotExist is returned for missing resources,
// it matches fs.ErrNotExist as well
var ErrNotExist = fmt.Errorf("resource %w", fs.ErrNotExist)

// Source reads resource files
type Source interface {
	// ReadFile returns the whole contents of a resource
	ReadFile(name string) ([]byte, error)

	// Has reports whether the resource exists
	Has(name string) bool
}

// Clean normalizes a resource name
func Clean(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func notExist(name string) error {
	return fmt.Errorf("%s: %w", name, ErrNotExist)
}

// Dir is a source backed by a directory on disk
type Dir string

// ReadFile implements Source
func (d Dir) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(Clean(name))))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notExist(name)
	}
	return data, err
}

// Has implements Source
func (d Dir) Has(name string) bool {
	info, err := os.Stat(filepath.Join(string(d), filepath.FromSlash(Clean(name))))
	return err == nil && !info.IsDir()
}

// Archive is a source backed by a kar archive
type Archive struct {
	archive *kar.Archive
	closer  func() error
}

// NewArchive wraps an already opened archive
func NewArchive(ar *kar.Archive) *Archive {
	return &Archive{archive: ar}
}

// OpenArchive memory maps the kar archive at path
func OpenArchive(path string) (*Archive, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ar, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Archive{archive: ar, closer: r.Close}, nil
}

// ReadFile implements Source
func (a *Archive) ReadFile(name string) ([]byte, error) {
	data, err := a.archive.ReadAll(Clean(name))
	if errors.Is(err, kar.ErrNotFound) {
		return nil, notExist(name)
	}
	return data, err
}

// Has implements Source
func (a *Archive) Has(name string) bool {
	_, err := a.archive.Stat(Clean(name))
	return err == nil
}

// Destroy unmaps the archive
func (a *Archive) Destroy() {
	if a.closer != nil {
		a.closer()
		a.closer = nil
	}
}

// Box is a source backed by assets bundled with packr
type Box struct {
	box packr.Box
}

// NewBox wraps a packr box
func NewBox(box packr.Box) *Box {
	return &Box{box: box}
}

// ReadFile implements Source
func (b *Box) ReadFile(name string) ([]byte, error) {
	name = Clean(name)
	if !b.box.Has(name) {
		return nil, notExist(name)
	}
	return b.box.Find(name)
}

// Has implements Source
func (b *Box) Has(name string) bool {
	return b.box.Has(Clean(name))
}

// Chain tries each source in order
type Chain []Source

// ReadFile implements Source
func (c Chain) ReadFile(name string) ([]byte, error) {
	for _, s := range c {
		data, err := s.ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return data, err
	}
	return nil, notExist(name)
}

// Has implements Source
func (c Chain) Has(name string) bool {
	for _, s := range c {
		if s.Has(name) {
			return true
		}
	}
	return false
}

// Open builds the source chain described by the configuration:
// archives first, then the directory, then the built-in box.
// The returned function releases the mapped archives.
func Open(cfg core.ResourceConfiguration, builtin *packr.Box, logger log.FieldLogger) (Source, func(), error) {
	logger = core.LoggerOrDefault(logger)

	var (
		chain    Chain
		archives []*Archive
	)
	release := func() {
		for _, a := range archives {
			a.Destroy()
		}
	}

	for _, p := range cfg.Archives {
		a, err := OpenArchive(p)
		if err != nil {
			release()
			return nil, nil, err
		}
		logger.WithField("archive", p).WithField("files", len(a.archive.List())).Debug("resource archive mapped")
		archives = append(archives, a)
		chain = append(chain, a)
	}
	if cfg.Directory != "" {
		chain = append(chain, Dir(cfg.Directory))
	}
	if cfg.Builtin && builtin != nil {
		chain = append(chain, NewBox(*builtin))
	}
	return chain, release, nil
}
