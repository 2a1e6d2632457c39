// Package model turns resource files into the data the graphics
// backends upload: mesh draw information, material descriptions and
// decoded textures.
package model

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// package errors
var (
	ErrUnsupportedFormat = errors.New("unsupported resource format")
	ErrCorrupt           = errors.New("corrupt resource file")
)

func corrupt(name string, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", name, ErrCorrupt, fmt.Sprintf(format, args...))
}

func extension(name string) string {
	return strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
}
