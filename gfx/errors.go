package gfx

import (
	"errors"
	"fmt"
)

// package errors
var (
	ErrInitialization = errors.New("graphics initialization failed")
	ErrResourceLoad   = errors.New("resource load failed")
	ErrStateViolation = errors.New("frame state violation")
	ErrDeviceLost     = errors.New("graphics device lost")
	ErrNameCollision  = errors.New("resource name hash collision")
)

// ResourceError is returned when a mesh, material or texture could not be
// created. Nothing is inserted into a cache when it is returned.
type ResourceError struct {
	Kind string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Path, e.Err)
}

// Unwrap returns the underlying cause
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Is makes every ResourceError match ErrResourceLoad
func (e *ResourceError) Is(target error) bool {
	return target == ErrResourceLoad
}

// StateError is returned by frame operations called out of order
type StateError struct {
	Op    string
	State FrameState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s called in state %s", e.Op, e.State)
}

// Is makes every StateError match ErrStateViolation
func (e *StateError) Is(target error) bool {
	return target == ErrStateViolation
}
