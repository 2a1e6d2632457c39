//go:build debug

package gfx

// protocol violations are programming errors in debug builds
const debugAssertions = true

func (s *System) violation(err *StateError) error {
	panic(err)
}
