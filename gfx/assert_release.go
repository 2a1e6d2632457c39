//go:build !debug

package gfx

const debugAssertions = false

func (s *System) violation(err *StateError) error {
	s.stats.Rejected++
	s.log.WithField("state", err.State).Warnf("rejected %s", err.Op)
	return err
}
