package gfx

// shared counts the holders of a resource. The release function
// runs once, when the last holder lets go.
type shared struct {
	refs    int
	release func()
}

func newShared(release func()) shared {
	return shared{refs: 1, release: release}
}

// Retain adds a holder
func (s *shared) Retain() {
	s.refs++
}

// Release drops a holder, the last one destroys the backend objects
func (s *shared) Release() {
	if s.refs <= 0 {
		return
	}
	s.refs--
	if s.refs == 0 && s.release != nil {
		s.release()
		s.release = nil
	}
}

// Refs is the number of current holders
func (s *shared) Refs() int {
	return s.refs
}
