package host

// Loop is a host's frame loop. onTick runs once per iteration and
// stops the loop by returning false.
type Loop interface {
	RunLoop(onTick func() bool) error
}

// LoopFunc adapts a function to Loop
type LoopFunc func(onTick func() bool) error

// RunLoop calls f(onTick)
func (f LoopFunc) RunLoop(onTick func() bool) error { return f(onTick) }
