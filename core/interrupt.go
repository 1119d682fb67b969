package core

// Guard is a scoped interrupt mask. Take it with MaskInterrupts and release
// it with Restore, normally deferred:
//
//	g := core.MaskInterrupts()
//	defer g.Restore()
//
// Guards must not be nested on regular Go builds.
type Guard struct {
	state State
}

// MaskInterrupts suspends interrupt delivery until Restore is called
func MaskInterrupts() Guard {
	return Guard{state: disableInterrupts()}
}

// Restore resumes interrupt delivery
func (g Guard) Restore() {
	restoreInterrupts(g.state)
}

// Interrupt runs fn as an interrupt handler. On TinyGo, where handlers are
// real exceptions, it simply calls fn. On regular Go, where edge sources are
// goroutines, fn runs with interrupts masked so it is serialized against
// other handlers and against MaskInterrupts sections.
func Interrupt(fn func()) {
	if !hostedInterrupts {
		fn()
		return
	}
	g := MaskInterrupts()
	defer g.Restore()
	fn()
}
