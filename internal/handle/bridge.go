package handle

import (
	"runtime"
	"sync"
)

// Bridge ties a handle's release to a teardown event of the host holding
// it. Whatever fires first, an explicit Release or the bridge, destroys the
// resource; the other is a no-op.
type Bridge interface {
	Bind(h *Handle)
}

// GCBridge releases a handle once the Go garbage collector finds it
// unreachable. Cleanups run on a runtime goroutine.
type GCBridge struct{}

func (GCBridge) Bind(h *Handle) {
	if h == nil || h.s == nil {
		return
	}
	runtime.AddCleanup(h, func(s *slot) {
		s.release(CauseFinalizer)
	}, h.s)
}

// Scope releases every handle bound to it when it is closed, so a caller
// can defer one Close to cover all exit paths.
type Scope struct {
	mu      sync.Mutex
	handles []*Handle
	closed  bool
}

// NewScope returns an open scope.
func NewScope() *Scope {
	return &Scope{}
}

// Bind adds h to the scope. Binding to a closed scope releases h at once.
func (sc *Scope) Bind(h *Handle) {
	if h == nil || h.s == nil {
		return
	}
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		h.s.release(CauseScope)
		return
	}
	sc.handles = append(sc.handles, h)
	sc.mu.Unlock()
}

// Len returns the number of handles bound to the scope.
func (sc *Scope) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.handles)
}

// Close releases every bound handle that is still live, most recent first.
// Calling Close more than once is a no-op.
func (sc *Scope) Close() error {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return nil
	}
	sc.closed = true
	handles := sc.handles
	sc.handles = nil
	sc.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].s.release(CauseScope)
	}
	return nil
}

// Bridges binds a handle to several bridges.
type Bridges []Bridge

func (bs Bridges) Bind(h *Handle) {
	for _, b := range bs {
		b.Bind(h)
	}
}
