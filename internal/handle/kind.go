package handle

import "fmt"

// Kind names a category of native resource, such as a tree sequence.
type Kind string

// Descriptor tells a Registry how to allocate and destroy resources of one
// kind.
//
// Alloc returns an empty resource ready to be initialised. Destroy must
// accept a resource in any state a failed initialisation can leave behind,
// and must be a no-op on a resource that was already destroyed.
type Descriptor struct {
	Alloc   func() any
	Destroy func(res any)
	Kind    Kind
}

func (d Descriptor) validate() error {
	if d.Kind == "" {
		return fmt.Errorf("handle: descriptor has no kind")
	}
	if d.Alloc == nil || d.Destroy == nil {
		return fmt.Errorf("handle: descriptor %s: alloc and destroy are required", d.Kind)
	}
	return nil
}

// Cause records what released a handle.
type Cause string

const (
	CauseExplicit  Cause = "explicit"
	CauseFinalizer Cause = "finalizer"
	CauseScope     Cause = "scope"
	CauseClose     Cause = "close"
)

// State is the liveness of a handle.
type State uint8

const (
	StateLive State = iota + 1
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateReleased:
		return "released"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// EventType identifies a handle lifecycle event.
type EventType uint8

const (
	EventIssued EventType = iota
	EventReleased
)

// Event describes a handle lifecycle change. Cause is set for releases.
type Event struct {
	Kind  Kind
	Cause Cause
	ID    uint64
	Type  EventType
}

// Observer receives handle lifecycle events. Events are delivered after the
// registry's locks are released, possibly from a cleanup goroutine.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHandleEvent(e Event) { f(e) }
