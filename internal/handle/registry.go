package handle

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handle is an opaque, host-visible reference to a native resource. The
// zero value and nil are never live.
type Handle struct {
	s *slot
}

// slot is the state behind a Handle. Finalizers are attached to the Handle
// and receive the slot, so the slot must never point back at its Handle.
type slot struct {
	mu    sync.Mutex
	reg   *Registry
	desc  *Descriptor
	res   any
	id    uint64
	state State
}

// ID returns the handle's identifier, unique within its registry. IDs are
// never reused.
func (h *Handle) ID() uint64 {
	if h == nil || h.s == nil {
		return 0
	}
	return h.s.id
}

// Kind returns the kind of resource the handle was issued for.
func (h *Handle) Kind() Kind {
	if h == nil || h.s == nil {
		return ""
	}
	return h.s.desc.Kind
}

// State returns the handle's current liveness.
func (h *Handle) State() State {
	if h == nil || h.s == nil {
		return StateReleased
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.s.state
}

// Live reports whether the handle can still be used.
func (h *Handle) Live() bool {
	return h.State() == StateLive
}

func (h *Handle) String() string {
	if h == nil || h.s == nil {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(%d, %s, %s)", h.s.id, h.s.desc.Kind, h.State())
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger. The default is the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithMetrics records lifecycle events in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithDescriptors registers descriptors at construction time. It panics on
// an invalid or duplicate descriptor.
func WithDescriptors(ds ...Descriptor) Option {
	return func(r *Registry) {
		for _, d := range ds {
			if err := r.Register(d); err != nil {
				panic(err)
			}
		}
	}
}

// Registry issues handles and tracks which of them are live.
type Registry struct {
	mu        sync.Mutex
	kinds     map[Kind]*Descriptor
	live      map[uint64]*slot
	observers []Observer
	logger    *zap.Logger
	metrics   *Metrics
	nextID    uint64
	closed    bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		kinds: make(map[Kind]*Descriptor),
		live:  make(map[uint64]*slot),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = Logger()
	}
	return r
}

// Register adds a resource kind. Each kind can be registered once.
func (r *Registry) Register(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.kinds[d.Kind]; dup {
		return fmt.Errorf("handle: kind %s already registered", d.Kind)
	}
	r.kinds[d.Kind] = &d
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Registry) descriptor(kind Kind) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	d, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return d, nil
}

// Issue wraps a freshly constructed resource in a live handle. res must be
// non-nil and of a registered kind. On error the caller still owns res.
func (r *Registry) Issue(kind Kind, res any) (*Handle, error) {
	if res == nil {
		return nil, fmt.Errorf("handle: issue %s: nil resource", kind)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	d, ok := r.kinds[kind]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	r.nextID++
	s := &slot{reg: r, desc: d, res: res, id: r.nextID, state: StateLive}
	r.live[s.id] = s
	observers := r.observers
	r.mu.Unlock()

	r.metrics.onIssue(kind)
	r.logger.Debug("handle issued", zap.Uint64("id", s.id), zap.String("kind", string(kind)))
	notify(observers, Event{Type: EventIssued, ID: s.id, Kind: kind})
	return &Handle{s: s}, nil
}

// Construct allocates a resource of kind, initialises it with init and
// issues a handle for it. If init fails the resource is destroyed before
// Construct returns and no handle is issued. Lifecycle errors returned by
// init (an invalid source handle, unsupported options) are passed through;
// any other failure is wrapped in a *ConstructionError naming op.
func (r *Registry) Construct(op string, kind Kind, init func(res any) error) (*Handle, error) {
	d, err := r.descriptor(kind)
	if err != nil {
		return nil, err
	}
	res := d.Alloc()
	if err := init(res); err != nil {
		d.Destroy(res)
		if errors.Is(err, ErrInvalidHandle) || errors.Is(err, ErrUnsupportedOption) {
			return nil, err
		}
		r.metrics.onConstructFailure(kind)
		r.logger.Debug("construction failed",
			zap.String("op", op), zap.String("kind", string(kind)), zap.Error(err))
		return nil, &ConstructionError{Op: op, Kind: kind, Err: err}
	}
	h, err := r.Issue(kind, res)
	if err != nil {
		d.Destroy(res)
		return nil, err
	}
	return h, nil
}

// resolve checks that h belongs to r and was issued for kind. It does not
// check liveness.
func (r *Registry) resolve(h *Handle, kind Kind) (*slot, error) {
	if h == nil || h.s == nil {
		return nil, invalid(0, kind, "never constructed")
	}
	s := h.s
	if s.reg != r {
		return nil, invalid(s.id, kind, "issued by another registry")
	}
	if s.desc.Kind != kind {
		return nil, invalid(s.id, kind, fmt.Sprintf("refers to a %s", s.desc.Kind))
	}
	return s, nil
}

// Deref returns the resource behind h. It fails with ErrInvalidHandle if h
// is not live or not of kind. The returned resource must not be used after
// the handle is released; use With when releases can happen concurrently.
func (r *Registry) Deref(h *Handle, kind Kind) (any, error) {
	s, err := r.resolve(h, kind)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLive {
		return nil, invalid(s.id, kind, "released")
	}
	return s.res, nil
}

// With calls fn with the resource behind h while holding the handle's lock,
// so the resource cannot be released until fn returns. fn must not release
// h.
func (r *Registry) With(h *Handle, kind Kind, fn func(res any) error) error {
	s, err := r.resolve(h, kind)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLive {
		return invalid(s.id, kind, "released")
	}
	return fn(s.res)
}

// Use is a typed With.
func Use[T any](r *Registry, h *Handle, kind Kind, fn func(T) error) error {
	return r.With(h, kind, func(res any) error {
		v, ok := res.(T)
		if !ok {
			return fmt.Errorf("handle: %s resource is %T", kind, res)
		}
		return fn(v)
	})
}

// Release destroys the resource behind h if it is still live. It is
// idempotent and never fails; nil and foreign handles are ignored. It
// reports whether this call performed the release.
func (r *Registry) Release(h *Handle) bool {
	if h == nil || h.s == nil || h.s.reg != r {
		return false
	}
	return h.s.release(CauseExplicit)
}

func (s *slot) release(cause Cause) bool {
	s.mu.Lock()
	if s.state != StateLive {
		s.mu.Unlock()
		return false
	}
	res := s.res
	s.res = nil
	s.state = StateReleased
	s.desc.Destroy(res)
	s.mu.Unlock()

	s.reg.forget(s, cause)
	return true
}

func (r *Registry) forget(s *slot, cause Cause) {
	r.mu.Lock()
	delete(r.live, s.id)
	observers := r.observers
	r.mu.Unlock()

	kind := s.desc.Kind
	r.metrics.onRelease(kind, cause)
	r.logger.Debug("handle released",
		zap.Uint64("id", s.id), zap.String("kind", string(kind)), zap.String("cause", string(cause)))
	notify(observers, Event{Type: EventReleased, ID: s.id, Kind: kind, Cause: cause})
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// LenKind returns the number of live handles of kind.
func (r *Registry) LenKind(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.live {
		if s.desc.Kind == kind {
			n++
		}
	}
	return n
}

// Close releases every live handle and stops issuing new ones. Calling
// Close more than once is a no-op.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	slots := make([]*slot, 0, len(r.live))
	for _, s := range r.live {
		slots = append(slots, s)
	}
	r.mu.Unlock()

	for _, s := range slots {
		s.release(CauseClose)
	}
	return nil
}

func notify(observers []Observer, e Event) {
	for _, o := range observers {
		o.OnHandleEvent(e)
	}
}
