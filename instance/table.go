package instance

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/native"
)

// NewCoreFunc creates the native core for a new session.
type NewCoreFunc func(ctx context.Context) (native.Core, error)

// CallbacksFunc builds the callbacks that write into a session's log.
type CallbacksFunc func(log *event.Log) native.Callbacks

// Table maps IDs to sessions.
type Table struct {
	logger    *zap.Logger
	entries   []*Session
	freeList  []ID
	observers []Observer
	nextGen   uint64
	live      int
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table. logger may be nil.
func NewTable(logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		logger:   logger,
		entries:  make([]*Session, 0, 16),
		freeList: make([]ID, 0, 8),
	}
}

// Insert creates a core with newCore and registers it as an Active session.
// newCore runs without the table lock. If it fails nothing is registered and
// its error is the Cause of a KindAllocation error.
func (t *Table) Insert(ctx context.Context, newCore NewCoreFunc, callbacks CallbacksFunc) (ID, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return 0, errors.Closed(errors.PhaseCreate, "instance table")
	}

	core, err := newCore(ctx)
	if err != nil {
		return 0, errors.Allocation(errors.PhaseCreate, err)
	}
	if core == nil {
		return 0, errors.Allocation(errors.PhaseCreate, errors.New(errors.PhaseCreate, errors.KindNative).
			Detail("factory returned no core").Build())
	}

	log := event.NewLog()
	s := &Session{
		core:  core,
		log:   log,
		state: StateActive,
	}
	if callbacks != nil {
		s.cb = callbacks(log)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		if kerr := core.Kill(ctx); kerr != nil {
			t.logger.Error("teardown of unregistered core failed", zap.Error(kerr))
		}
		return 0, errors.Closed(errors.PhaseCreate, "instance table")
	}
	t.nextGen++
	s.generation = t.nextGen
	if n := len(t.freeList); n > 0 {
		s.id = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[s.id] = s
	} else {
		s.id = ID(len(t.entries))
		t.entries = append(t.entries, s)
	}
	t.live++
	t.mu.Unlock()

	t.logger.Debug("instance created", zap.Uint32("id", s.id), zap.Uint64("generation", s.generation))
	t.notify(Event{Type: EventCreated, ID: s.id, Generation: s.generation})
	return s.id, nil
}

func (t *Table) lookup(id ID) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) >= len(t.entries) {
		return nil
	}
	return t.entries[id]
}

// With runs op with exclusive access to the session registered under id.
// It fails with KindInstanceMissing if id is unknown or finalized, including
// when the session is finalized while With waits for its lock.
func (t *Table) With(phase errors.Phase, id ID, op func(*Session) error) error {
	s := t.lookup(id)
	if s == nil {
		return errors.NotFound(phase, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return errors.NotFound(phase, id)
	}
	return op(s)
}

// WithActive is With for operations that need the native core. It fails
// with KindKilled once the session has been killed.
func (t *Table) WithActive(phase errors.Phase, id ID, op func(*Session) error) error {
	return t.With(phase, id, func(s *Session) error {
		if s.state != StateActive {
			return errors.Killed(phase, id)
		}
		return op(s)
	})
}

// Call is WithActive for operations that produce a value.
func Call[T any](t *Table, phase errors.Phase, id ID, op func(*Session) (T, error)) (T, error) {
	var out T
	err := t.WithActive(phase, id, func(s *Session) error {
		var err error
		out, err = op(s)
		return err
	})
	return out, err
}

// Kill tears down the session's native core and moves it to Killed.
// Killing a Killed session succeeds and does nothing. Buffered events stay
// in the log. If teardown fails the session is still Killed, since the core
// must not be touched again, and the error is returned as KindNative.
func (t *Table) Kill(ctx context.Context, id ID) error {
	var (
		ev       Event
		killed   bool
		teardown error
	)
	err := t.With(errors.PhaseKill, id, func(s *Session) error {
		if s.state == StateKilled {
			return nil
		}
		teardown = s.core.Kill(ctx)
		s.core = nil
		s.state = StateKilled
		killed = true
		ev = Event{Type: EventKilled, ID: id, Generation: s.generation, Err: teardown}
		return nil
	})
	if err != nil {
		return err
	}
	if !killed {
		t.logger.Debug("instance already killed", zap.Uint32("id", id))
		return nil
	}

	if teardown != nil {
		t.logger.Error("native teardown failed", zap.Uint32("id", id), zap.Error(teardown))
	} else {
		t.logger.Debug("instance killed", zap.Uint32("id", id))
	}
	t.notify(ev)
	if teardown != nil {
		return errors.Native(errors.PhaseKill, "native teardown failed", teardown)
	}
	return nil
}

// Finalize removes a Killed session from the table and discards whatever is
// left in its log. The ID becomes available for reuse.
func (t *Table) Finalize(id ID) error {
	var ev Event
	err := t.With(errors.PhaseFinalize, id, func(s *Session) error {
		if s.state == StateActive {
			return errors.StillActive(errors.PhaseFinalize, id)
		}
		s.removed = true
		s.log.Drain()
		s.cb = nil

		t.mu.Lock()
		t.entries[id] = nil
		t.freeList = append(t.freeList, id)
		t.live--
		t.mu.Unlock()

		ev = Event{Type: EventFinalized, ID: id, Generation: s.generation}
		return nil
	})
	if err != nil {
		return err
	}
	t.logger.Debug("instance finalized", zap.Uint32("id", id))
	t.notify(ev)
	return nil
}

// IDs returns the registered IDs in ascending order.
func (t *Table) IDs() []ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ID, 0, t.live)
	for i, s := range t.entries {
		if s != nil {
			out = append(out, ID(i))
		}
	}
	return out
}

// Len returns the number of registered sessions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close stops accepting inserts, then kills and finalizes every session.
// It returns the first teardown error.
func (t *Table) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	var first error
	for _, id := range t.IDs() {
		if err := t.Kill(ctx, id); err != nil && first == nil && !errors.Is(err, errors.ErrNotFound) {
			first = err
		}
		if err := t.Finalize(id); err != nil && !errors.Is(err, errors.ErrNotFound) && first == nil {
			first = err
		}
	}
	return first
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnInstanceEvent(e)
	}
}
