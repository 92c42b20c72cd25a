package instance

import (
	"sync"

	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/native"
)

// Session couples one native core with its event log and lifecycle state.
// Its accessors are only meaningful inside a Table.With callback, where the
// session lock is held.
type Session struct {
	core       native.Core
	cb         native.Callbacks
	log        *event.Log
	generation uint64
	mu         sync.Mutex
	id         ID
	state      State
	removed    bool
}

// ID returns the session's table ID.
func (s *Session) ID() ID { return s.id }

// Generation distinguishes sessions that were given the same reused ID.
func (s *Session) Generation() uint64 { return s.generation }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Core returns the native core, or nil once the session is killed.
func (s *Session) Core() native.Core { return s.core }

// Callbacks returns the callbacks that feed this session's log.
func (s *Session) Callbacks() native.Callbacks { return s.cb }

// Log returns the session's event log.
func (s *Session) Log() *event.Log { return s.log }
