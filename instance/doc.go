// Package instance owns the table of live native sessions.
//
// A Session pairs one native.Core with the event.Log its callbacks write
// into and a lifecycle state. Sessions are addressed by small integer IDs
// handed out by a Table:
//
//	table := instance.NewTable(logger)
//
//	id, err := table.Insert(ctx, newCore, func(log *event.Log) native.Callbacks {
//	    return event.NewTranslator(log, logger, nil)
//	})
//
//	err = table.WithActive(errors.PhaseDrain, id, func(s *instance.Session) error {
//	    return s.Core().Iterate(ctx, s.Callbacks())
//	})
//
// # Lifecycle
//
//	Insert   -> Active
//	Kill     -> Killed     (native teardown runs exactly once)
//	Finalize -> removed    (ID becomes reusable)
//
// Kill on a Killed session succeeds without doing anything. Finalize on an
// Active session fails with errors.ErrStillActive.
//
// # Locking
//
// Every Session has its own mutex and all native calls run under it, so
// sessions proceed in parallel. The table lock only guards the ID slice and
// the free list and is never held across a native call. When both are
// needed the Session lock is taken first.
//
// # ID reuse
//
// Finalized IDs go onto a free list and are handed out again, most recently
// freed first. A Session resolved before it was finalized notices the
// removal under its own lock and reports errors.ErrNotFound, so a caller
// holding a stale ID never reaches the next generation's state. Unknown and
// finalized IDs fail with the same error text.
package instance
