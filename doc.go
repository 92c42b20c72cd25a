// Package toxbridge drives native Tox communication cores on behalf of a
// host program that cannot hold native pointers itself.
//
// Callers address each core through a small integer handle. The bridge
// records every callback a core fires into a per-session event log, and the
// caller pulls those records out in order with Drain.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	toxbridge/
//	├── bridge/          Facade: create, drain, invoke, kill, finalize, snapshot, inject
//	├── instance/        Handle table, session lifecycle and observers
//	├── event/           Event records, the per-session log and the callback translator
//	├── native/          Contract with the native collaborator
//	│   ├── memcore/     In-memory core for tests and local use
//	│   └── wasmcore/    Core compiled to a wasm guest, run on wazero
//	├── snapshot/        Savedata persistence (SQLite, Redis)
//	├── server/          HTTP surface and websocket event stream
//	├── metrics/         Prometheus collectors
//	├── config/          YAML configuration
//	├── errors/          Structured error types
//	└── cmd/             toxbridged daemon and toxbridge console
//
// # Quick Start
//
//	b := bridge.New(memcore.NewFactory())
//	defer b.Close(ctx)
//
//	id, err := b.Create(ctx, native.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := b.Invoke(ctx, id, "bootstrap", "node.example", uint32(33445)); err != nil {
//	    log.Fatal(err)
//	}
//
//	events, err := b.Drain(ctx, id)
//	// events[0] is event.SelfConnectionStatus{Status: event.ConnectionUDP}
//
//	b.Kill(ctx, id)
//	b.Finalize(id)
//
// # Lifecycle
//
// A session is Active after Create, Killed after Kill and gone after
// Finalize. Kill is idempotent. Finalize requires Kill first. A finalized
// handle may be handed out again by a later Create; operations on it before
// that fail with instance_not_found, the same as for a handle never issued.
//
// # Thread Safety
//
// Bridge is safe for concurrent use. Operations on one session are
// serialized; operations on different sessions run in parallel. A native
// core never sees two calls at once.
package toxbridge
