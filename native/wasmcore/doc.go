// Package wasmcore runs a native core as a WebAssembly guest on wazero.
//
// A Runtime compiles the guest once and registers the "tox" host module,
// whose functions are the callback entry points. Every Core is a separate,
// anonymous instance of the guest, so sessions never share guest memory.
//
// # Guest ABI
//
// The guest exports:
//
//	memory
//	alloc(size i32) -> ptr i32
//	tox_new(opts_ptr, opts_len i32) -> handle i32   ; negative is -NewErrorCode
//	tox_kill(handle)
//	tox_iterate(handle)
//	tox_iteration_interval(handle) -> ms i32
//	tox_get_savedata_size(handle) -> i32
//	tox_get_savedata(handle, ptr)
//	tox_<action>(handle, args...)                    ; one per invokable action
//
// Byte arguments cross as (ptr, len) pairs in guest memory. Options are
// encoded by EncodeOptions.
//
// # Callbacks
//
// While tox_iterate or tox_<action> runs, the guest calls imports from the
// "tox" module. The host functions find the active native.Callbacks in the
// call's context, so callbacks run inline on the goroutine that made the
// call and land in the caller's log in invocation order.
package wasmcore
