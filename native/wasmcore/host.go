package wasmcore

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/native"
)

// HostModule is the import module name the guest calls back into.
const HostModule = "tox"

type callbacksKey struct{}

func withCallbacks(ctx context.Context, cb native.Callbacks) context.Context {
	return context.WithValue(ctx, callbacksKey{}, cb)
}

func callbacksFrom(ctx context.Context) native.Callbacks {
	cb, _ := ctx.Value(callbacksKey{}).(native.Callbacks)
	return cb
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

type hostFunc struct {
	fn     func(cb native.Callbacks, mem api.Memory, stack []uint64)
	name   string
	params []api.ValueType
}

// read returns a view of guest memory. An out of bounds range aborts the
// guest call.
func read(mem api.Memory, ptr, n uint64) []byte {
	if mem == nil {
		panic(errors.Native(errors.PhaseTranslate, "guest has no memory", nil))
	}
	b, ok := mem.Read(api.DecodeU32(ptr), api.DecodeU32(n))
	if !ok {
		panic(errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			Detail("guest memory range %d+%d out of bounds", api.DecodeU32(ptr), api.DecodeU32(n)).Build())
	}
	return b
}

func u32(v uint64) uint32 { return api.DecodeU32(v) }

var hostFuncs = []hostFunc{
	{name: "self_connection_status", params: []api.ValueType{i32},
		fn: func(cb native.Callbacks, _ api.Memory, s []uint64) {
			cb.SelfConnectionStatus(u32(s[0]))
		}},
	{name: "friend_name", params: []api.ValueType{i32, i32, i32},
		fn: func(cb native.Callbacks, m api.Memory, s []uint64) {
			cb.FriendName(u32(s[0]), read(m, s[1], s[2]))
		}},
	{name: "friend_status_message", params: []api.ValueType{i32, i32, i32},
		fn: func(cb native.Callbacks, m api.Memory, s []uint64) {
			cb.FriendStatusMessage(u32(s[0]), read(m, s[1], s[2]))
		}},
	{name: "friend_status", params: []api.ValueType{i32, i32},
		fn: func(cb native.Callbacks, _ api.Memory, s []uint64) {
			cb.FriendStatus(u32(s[0]), u32(s[1]))
		}},
	{name: "friend_connection_status", params: []api.ValueType{i32, i32},
		fn: func(cb native.Callbacks, _ api.Memory, s []uint64) {
			cb.FriendConnectionStatus(u32(s[0]), u32(s[1]))
		}},
	{name: "friend_typing", params: []api.ValueType{i32, i32},
		fn: func(cb native.Callbacks, _ api.Memory, s []uint64) {
			cb.FriendTyping(u32(s[0]), u32(s[1]) != 0)
		}},
	{name: "friend_read_receipt", params: []api.ValueType{i32, i32},
		fn: func(cb native.Callbacks, _ api.Memory, s []uint64) {
			cb.FriendReadReceipt(u32(s[0]), u32(s[1]))
		}},
	{name: "friend_request", params: []api.ValueType{i32, i32, i32},
		fn: func(cb native.Callbacks, m api.Memory, s []uint64) {
			cb.FriendRequest(read(m, s[0], native.PublicKeySize), read(m, s[1], s[2]))
		}},
	{name: "friend_message", params: []api.ValueType{i32, i32, i32, i32},
		fn: func(cb native.Callbacks, m api.Memory, s []uint64) {
			cb.FriendMessage(u32(s[0]), u32(s[1]), read(m, s[2], s[3]))
		}},
	{name: "file_recv_control", params: []api.ValueType{i32, i32, i32},
		fn: func(cb native.Callbacks, _ api.Memory, s []uint64) {
			cb.FileRecvControl(u32(s[0]), u32(s[1]), u32(s[2]))
		}},
	{name: "file_chunk_request", params: []api.ValueType{i32, i32, i64, i32},
		fn: func(cb native.Callbacks, _ api.Memory, s []uint64) {
			cb.FileChunkRequest(u32(s[0]), u32(s[1]), s[2], u32(s[3]))
		}},
	{name: "file_recv", params: []api.ValueType{i32, i32, i32, i64, i32, i32},
		fn: func(cb native.Callbacks, m api.Memory, s []uint64) {
			cb.FileRecv(u32(s[0]), u32(s[1]), u32(s[2]), s[3], read(m, s[4], s[5]))
		}},
	{name: "file_recv_chunk", params: []api.ValueType{i32, i32, i64, i32, i32},
		fn: func(cb native.Callbacks, m api.Memory, s []uint64) {
			cb.FileRecvChunk(u32(s[0]), u32(s[1]), s[2], read(m, s[3], s[4]))
		}},
	{name: "friend_lossy_packet", params: []api.ValueType{i32, i32, i32},
		fn: func(cb native.Callbacks, m api.Memory, s []uint64) {
			cb.FriendLossyPacket(u32(s[0]), read(m, s[1], s[2]))
		}},
	{name: "friend_lossless_packet", params: []api.ValueType{i32, i32, i32},
		fn: func(cb native.Callbacks, m api.Memory, s []uint64) {
			cb.FriendLosslessPacket(u32(s[0]), read(m, s[1], s[2]))
		}},
}

// instantiateHost registers the callback imports on rt.
func instantiateHost(ctx context.Context, rt wazero.Runtime, logger *zap.Logger) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(HostModule)
	for _, hf := range hostFuncs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				cb := callbacksFrom(ctx)
				if cb == nil {
					logger.Warn("guest callback outside of a bridge call", zap.String("callback", hf.name))
					return
				}
				hf.fn(cb, mod.Memory(), stack)
			}), hf.params, nil).
			Export(hf.name)
	}
	return builder.Instantiate(ctx)
}
