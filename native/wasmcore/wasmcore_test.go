package wasmcore

import (
	"bytes"
	"context"
	"encoding/binary"
	stderrors "errors"
	"testing"
	"time"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/native"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := New(ctx, testGuest(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

func newTestCore(t *testing.T, rt *Runtime) native.Core {
	t.Helper()
	c, err := rt.New(context.Background(), native.Options{IPv6Enabled: true, UDPEnabled: true})
	if err != nil {
		t.Fatalf("rt.New: %v", err)
	}
	return c
}

func TestCore_IterateOutOfBoundsGuestRead(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, outOfBoundsGuest(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close(ctx)
	c := newTestCore(t, rt)

	tr := event.NewTranslator(event.NewLog(), nil, nil)
	err = c.Iterate(ctx, tr)
	if errors.KindOf(err) != errors.KindNative {
		t.Fatalf("Iterate = %v, want native", err)
	}
	if tr.Log().Len() != 0 {
		t.Fatalf("aborted call appended %d events", tr.Log().Len())
	}
}

func TestEncodeOptions(t *testing.T) {
	enc := EncodeOptions(native.Options{
		IPv6Enabled:  true,
		ProxyType:    native.ProxySOCKS5,
		ProxyHost:    "proxy",
		ProxyPort:    1080,
		StartPort:    33445,
		EndPort:      33545,
		TCPPort:      0,
		SavedataType: native.SavedataSecretKey,
		Savedata:     []byte{1, 2},
	})

	if len(enc) != optionsHeaderSize+5+2 {
		t.Fatalf("len = %d", len(enc))
	}
	if enc[0] != 1 || enc[1] != 0 || enc[2] != 2 || enc[3] != 2 {
		t.Fatalf("flags = %v", enc[:4])
	}
	if p := binary.LittleEndian.Uint16(enc[4:]); p != 1080 {
		t.Fatalf("proxy port = %d", p)
	}
	if p := binary.LittleEndian.Uint16(enc[6:]); p != 33445 {
		t.Fatalf("start port = %d", p)
	}
	if n := binary.LittleEndian.Uint32(enc[12:]); n != 5 {
		t.Fatalf("host length = %d", n)
	}
	if string(enc[optionsHeaderSize:optionsHeaderSize+5]) != "proxy" {
		t.Fatalf("host = %q", enc[optionsHeaderSize:])
	}
	if !bytes.Equal(enc[optionsHeaderSize+5:], []byte{1, 2}) {
		t.Fatalf("savedata = %v", enc[optionsHeaderSize+5:])
	}
}

func TestNew_RejectsIncompleteGuest(t *testing.T) {
	ctx := context.Background()
	// A module with only the header exports nothing.
	_, err := New(ctx, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, nil)
	var e *errors.Error
	if !errors.As(err, &e) || e.Phase != errors.PhaseLoad {
		t.Fatalf("err = %v, want load error", err)
	}

	if _, err := New(ctx, []byte("not wasm"), nil); err == nil {
		t.Fatal("garbage compiled")
	}
}

func TestRuntime_NewErrorCode(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.New(context.Background(), native.Options{UDPEnabled: false})
	var ne *native.NewError
	if !stderrors.As(err, &ne) || ne.Code != native.NewErrMalloc {
		t.Fatalf("err = %v, want malloc", err)
	}
}

func TestCore_IterateFiresCallbacksInOrder(t *testing.T) {
	rt := newTestRuntime(t)
	c := newTestCore(t, rt)
	tr := event.NewTranslator(event.NewLog(), nil, nil)

	if err := c.Iterate(context.Background(), tr); err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	events := tr.Log().Drain()
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if s := events[0].(event.SelfConnectionStatus).Status; s != event.ConnectionUDP {
		t.Fatalf("status = %v", s)
	}
	fr := events[1].(event.FriendRequest)
	if fr.PublicKey != (event.PublicKey{}) || string(fr.Message) != "hi" {
		t.Fatalf("friend request = %+v", fr)
	}
}

func TestCore_CallMarshalsBytes(t *testing.T) {
	rt := newTestRuntime(t)
	c := newTestCore(t, rt)
	tr := event.NewTranslator(event.NewLog(), nil, nil)

	res, err := c.Call(context.Background(), tr, "friend_send_message", uint32(4), float64(1), []byte("wave"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.(uint32) != 7 {
		t.Fatalf("result = %v", res)
	}

	events := tr.Log().Drain()
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	fm := events[0].(event.FriendMessage)
	if fm.Friend != 4 || fm.Type != event.MessageAction || string(fm.Message) != "wave" {
		t.Fatalf("friend message = %+v", fm)
	}
}

func TestCore_CallArgumentErrors(t *testing.T) {
	rt := newTestRuntime(t)
	c := newTestCore(t, rt)
	ctx := context.Background()

	tests := []struct {
		name   string
		action string
		args   []any
	}{
		{"unknown action", "friend_hug", nil},
		{"lifecycle export", "iterate", nil},
		{"too few", "friend_send_message", []any{uint32(1)}},
		{"too many", "friend_send_message", []any{1, 0, "x", 5}},
		{"fraction", "friend_send_message", []any{1.5, 0, "x"}},
		{"unsupported type", "friend_send_message", []any{struct{}{}, 0, "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Call(ctx, nil, tt.action, tt.args...)
			if !errors.Is(err, errors.ErrInvalidArgument) {
				t.Fatalf("err = %v, want invalid argument", err)
			}
		})
	}
}

func TestCore_Savedata(t *testing.T) {
	rt := newTestRuntime(t)
	c := newTestCore(t, rt)
	ctx := context.Background()

	n, err := c.SavedataSize(ctx)
	if err != nil || n != 4 {
		t.Fatalf("SavedataSize = %d, %v", n, err)
	}
	buf := make([]byte, n)
	if err := c.Savedata(ctx, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "SAVE" {
		t.Fatalf("savedata = %q", buf)
	}
	if d := c.IterationInterval(); d != 50*time.Millisecond {
		t.Fatalf("interval = %v", d)
	}
}

func TestCore_InstancesAreIsolated(t *testing.T) {
	rt := newTestRuntime(t)
	a := newTestCore(t, rt)
	b := newTestCore(t, rt)
	ctx := context.Background()

	if err := a.Kill(ctx); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	tr := event.NewTranslator(event.NewLog(), nil, nil)
	if err := b.Iterate(ctx, tr); err != nil {
		t.Fatalf("sibling broken by kill: %v", err)
	}
	if tr.Log().Len() != 2 {
		t.Fatalf("got %d events", tr.Log().Len())
	}
}

func TestRuntime_Actions(t *testing.T) {
	rt := newTestRuntime(t)
	actions := rt.Actions()
	if len(actions) != 1 || actions[0] != "friend_send_message" {
		t.Fatalf("actions = %v", actions)
	}
}

func TestHost_CallbackWithoutCallerIsDropped(t *testing.T) {
	rt := newTestRuntime(t)
	c := newTestCore(t, rt)
	// No callbacks in context: the guest's callbacks are logged and dropped.
	if err := c.Iterate(context.Background(), nil); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
}
