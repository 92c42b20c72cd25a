package memcore

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/native"
)

func newTestCore(t *testing.T, opts native.Options) *Core {
	t.Helper()
	c, err := NewFactory().New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c.(*Core)
}

func TestFactory_RejectsOptions(t *testing.T) {
	tests := []struct {
		name string
		opts native.Options
		code native.NewErrorCode
	}{
		{"proxy without host", native.Options{ProxyType: native.ProxySOCKS5, ProxyPort: 1080}, native.NewErrProxyBadHost},
		{"proxy without port", native.Options{ProxyType: native.ProxyHTTP, ProxyHost: "localhost"}, native.NewErrProxyBadPort},
		{"bad proxy type", native.Options{ProxyType: 9}, native.NewErrProxyBadType},
		{"inverted ports", native.Options{StartPort: 100, EndPort: 10}, native.NewErrPortAlloc},
		{"garbage savedata", native.Options{SavedataType: native.SavedataToxSave, Savedata: []byte("nope")}, native.NewErrLoadBadFormat},
		{"short secret key", native.Options{SavedataType: native.SavedataSecretKey, Savedata: []byte{1}}, native.NewErrLoadBadFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory().New(context.Background(), tt.opts)
			var ne *native.NewError
			if !stderrors.As(err, &ne) {
				t.Fatalf("err = %v, want *native.NewError", err)
			}
			if ne.Code != tt.code {
				t.Fatalf("code = %v, want %v", ne.Code, tt.code)
			}
		})
	}
}

func TestFactory_ZeroPortsAccepted(t *testing.T) {
	newTestCore(t, native.Options{IPv6Enabled: true, UDPEnabled: true})
}

func TestCore_BootstrapAnnouncesConnection(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t, native.Options{UDPEnabled: true})
	tr := event.NewTranslator(event.NewLog(), nil, nil)

	if err := c.Iterate(ctx, tr); err != nil {
		t.Fatal(err)
	}
	if tr.Log().Len() != 0 {
		t.Fatal("connection announced before bootstrap")
	}

	if _, err := c.Call(ctx, tr, ActionBootstrap, "node.example", 33445); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	c.Iterate(ctx, tr)
	c.Iterate(ctx, tr)

	events := tr.Log().Drain()
	if len(events) != 1 {
		t.Fatalf("got %d events, want one announcement", len(events))
	}
	if s := events[0].(event.SelfConnectionStatus).Status; s != event.ConnectionUDP {
		t.Fatalf("status = %v", s)
	}
}

func TestCore_EnqueueRunsInOrder(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t, native.Options{})
	tr := event.NewTranslator(event.NewLog(), nil, nil)

	for i := uint32(0); i < 5; i++ {
		c.Enqueue(func(cb native.Callbacks) { cb.FriendReadReceipt(0, i) })
	}
	if c.Pending() != 5 {
		t.Fatalf("Pending = %d", c.Pending())
	}
	if err := c.Iterate(ctx, tr); err != nil {
		t.Fatal(err)
	}

	events := tr.Log().Drain()
	if len(events) != 5 {
		t.Fatalf("got %d events", len(events))
	}
	for i, e := range events {
		if e.(event.FriendReadReceipt).MessageID != uint32(i) {
			t.Fatalf("event %d out of order", i)
		}
	}
	if c.Pending() != 0 {
		t.Fatal("pending callbacks not consumed")
	}
}

func TestCore_CancelledIterateKeepsUnfiredCallbacks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newTestCore(t, native.Options{})
	tr := event.NewTranslator(event.NewLog(), nil, nil)

	c.Enqueue(func(cb native.Callbacks) {
		cb.FriendReadReceipt(0, 0)
		cancel()
	})
	for i := uint32(1); i < 5; i++ {
		c.Enqueue(func(cb native.Callbacks) { cb.FriendReadReceipt(0, i) })
	}

	if err := c.Iterate(ctx, tr); !stderrors.Is(err, context.Canceled) {
		t.Fatalf("Iterate = %v, want context.Canceled", err)
	}
	if c.Pending() != 4 {
		t.Fatalf("Pending = %d, want 4", c.Pending())
	}

	if err := c.Iterate(context.Background(), tr); err != nil {
		t.Fatal(err)
	}
	events := tr.Log().Drain()
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}
	for i, e := range events {
		if e.(event.FriendReadReceipt).MessageID != uint32(i) {
			t.Fatalf("event %d out of order", i)
		}
	}
}

func TestCore_CallbacksEnqueuedDuringIterateWait(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t, native.Options{})
	tr := event.NewTranslator(event.NewLog(), nil, nil)

	c.Enqueue(func(cb native.Callbacks) {
		cb.FriendReadReceipt(0, 0)
		c.Enqueue(func(cb native.Callbacks) { cb.FriendReadReceipt(0, 1) })
	})
	if err := c.Iterate(ctx, tr); err != nil {
		t.Fatal(err)
	}
	if n := tr.Log().Len(); n != 1 || c.Pending() != 1 {
		t.Fatalf("events = %d, pending = %d", n, c.Pending())
	}
	if err := c.Iterate(ctx, tr); err != nil {
		t.Fatal(err)
	}
	if n := tr.Log().Len(); n != 2 {
		t.Fatalf("events = %d, want 2", n)
	}
}

func TestCore_SendMessageFiresReceipt(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t, native.Options{})
	tr := event.NewTranslator(event.NewLog(), nil, nil)

	n, err := c.Call(ctx, tr, ActionFriendAddNorequest, bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("add friend: %v", err)
	}
	id, err := c.Call(ctx, tr, ActionFriendSendMessage, n, float64(0), "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	events := tr.Log().Drain()
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	rr := events[0].(event.FriendReadReceipt)
	if rr.Friend != n.(uint32) || rr.MessageID != id.(uint32) {
		t.Fatalf("receipt = %+v", rr)
	}
}

func TestCore_CallErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t, native.Options{})
	tr := event.NewTranslator(event.NewLog(), nil, nil)

	tests := []struct {
		name   string
		action string
		args   []any
	}{
		{"unknown action", "self_explode", nil},
		{"missing arg", ActionSelfSetName, nil},
		{"wrong arg type", ActionSelfSetName, []any{42}},
		{"unknown friend", ActionFriendDelete, []any{uint32(9)}},
		{"negative friend", ActionFriendDelete, []any{-1}},
		{"short key", ActionFriendAddNorequest, []any{[]byte{1, 2}}},
		{"bootstrap port", ActionBootstrap, []any{"host", 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Call(ctx, tr, tt.action, tt.args...)
			if !errors.Is(err, errors.ErrInvalidArgument) {
				t.Fatalf("err = %v, want invalid argument", err)
			}
		})
	}
}

func TestCore_ProfileActions(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t, native.Options{})

	if _, err := c.Call(ctx, nil, ActionSelfSetName, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Call(ctx, nil, ActionSelfSetStatusMessage, []byte("busy")); err != nil {
		t.Fatal(err)
	}
	name, _ := c.Call(ctx, nil, ActionSelfGetName)
	msg, _ := c.Call(ctx, nil, ActionSelfGetStatusMessage)
	if string(name.([]byte)) != "alice" || string(msg.([]byte)) != "busy" {
		t.Fatalf("profile = %q %q", name, msg)
	}
	key, _ := c.Call(ctx, nil, ActionSelfGetPublicKey)
	if len(key.([]byte)) != native.PublicKeySize {
		t.Fatalf("public key is %d bytes", len(key.([]byte)))
	}
}

func TestCore_SavedataRestores(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t, native.Options{})
	c.Call(ctx, nil, ActionSelfSetName, "alice")
	c.Call(ctx, nil, ActionFriendAddNorequest, bytes.Repeat([]byte{1}, 32))
	c.Call(ctx, nil, ActionFriendAddNorequest, bytes.Repeat([]byte{2}, 32))
	c.Call(ctx, nil, ActionFriendDelete, uint32(0))

	size, err := c.SavedataSize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, size)
	if err := c.Savedata(ctx, buf); err != nil {
		t.Fatal(err)
	}

	restored := newTestCore(t, native.Options{SavedataType: native.SavedataToxSave, Savedata: buf})
	if !bytes.Equal(restored.PublicKey(), c.PublicKey()) {
		t.Fatal("identity not restored")
	}
	name, _ := restored.Call(ctx, nil, ActionSelfGetName)
	if string(name.([]byte)) != "alice" {
		t.Fatalf("name = %q", name)
	}
	list, _ := restored.Call(ctx, nil, ActionFriendList)
	if got := list.([]uint32); len(got) != 1 || got[0] != 1 {
		t.Fatalf("friends = %v", got)
	}
	n, _ := restored.Call(ctx, nil, ActionFriendAddNorequest, bytes.Repeat([]byte{3}, 32))
	if n.(uint32) != 2 {
		t.Fatalf("next friend number = %v", n)
	}
}

func TestCore_SecretKeySavedata(t *testing.T) {
	key := bytes.Repeat([]byte{9}, 32)
	a := newTestCore(t, native.Options{SavedataType: native.SavedataSecretKey, Savedata: key})
	b := newTestCore(t, native.Options{SavedataType: native.SavedataSecretKey, Savedata: key})
	if !bytes.Equal(a.PublicKey(), b.PublicKey()) {
		t.Fatal("same secret key produced different identities")
	}
}

func TestCore_UseAfterKill(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t, native.Options{})
	if err := c.Kill(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Iterate(ctx, nil); !errors.Is(err, errors.ErrNative) {
		t.Fatalf("Iterate after kill = %v", err)
	}
	if err := c.Kill(ctx); !errors.Is(err, errors.ErrNative) {
		t.Fatalf("second Kill = %v", err)
	}
}

func TestFactory_WithCreated(t *testing.T) {
	var got *Core
	f := NewFactory(WithCreated(func(c *Core) { got = c }))
	c, err := f.New(context.Background(), native.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || native.Core(got) != c {
		t.Fatal("created hook not called with the new core")
	}
	if c.IterationInterval() != defaultInterval {
		t.Fatalf("interval = %v", c.IterationInterval())
	}
}
