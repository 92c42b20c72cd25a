package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wippyai/tox-bridge/bridge"
	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/instance"
	"github.com/wippyai/tox-bridge/native"
	"github.com/wippyai/tox-bridge/native/memcore"
)

var (
	_ instance.Observer = (*Metrics)(nil)
	_ bridge.Recorder   = (*Metrics)(nil)
)

func TestMetrics_Lifecycle(t *testing.T) {
	m := New()
	ctx := context.Background()
	b := bridge.New(memcore.NewFactory(), bridge.WithObserver(m), bridge.WithRecorder(m))

	id, err := b.Create(ctx, native.Options{UDPEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if v := testutil.ToFloat64(m.sessionsLive); v != 1 {
		t.Fatalf("sessions_live = %v", v)
	}

	b.InjectFriendTyping(id, 0, true)
	b.InjectFriendTyping(id, 0, false)
	if _, err := b.Drain(ctx, id); err != nil {
		t.Fatal(err)
	}
	if v := testutil.ToFloat64(m.eventsTotal.WithLabelValues("friend_typing")); v != 2 {
		t.Fatalf("events_drained_total{friend_typing} = %v", v)
	}
	if v := testutil.ToFloat64(m.drainsTotal.WithLabelValues("ok")); v != 1 {
		t.Fatalf("drains_total{ok} = %v", v)
	}
	if v := testutil.ToFloat64(m.injectsTotal.WithLabelValues("friend_typing", "ok")); v != 2 {
		t.Fatalf("injects_total = %v", v)
	}

	b.Kill(ctx, id)
	b.Finalize(id)
	if v := testutil.ToFloat64(m.sessionsLive); v != 0 {
		t.Fatalf("sessions_live after finalize = %v", v)
	}
	if v := testutil.ToFloat64(m.lifecycleTotal.WithLabelValues("finalized")); v != 1 {
		t.Fatalf("finalized transitions = %v", v)
	}

	if _, err := b.Drain(ctx, id); err == nil {
		t.Fatal("drain of finalized session succeeded")
	}
	if v := testutil.ToFloat64(m.drainsTotal.WithLabelValues(string(errors.KindInstanceMissing))); v != 1 {
		t.Fatalf("drains_total{instance_not_found} = %v", v)
	}
}

func TestMetrics_InvokeAndInvalidEnum(t *testing.T) {
	m := New()
	m.ObserveInvoke("self_set_name", time.Millisecond, nil)
	m.ObserveInvoke("self_set_name", time.Millisecond, errors.Killed(errors.PhaseInvoke, 0))
	m.ObserveInvalidEnum(event.KindFriendStatus, "status")

	if v := testutil.ToFloat64(m.invokesTotal.WithLabelValues("self_set_name", "instance_killed")); v != 1 {
		t.Fatalf("invokes_total{killed} = %v", v)
	}
	if v := testutil.ToFloat64(m.invalidEnumTotal.WithLabelValues("friend_status", "status")); v != 1 {
		t.Fatalf("invalid_enum_total = %v", v)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.OnInstanceEvent(instance.Event{Type: instance.EventCreated})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "toxbridge_sessions_live 1") {
		t.Fatalf("exposition missing gauge:\n%s", rec.Body.String())
	}
}
