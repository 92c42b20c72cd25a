package event

import (
	"testing"
)

func TestLog_DrainPreservesOrder(t *testing.T) {
	l := NewLog()
	l.Append(FriendTyping{Friend: 1, IsTyping: true})
	l.Append(FriendReadReceipt{Friend: 1, MessageID: 9})
	l.Append(SelfConnectionStatus{Status: ConnectionUDP})

	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}

	got := l.Drain()
	want := []Kind{KindFriendTyping, KindFriendReadReceipt, KindSelfConnectionStatus}
	if len(got) != len(want) {
		t.Fatalf("drained %d events, want %d", len(got), len(want))
	}
	for i, e := range got {
		if e.Kind() != want[i] {
			t.Errorf("event %d: kind %v, want %v", i, e.Kind(), want[i])
		}
	}
	if l.Len() != 0 {
		t.Fatalf("Len after drain = %d", l.Len())
	}
}

func TestLog_SecondDrainIsEmpty(t *testing.T) {
	l := NewLog()
	l.Append(FriendTyping{Friend: 2})
	if n := len(l.Drain()); n != 1 {
		t.Fatalf("first drain returned %d events", n)
	}
	if got := l.Drain(); got != nil {
		t.Fatalf("second drain = %v, want nil", got)
	}
}

func TestLog_Peek(t *testing.T) {
	l := NewLog()
	if _, ok := l.Peek(0); ok {
		t.Fatal("Peek on empty log succeeded")
	}
	l.Append(FriendReadReceipt{MessageID: 1})
	l.Append(FriendReadReceipt{MessageID: 2})

	e, ok := l.Peek(1)
	if !ok {
		t.Fatal("Peek(1) failed")
	}
	if e.(FriendReadReceipt).MessageID != 2 {
		t.Fatalf("Peek(1) = %+v", e)
	}
	if _, ok := l.Peek(-1); ok {
		t.Fatal("Peek(-1) succeeded")
	}
	if l.Len() != 2 {
		t.Fatal("Peek removed an event")
	}
}

func TestLog_ManyEvents(t *testing.T) {
	// Crosses the ring buffer's resize threshold several times.
	l := NewLog()
	for i := uint32(0); i < 1000; i++ {
		l.Append(FriendReadReceipt{MessageID: i})
	}
	got := l.Drain()
	if len(got) != 1000 {
		t.Fatalf("drained %d", len(got))
	}
	for i, e := range got {
		if e.(FriendReadReceipt).MessageID != uint32(i) {
			t.Fatalf("event %d out of order: %+v", i, e)
		}
	}
}
