package event

import (
	"github.com/eapache/queue"
)

// Log is the ordered, append-only buffer of records produced between two
// drains. It is not synchronized; the owning session's lock guards it.
type Log struct {
	q *queue.Queue
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{q: queue.New()}
}

// Append adds e at the tail.
func (l *Log) Append(e Event) {
	l.q.Add(e)
}

// Len returns the number of buffered records.
func (l *Log) Len() int {
	return l.q.Length()
}

// Peek returns the i-th buffered record without removing it.
func (l *Log) Peek(i int) (Event, bool) {
	if i < 0 || i >= l.q.Length() {
		return nil, false
	}
	return l.q.Get(i).(Event), true
}

// Drain removes and returns every buffered record in append order.
// An empty log drains to a nil slice.
func (l *Log) Drain() []Event {
	n := l.q.Length()
	if n == 0 {
		return nil
	}
	out := make([]Event, n)
	for i := range out {
		out[i] = l.q.Remove().(Event)
	}
	return out
}
