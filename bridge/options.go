package bridge

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/instance"
)

// Option customizes a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used by the bridge, its table and translators.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithObserver subscribes o to session lifecycle events.
func WithObserver(o instance.Observer) Option {
	return func(b *Bridge) {
		b.observers = append(b.observers, o)
	}
}

// WithRecorder installs a Recorder for operation measurements.
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) {
		if r != nil {
			b.recorder = r
		}
	}
}

// Recorder receives measurements of bridge operations.
type Recorder interface {
	ObserveDrain(events []event.Event, elapsed time.Duration, err error)
	ObserveInvoke(action string, elapsed time.Duration, err error)
	ObserveInject(kind event.Kind, err error)
	ObserveInvalidEnum(kind event.Kind, field string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDrain([]event.Event, time.Duration, error) {}
func (nopRecorder) ObserveInvoke(string, time.Duration, error)       {}
func (nopRecorder) ObserveInject(event.Kind, error)                  {}
func (nopRecorder) ObserveInvalidEnum(event.Kind, string)            {}
