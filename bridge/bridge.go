package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/instance"
	"github.com/wippyai/tox-bridge/native"
)

const maxPort = 65535

// Bridge drives native sessions on behalf of callers.
type Bridge struct {
	factory   native.Factory
	recorder  Recorder
	logger    *zap.Logger
	table     *instance.Table
	observers []instance.Observer
}

// New creates a bridge whose sessions are built by factory.
func New(factory native.Factory, opts ...Option) *Bridge {
	b := &Bridge{
		factory:  factory,
		recorder: nopRecorder{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.table = instance.NewTable(b.logger.Named("instance"))
	for _, o := range b.observers {
		b.table.Subscribe(o)
	}
	return b
}

// Create validates opts and registers a new Active session.
func (b *Bridge) Create(ctx context.Context, opts native.Options) (instance.ID, error) {
	if err := ValidateOptions(opts); err != nil {
		return 0, err
	}
	return b.table.Insert(ctx,
		func(ctx context.Context) (native.Core, error) {
			return b.factory.New(ctx, opts)
		},
		b.callbacks,
	)
}

func (b *Bridge) callbacks(log *event.Log) native.Callbacks {
	return event.NewTranslator(log, b.logger.Named("translator"), func(k event.Kind, field string, _ uint32) {
		b.recorder.ObserveInvalidEnum(k, field)
	})
}

// ValidateOptions checks the value domains of creation options. The proxy
// port is only checked when a proxy is configured.
func ValidateOptions(opts native.Options) error {
	if !opts.ProxyType.Valid() {
		return errors.InvalidEnum(errors.PhaseCreate, []string{"proxy_type"}, uint32(opts.ProxyType), "ProxyType")
	}
	if !opts.SavedataType.Valid() {
		return errors.InvalidEnum(errors.PhaseCreate, []string{"savedata_type"}, uint32(opts.SavedataType), "SavedataType")
	}
	if opts.ProxyType != native.ProxyNone {
		if err := checkPort("proxy_port", opts.ProxyPort); err != nil {
			return err
		}
	}
	if err := checkPort("start_port", opts.StartPort); err != nil {
		return err
	}
	if err := checkPort("end_port", opts.EndPort); err != nil {
		return err
	}
	return checkPort("tcp_port", opts.TCPPort)
}

func checkPort(field string, v int) error {
	if v < 0 || v > maxPort {
		return errors.OutOfRange(errors.PhaseCreate, []string{field}, v, 0, maxPort)
	}
	return nil
}

// Drain runs one native processing step and returns every event buffered
// since the previous drain, in callback order. On a Killed session no native
// call is made and only the already buffered events are returned. If the
// processing step fails nothing is drained.
func (b *Bridge) Drain(ctx context.Context, id instance.ID) ([]event.Event, error) {
	start := time.Now()
	var out []event.Event
	err := b.table.With(errors.PhaseDrain, id, func(s *instance.Session) error {
		if s.State() == instance.StateActive {
			if err := s.Core().Iterate(ctx, s.Callbacks()); err != nil {
				return errors.Native(errors.PhaseDrain, "native iterate failed", err)
			}
		}
		out = s.Log().Drain()
		return nil
	})
	b.recorder.ObserveDrain(out, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Invoke runs a named native action. Events the action fires synchronously
// are buffered for the next Drain.
func (b *Bridge) Invoke(ctx context.Context, id instance.ID, action string, args ...any) (any, error) {
	if action == "" {
		return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{"action"}, action, "action name is empty")
	}
	start := time.Now()
	res, err := instance.Call(b.table, errors.PhaseInvoke, id, func(s *instance.Session) (any, error) {
		res, err := s.Core().Call(ctx, s.Callbacks(), action, args...)
		if err != nil {
			var be *errors.Error
			if errors.As(err, &be) {
				return nil, be
			}
			return nil, errors.Native(errors.PhaseInvoke, action, err)
		}
		return res, nil
	})
	b.recorder.ObserveInvoke(action, time.Since(start), err)
	return res, err
}

// Kill tears down the session's native core. Killing a Killed session
// succeeds without doing anything.
func (b *Bridge) Kill(ctx context.Context, id instance.ID) error {
	return b.table.Kill(ctx, id)
}

// Finalize removes a Killed session.
func (b *Bridge) Finalize(id instance.ID) error {
	return b.table.Finalize(id)
}

// Snapshot returns the native core's serialized state.
func (b *Bridge) Snapshot(ctx context.Context, id instance.ID) ([]byte, error) {
	return instance.Call(b.table, errors.PhaseSnapshot, id, func(s *instance.Session) ([]byte, error) {
		n, err := s.Core().SavedataSize(ctx)
		if err != nil {
			return nil, errors.Native(errors.PhaseSnapshot, "savedata size", err)
		}
		if n < 0 {
			return nil, errors.New(errors.PhaseSnapshot, errors.KindNative).
				Value(n).Detail("negative savedata size %d", n).Build()
		}
		buf := make([]byte, n)
		if err := s.Core().Savedata(ctx, buf); err != nil {
			return nil, errors.Native(errors.PhaseSnapshot, "savedata", err)
		}
		return buf, nil
	})
}

// IterationInterval reports how long to wait before the next Drain.
func (b *Bridge) IterationInterval(id instance.ID) (time.Duration, error) {
	return instance.Call(b.table, errors.PhaseQuery, id, func(s *instance.Session) (time.Duration, error) {
		return s.Core().IterationInterval(), nil
	})
}

// State reports the lifecycle state of a registered session.
func (b *Bridge) State(id instance.ID) (instance.State, error) {
	var st instance.State
	err := b.table.With(errors.PhaseQuery, id, func(s *instance.Session) error {
		st = s.State()
		return nil
	})
	return st, err
}

// Generation reports the generation of the session currently registered
// under id. A reused ID gets a new generation.
func (b *Bridge) Generation(id instance.ID) (uint64, error) {
	var gen uint64
	err := b.table.With(errors.PhaseQuery, id, func(s *instance.Session) error {
		gen = s.Generation()
		return nil
	})
	return gen, err
}

// Sessions lists registered session IDs in ascending order.
func (b *Bridge) Sessions() []instance.ID {
	return b.table.IDs()
}

// Len returns the number of registered sessions.
func (b *Bridge) Len() int {
	return b.table.Len()
}

// Subscribe adds a lifecycle observer after construction.
func (b *Bridge) Subscribe(o instance.Observer) {
	b.table.Subscribe(o)
}

// Unsubscribe removes a lifecycle observer.
func (b *Bridge) Unsubscribe(o instance.Observer) {
	b.table.Unsubscribe(o)
}

// Close kills and finalizes every session and refuses further creates.
func (b *Bridge) Close(ctx context.Context) error {
	return b.table.Close(ctx)
}
