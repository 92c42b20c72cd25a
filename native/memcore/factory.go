package memcore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/native"
)

// Factory creates memory cores.
type Factory struct {
	logger   *zap.Logger
	onCreate func(*Core)
	interval time.Duration
}

// Option customizes a Factory.
type Option func(*Factory)

// WithLogger sets the logger handed to every core.
func WithLogger(l *zap.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithInterval sets the iteration interval cores report.
func WithInterval(d time.Duration) Option {
	return func(f *Factory) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithCreated registers a function called with every core the factory
// creates, before it is handed out. Tests use it to reach Enqueue.
func WithCreated(fn func(*Core)) Option {
	return func(f *Factory) {
		f.onCreate = fn
	}
}

// NewFactory returns a native.Factory producing memory cores.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		logger:   zap.NewNop(),
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ native.Factory = (*Factory)(nil)

// New validates the options the way a network core would and creates a core.
func (f *Factory) New(ctx context.Context, opts native.Options) (native.Core, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !opts.ProxyType.Valid() {
		return nil, &native.NewError{Code: native.NewErrProxyBadType}
	}
	if opts.ProxyType != native.ProxyNone {
		if opts.ProxyHost == "" {
			return nil, &native.NewError{Code: native.NewErrProxyBadHost}
		}
		if opts.ProxyPort == 0 {
			return nil, &native.NewError{Code: native.NewErrProxyBadPort}
		}
	}
	if opts.StartPort != 0 && opts.EndPort != 0 && opts.StartPort > opts.EndPort {
		return nil, &native.NewError{Code: native.NewErrPortAlloc}
	}

	c, err := newCore(opts, f)
	if err != nil {
		return nil, err
	}
	if f.onCreate != nil {
		f.onCreate(c)
	}
	return c, nil
}
