package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/native"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaults sets the options every create request starts from.
func WithDefaults(opts native.Options) Option {
	return func(s *Server) {
		s.defaults = opts
	}
}

// WithMetrics mounts h at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

// WithMaxStreamClients caps concurrent stream subscribers. 0 means no cap.
func WithMaxStreamClients(n int) Option {
	return func(s *Server) {
		s.maxClients = n
	}
}
