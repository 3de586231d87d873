package api

import (
	"time"

	"github.com/okian/fairway/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRateLimit allows requests per window for each client IP. A
// non-positive request count disables the limit.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		s.rateRequests = requests
		if window > 0 {
			s.rateWindow = window
		}
	}
}

// WithBasicAuth protects the catalog routes with HTTP basic auth. The
// password is checked against a bcrypt hash.
func WithBasicAuth(username, passwordHash string) Option {
	return func(s *Server) {
		s.adminUser = username
		s.adminHash = []byte(passwordHash)
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}
