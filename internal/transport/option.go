package transport

import (
	"time"

	"PastryDHT/internal/logger"
)

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithLogger injects a custom logger into the Server.
func WithLogger(lgr logger.Logger) Option {
	return func(s *Server) {
		s.lgr = lgr
	}
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithClientLogger injects a custom logger into the Client.
func WithClientLogger(lgr logger.Logger) ClientOption {
	return func(c *Client) {
		c.lgr = lgr
	}
}

// WithTimeouts overrides the connect and read bounds of one exchange.
// Non-positive values keep the defaults.
func WithTimeouts(connect, read time.Duration) ClientOption {
	return func(c *Client) {
		if connect > 0 {
			c.connectTimeout = connect
		}
		if read > 0 {
			c.readTimeout = read
		}
	}
}
