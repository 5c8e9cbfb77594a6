package node

import (
	"time"

	"PastryDHT/internal/domain"
	"PastryDHT/internal/logger"
	"PastryDHT/internal/transport"
)

type options struct {
	lgr            logger.Logger
	space          domain.Space
	bootstrap      string
	gossipInterval time.Duration
	connectTimeout time.Duration
	readTimeout    time.Duration
	opTimeout      time.Duration
}

func defaultOptions() options {
	return options{
		lgr:            &logger.NopLogger{},
		space:          domain.DefaultSpace(),
		connectTimeout: transport.DefaultConnectTimeout,
		readTimeout:    transport.DefaultReadTimeout,
		opTimeout:      DefaultOperationTimeout,
	}
}

// Option is a functional option for configuring a Node.
type Option func(*options)

// WithLogger injects a custom logger into the Node and its components.
func WithLogger(lgr logger.Logger) Option {
	return func(o *options) { o.lgr = lgr }
}

// WithSpace overrides the identifier-space geometry. Every node of a
// deployment must share the same geometry.
func WithSpace(sp domain.Space) Option {
	return func(o *options) { o.space = sp }
}

// WithBootstrap makes the new node join an existing overlay through the
// given "host:port" entry point. Joining is best-effort.
func WithBootstrap(addr string) Option {
	return func(o *options) { o.bootstrap = addr }
}

// WithGossipInterval starts the background routing-info gossip worker
// with the given period. Zero (the default) disables gossip.
func WithGossipInterval(d time.Duration) Option {
	return func(o *options) { o.gossipInterval = d }
}

// WithRPCTimeouts overrides the connect and read bounds of outbound
// exchanges. Non-positive values keep the defaults.
func WithRPCTimeouts(connect, read time.Duration) Option {
	return func(o *options) {
		if connect > 0 {
			o.connectTimeout = connect
		}
		if read > 0 {
			o.readTimeout = read
		}
	}
}

// WithOperationTimeout overrides the wall-time bound of one
// client-facing operation, forwarding included.
func WithOperationTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.opTimeout = d
		}
	}
}
