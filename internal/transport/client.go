package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"time"

	"PastryDHT/internal/ctxutil"
	"PastryDHT/internal/logger"
	"PastryDHT/internal/wire"
)

// Default wall-time bounds for one outbound exchange.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 5 * time.Second
)

// Client performs synchronous request-response exchanges against remote
// nodes. Each Send opens a fresh connection, writes one frame, reads one
// frame and closes; no pooling.
type Client struct {
	lgr            logger.Logger
	connectTimeout time.Duration
	readTimeout    time.Duration
}

// NewClient creates a client with the default timeouts unless overridden
// through options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		lgr:            &logger.NopLogger{},
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers msg to the node at addr and returns its response.
//
// Send never fails loudly: a connect, write, read, decode or timeout
// failure is converted into a synthetic {status:"error"} response so the
// caller can treat remote trouble exactly like a remote error reply.
// Cancellation of ctx is honored while connecting; once connected, the
// exchange is bounded by the configured read timeout or by the deadline
// of ctx, whichever comes first.
func (c *Client) Send(ctx context.Context, addr string, msg wire.Message) wire.Response {
	trace := ctxutil.GetTraceID(ctx)

	dialer := net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.lgr.Warn("Send: connect failed",
			logger.F("addr", addr), logger.F("trace", trace), logger.F("err", err.Error()))
		return wire.Errorf("connect %s: %v", addr, err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return wire.Errorf("set deadline %s: %v", addr, err)
	}

	if err := wire.WriteFrame(conn, msg); err != nil {
		c.lgr.Warn("Send: write failed",
			logger.F("addr", addr), logger.F("trace", trace), logger.F("err", err.Error()))
		return wire.Errorf("send to %s: %v", addr, err)
	}

	frame, err := wire.ReadFrame(bufio.NewReader(conn))
	if err != nil {
		c.lgr.Warn("Send: read failed",
			logger.F("addr", addr), logger.F("trace", trace), logger.F("err", err.Error()))
		return wire.Errorf("no response from %s: %v", addr, err)
	}

	var resp wire.Response
	if err := json.Unmarshal(frame, &resp); err != nil {
		c.lgr.Warn("Send: undecodable response",
			logger.F("addr", addr), logger.F("trace", trace), logger.F("err", err.Error()))
		return wire.Errorf("bad response from %s: %v", addr, err)
	}
	c.lgr.Debug("Send: exchange completed",
		logger.F("addr", addr), logger.F("trace", trace), logger.F("status", resp.Status))
	return resp
}
