// Package transport moves wire messages over TCP: a listener that
// dispatches framed requests to a handler, and a client that performs
// one synchronous request-response exchange per call.
package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"PastryDHT/internal/logger"
	"PastryDHT/internal/wire"

	"go.uber.org/atomic"
)

// Handler processes one decoded request and produces the response to
// write back. Implementations must not panic and must never block on the
// routing-state locks across I/O of their own.
type Handler interface {
	HandleMessage(msg wire.Message, remote net.Addr) wire.Response
}

// Server accepts connections on a listener and serves each on its own
// goroutine. A connection carries any number of request frames, strictly
// one in flight at a time; the worker answers each frame before reading
// the next.
type Server struct {
	lgr     logger.Logger
	lis     net.Listener
	handler Handler
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a server around an already-bound listener. Serving
// starts when Serve is called.
func NewServer(lis net.Listener, h Handler, opts ...Option) *Server {
	s := &Server{
		lgr:     &logger.NopLogger{},
		lis:     lis,
		handler: h,
	}
	s.running.Store(true)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve runs the accept loop until Close is called. Accept errors while
// the server is running are logged and the loop continues; after Close
// they terminate the loop silently.
func (s *Server) Serve() error {
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.lgr.Error("accept failed", logger.F("err", err.Error()))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Close stops accepting new connections. Idempotent: only the first call
// closes the listener. Workers already serving a connection run to
// completion or until their own I/O fails.
func (s *Server) Close() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if err := s.lis.Close(); err != nil {
		s.lgr.Warn("listener close failed", logger.F("err", err.Error()))
	}
}

// Wait blocks until every in-flight connection worker has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// serveConn reads frames off one connection until the peer closes it,
// answering each with exactly one response frame. Handler-level failures
// never escape: they are converted into error envelopes by the handler
// itself, and decode failures are answered here.
func (s *Server) serveConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	r := bufio.NewReader(conn)
	for {
		frame, err := wire.ReadFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && s.running.Load() {
				s.lgr.Debug("connection read failed",
					logger.F("remote", conn.RemoteAddr().String()),
					logger.F("err", err.Error()))
			}
			return
		}

		resp := s.dispatch(frame, conn.RemoteAddr())
		if err := wire.WriteFrame(conn, resp); err != nil {
			if s.running.Load() {
				s.lgr.Warn("response write failed",
					logger.F("remote", conn.RemoteAddr().String()),
					logger.F("err", err.Error()))
			}
			return
		}
	}
}

func (s *Server) dispatch(frame []byte, remote net.Addr) wire.Response {
	msg, err := wire.Decode(frame)
	switch {
	case errors.Is(err, wire.ErrUnknownType):
		s.lgr.Warn("unknown message type", logger.F("remote", remote.String()))
		return wire.Errorf("Unknown message type")
	case err != nil:
		s.lgr.Warn("undecodable message",
			logger.F("remote", remote.String()), logger.F("err", err.Error()))
		return wire.Errorf("Malformed message")
	}
	return s.handler.HandleMessage(msg, remote)
}
