// Package node binds the routing state, the local store and the
// transport into one DHT participant: it owns the top-level handlers for
// JOIN, STORE, LOOKUP and ROUTING_INFO and the node lifecycle.
package node

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"PastryDHT/internal/domain"
	"PastryDHT/internal/logger"
	"PastryDHT/internal/routingtable"
	"PastryDHT/internal/storage"
	"PastryDHT/internal/transport"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
)

// DefaultOperationTimeout bounds one client-facing store or lookup,
// including every forwarding hop it triggers.
const DefaultOperationTimeout = 10 * time.Second

// Node is one DHT participant. Create it with New; it starts serving
// immediately and keeps running until Shutdown.
type Node struct {
	lgr    logger.Logger
	space  domain.Space
	self   domain.Node
	rt     *routingtable.RoutingTable
	store  *storage.Storage
	srv    *transport.Server
	cli    *transport.Client
	tracer oteltrace.Tracer

	opTimeout    time.Duration
	shut         atomic.Bool
	gossipCancel context.CancelFunc
	gossipDone   chan struct{}
}

// New creates a node listening on host:port and starts accepting
// connections. Port 0 selects an ephemeral port; the node's identifier
// is always derived from the advertised "host:port" string with the
// actual bound port.
//
// When a bootstrap address was configured (WithBootstrap), New joins the
// existing overlay through it. Joining is best-effort: a failed join is
// logged and the node keeps running as a singleton ring. When a gossip
// interval was configured, the background gossip worker starts as well.
func New(host string, port int, opts ...Option) (*Node, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	lis, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("bind %s:%d: %w", host, port, err)
	}
	boundPort := lis.Addr().(*net.TCPAddr).Port

	self := domain.Node{
		ID:   cfg.space.NewIDFromString(fmt.Sprintf("%s:%d", host, boundPort)),
		Host: host,
		Port: boundPort,
	}
	lgr := cfg.lgr.With(logger.FNode("self", self))

	n := &Node{
		lgr:   lgr,
		space: cfg.space,
		self:  self,
		rt:    routingtable.New(self, cfg.space, routingtable.WithLogger(lgr.Named("routingtable"))),
		store: storage.NewMemoryStorage(lgr.Named("storage")),
		cli: transport.NewClient(
			transport.WithClientLogger(lgr.Named("client")),
			transport.WithTimeouts(cfg.connectTimeout, cfg.readTimeout),
		),
		tracer:    otel.Tracer("pastrydht/node"),
		opTimeout: cfg.opTimeout,
	}
	n.srv = transport.NewServer(lis, n, transport.WithLogger(lgr.Named("transport")))

	go func() {
		if err := n.srv.Serve(); err != nil {
			n.lgr.Error("server terminated", logger.F("err", err.Error()))
		}
	}()
	n.lgr.Info("node started", logger.F("addr", n.Addr()))

	if cfg.bootstrap != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.opTimeout)
		if err := n.Join(ctx, cfg.bootstrap); err != nil {
			// singleton mode: the node stays up and roots everything
			n.lgr.Warn("join failed, running as singleton",
				logger.F("bootstrap", cfg.bootstrap), logger.F("err", err.Error()))
		}
		cancel()
	}
	if cfg.gossipInterval > 0 {
		n.StartGossip(cfg.gossipInterval)
	}
	return n, nil
}

// Self returns the node's own address triple.
func (n *Node) Self() domain.Node {
	return n.self
}

// Addr returns the node's listening address in "host:port" form.
func (n *Node) Addr() string {
	return n.self.Addr()
}

// Routing returns the node's routing state.
func (n *Node) Routing() *routingtable.RoutingTable {
	return n.rt
}

// StoredResources returns a snapshot of the resources the node currently
// holds locally.
func (n *Node) StoredResources() []domain.Resource {
	return n.store.All()
}

// Shutdown stops the node: the gossip worker exits, the listener closes
// and the local store is cleared. In-flight connection workers run to
// completion or until their own I/O fails; they are not aborted.
// Shutdown is idempotent: the second and later calls are no-ops.
func (n *Node) Shutdown() {
	if !n.shut.CompareAndSwap(false, true) {
		return
	}
	if n.gossipCancel != nil {
		n.gossipCancel()
		<-n.gossipDone
	}
	n.srv.Close()
	n.store.Clear()
	n.lgr.Info("node shut down")
}
