package node

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"time"

	"PastryDHT/internal/ctxutil"
	"PastryDHT/internal/domain"
	"PastryDHT/internal/logger"
	"PastryDHT/internal/wire"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// HandleMessage dispatches one decoded wire request to its handler. Each
// request runs under its own timeout-bounded context; every failure is
// converted into an error envelope before it can reach the transport.
func (n *Node) HandleMessage(msg wire.Message, remote net.Addr) wire.Response {
	ctx, cancel := ctxutil.NewContext(
		ctxutil.WithTimeout(n.opTimeout),
		ctxutil.WithTrace(n.self.ID),
	)
	defer cancel()

	switch m := msg.(type) {
	case *wire.Join:
		return n.handleJoin(m)
	case *wire.Store:
		return n.storeResource(ctx, m.Key, m.Value)
	case *wire.Lookup:
		return n.lookupResource(ctx, m.Key)
	case *wire.RoutingInfoPush:
		return n.handleRoutingInfo(m)
	default:
		// unreachable while wire.Message stays a closed union
		return wire.Errorf("Unknown message type")
	}
}

// Join enters an existing overlay through the given bootstrap address.
//
// Behavior:
//   - Sends JOIN to the bootstrap node and merges the returned snapshot.
//     The bootstrap's own address is inserted explicitly: the snapshot
//     carries only its id, but the caller knows where it lives.
//   - Announces itself with a JOIN to every peer learned from the
//     bootstrap and merges each reply, so that existing members learn
//     about this node symmetrically. Per-peer failures are logged and
//     skipped.
//
// Returns an error only when the bootstrap exchange itself fails; the
// caller may then keep running in singleton mode.
func (n *Node) Join(ctx context.Context, bootstrapAddr string) error {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return err
	}
	ctx = ctxutil.EnsureTraceID(ctx, n.self.ID)
	ctx, span := n.tracer.Start(ctx, "node.join",
		oteltrace.WithAttributes(attribute.String("dht.bootstrap", bootstrapAddr)))
	defer span.End()

	resp := n.cli.Send(ctx, bootstrapAddr, wire.NewJoin(n.self))
	if !resp.IsSuccess() {
		return fmt.Errorf("join %s: %s", bootstrapAddr, resp.Message)
	}
	if resp.RoutingInfo == nil {
		return fmt.Errorf("join %s: reply carried no routing info", bootstrapAddr)
	}
	info := resp.RoutingInfo.ToDomain()

	if boot, err := nodeAt(info.NodeID, bootstrapAddr); err != nil {
		return fmt.Errorf("join %s: %w", bootstrapAddr, err)
	} else {
		n.rt.Insert(boot)
	}
	n.rt.Merge(info)

	// Announce to everyone the bootstrap told us about, so the overlay
	// learns this node without waiting for gossip.
	for _, p := range n.rt.Peers() {
		if p.ID == info.NodeID {
			continue
		}
		r := n.cli.Send(ctx, p.Addr(), wire.NewJoin(n.self))
		if !r.IsSuccess() || r.RoutingInfo == nil {
			n.lgr.Warn("Join: announce failed",
				logger.FNode("peer", p), logger.F("err", r.Message))
			continue
		}
		n.rt.Merge(r.RoutingInfo.ToDomain())
	}

	n.lgr.Info("Join: joined overlay",
		logger.F("bootstrap", bootstrapAddr),
		logger.F("peers", len(n.rt.Peers())))
	return nil
}

// nodeAt builds the address triple of the node with the given id living
// at addr.
func nodeAt(id domain.ID, addr string) (domain.Node, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return domain.Node{}, fmt.Errorf("bad address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return domain.Node{}, fmt.Errorf("bad port in %q: %w", addr, err)
	}
	return domain.Node{ID: id, Host: host, Port: port}, nil
}

// handleJoin admits one node into the overlay: it folds the sender into
// the local routing state and replies with a snapshot of that state so
// the sender can seed its own.
func (n *Node) handleJoin(m *wire.Join) wire.Response {
	sender := m.Sender()
	n.rt.Insert(sender)
	n.lgr.Info("handleJoin: node admitted", logger.FNode("sender", sender))
	return wire.OKRoutingInfo(n.rt.Snapshot())
}

// handleRoutingInfo merges a gossiped snapshot into the routing state.
func (n *Node) handleRoutingInfo(m *wire.RoutingInfoPush) wire.Response {
	n.rt.Merge(m.RoutingInfo.ToDomain())
	return wire.OK()
}

// Store places a key-value pair at the key's root, starting from this
// node. When routing finds no next hop the value is kept locally as a
// last resort and the store succeeds; a forwarded store returns the
// downstream reply, which is an error envelope when the hop fails.
func (n *Node) Store(key string, value any) wire.Response {
	ctx, cancel := ctxutil.NewContext(
		ctxutil.WithTimeout(n.opTimeout),
		ctxutil.WithTrace(n.self.ID),
	)
	defer cancel()
	return n.storeResource(ctx, key, value)
}

// storeResource serves both the local Store API and STORE requests
// arriving over the wire; the two paths are identical by design.
//
// The decision (root check, next hop) is computed before any network
// I/O, so no routing-state lock is ever held across an RPC.
func (n *Node) storeResource(ctx context.Context, key string, value any) wire.Response {
	keyID := n.space.NewIDFromString(key)
	ctx, span := n.tracer.Start(ctx, "node.store",
		oteltrace.WithAttributes(
			attribute.String("dht.key", key),
			attribute.Int64("dht.key.hash", int64(uint32(keyID))),
		))
	defer span.End()

	if n.rt.IsRoot(keyID) {
		n.store.Put(domain.Resource{Key: keyID, RawKey: key, Value: value})
		n.lgr.Debug("storeResource: stored at root",
			logger.F("key", key), logger.F("keyHash", uint32(keyID)))
		return wire.OKMessage("Key stored successfully")
	}

	if next, ok := n.rt.NextHop(keyID); ok {
		n.lgr.Debug("storeResource: forwarding",
			logger.F("key", key), logger.FNode("nextHop", next))
		return n.cli.Send(ctx, next.Addr(), wire.NewStore(key, value))
	}

	// No hop qualifies: this node is effectively root for the key.
	n.store.Put(domain.Resource{Key: keyID, RawKey: key, Value: value})
	n.lgr.Warn("storeResource: no route, stored locally",
		logger.F("key", key), logger.F("keyHash", uint32(keyID)))
	return wire.OKMessage("Key stored locally (fallback)")
}

// Lookup resolves a key starting from this node. It cleanly
// distinguishes a key its root does not hold ("Key not found") from a
// key no hop can make progress toward ("No route to key").
func (n *Node) Lookup(key string) wire.Response {
	ctx, cancel := ctxutil.NewContext(
		ctxutil.WithTimeout(n.opTimeout),
		ctxutil.WithTrace(n.self.ID),
	)
	defer cancel()
	return n.lookupResource(ctx, key)
}

// lookupResource serves both the local Lookup API and LOOKUP requests
// arriving over the wire.
func (n *Node) lookupResource(ctx context.Context, key string) wire.Response {
	keyID := n.space.NewIDFromString(key)
	ctx, span := n.tracer.Start(ctx, "node.lookup",
		oteltrace.WithAttributes(
			attribute.String("dht.key", key),
			attribute.Int64("dht.key.hash", int64(uint32(keyID))),
		))
	defer span.End()

	if res, err := n.store.Get(keyID); err == nil {
		return wire.OKValue(res.Value)
	} else if !errors.Is(err, domain.ErrResourceNotFound) {
		return wire.Errorf("storage: %v", err)
	}

	if n.rt.IsRoot(keyID) {
		return wire.Errorf("Key not found")
	}

	if next, ok := n.rt.NextHop(keyID); ok {
		n.lgr.Debug("lookupResource: forwarding",
			logger.F("key", key), logger.FNode("nextHop", next))
		return n.cli.Send(ctx, next.Addr(), wire.NewLookup(key))
	}

	return wire.Errorf("No route to key")
}

// StartGossip launches the background worker that periodically pushes
// the local routing snapshot to one randomly chosen peer. The worker
// stops when Shutdown runs. Starting an already-started worker is a
// no-op.
func (n *Node) StartGossip(interval time.Duration) {
	if n.gossipCancel != nil || interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.gossipCancel = cancel
	n.gossipDone = make(chan struct{})

	go func() {
		defer close(n.gossipDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.gossipOnce(ctx)
			}
		}
	}()
	n.lgr.Debug("gossip worker started", logger.F("interval", interval.String()))
}

// gossipOnce pushes the current snapshot to one random peer. Failures
// are logged and left to the next round.
func (n *Node) gossipOnce(ctx context.Context) {
	peers := n.rt.Peers()
	if len(peers) == 0 {
		return
	}
	peer := peers[rand.Intn(len(peers))]
	resp := n.cli.Send(ctx, peer.Addr(), wire.NewRoutingInfoPush(n.rt.Snapshot()))
	if !resp.IsSuccess() {
		n.lgr.Warn("gossip push failed",
			logger.FNode("peer", peer), logger.F("err", resp.Message))
		return
	}
	n.lgr.Debug("gossip push delivered", logger.FNode("peer", peer))
}
