// Package routingtable owns a node's Pastry routing state: the leaf sets
// of numerically-nearest neighbors and the prefix routing table. It
// answers the two questions routing asks of it ("am I the root for
// this key?", "who is the next hop?") and merges state learned from
// peers.
//
// All methods are safe for concurrent use. A single coarse RWMutex
// guards the whole structure so that observers always see a consistent
// view and merges are atomic; no method performs I/O, which keeps the
// lock out of every network path.
package routingtable

import (
	"sync"

	"PastryDHT/internal/domain"
	"PastryDHT/internal/logger"
)

// RoutingTable is the routing state of one node.
type RoutingTable struct {
	lgr   logger.Logger
	space domain.Space
	self  domain.Node

	mu          sync.RWMutex
	leafSmaller []domain.Node    // ids < self, sorted descending (nearest first)
	leafLarger  []domain.Node    // ids > self, sorted ascending (nearest first)
	table       [][]*domain.Node // space.Rows x space.Cols prefix table
}

// New creates an empty routing table for the given node.
//
// The leaf sets start empty and every routing cell starts nil; state is
// filled by Insert and Merge as peers are discovered. By default logging
// is disabled unless overridden with WithLogger.
func New(self domain.Node, space domain.Space, opts ...Option) *RoutingTable {
	rt := &RoutingTable{
		lgr:   &logger.NopLogger{},
		space: space,
		self:  self,
		table: make([][]*domain.Node, space.Rows),
	}
	for i := range rt.table {
		rt.table[i] = make([]*domain.Node, space.Cols())
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.lgr.Debug("routing table initialized",
		logger.F("rows", space.Rows), logger.F("cols", space.Cols()),
		logger.F("leafSetSize", space.LeafSetSize))
	return rt
}

// Self returns the local node owning this routing table.
func (rt *RoutingTable) Self() domain.Node {
	return rt.self
}

// Space returns the identifier-space geometry the table was built for.
func (rt *RoutingTable) Space() domain.Space {
	return rt.space
}

// Insert merges one peer into the routing state. The operation is
// idempotent: inserting a peer that is already known leaves the state
// unchanged, except that a peer carrying a new address for a known id
// refreshes the stored address.
//
// A peer with the local id is ignored. Otherwise the peer is offered to
// the leaf set on its side of the local id (kept sorted nearest-first
// and truncated to the configured size, dropping the farthest entry)
// and to the routing cell addressed by its shared-prefix length and
// first differing digit. An occupied cell keeps its current occupant;
// preferring the lower-latency candidate instead is a known alternative
// policy, not applied here.
func (rt *RoutingTable) Insert(peer domain.Node) {
	rt.mu.Lock()
	rt.insertLocked(peer)
	rt.mu.Unlock()
}

func (rt *RoutingTable) insertLocked(peer domain.Node) {
	if peer.ID == rt.self.ID {
		return
	}

	// Leaf sets: replace any entry with the same id, insert sorted,
	// truncate keeping the entries nearest to the local id.
	if peer.ID < rt.self.ID {
		rt.leafSmaller = insertLeaf(rt.leafSmaller, peer, func(a, b domain.ID) bool { return a > b })
		if len(rt.leafSmaller) > rt.space.LeafSetSize {
			rt.leafSmaller = rt.leafSmaller[:rt.space.LeafSetSize]
		}
	} else {
		rt.leafLarger = insertLeaf(rt.leafLarger, peer, func(a, b domain.ID) bool { return a < b })
		if len(rt.leafLarger) > rt.space.LeafSetSize {
			rt.leafLarger = rt.leafLarger[:rt.space.LeafSetSize]
		}
	}

	// Routing table: the cell for a peer is addressed by the length of
	// the prefix it shares with the local id and its first differing
	// digit. That digit can never equal the local digit at that row.
	row := rt.space.SharedPrefixLen(rt.self.ID, peer.ID)
	if row >= rt.space.Rows {
		return
	}
	col := rt.space.Digit(peer.ID, row)
	switch cell := rt.table[row][col]; {
	case cell == nil:
		p := peer
		rt.table[row][col] = &p
		rt.lgr.Debug("Insert: routing cell filled",
			logger.F("row", row), logger.F("col", col), logger.FNode("peer", peer))
	case cell.ID == peer.ID:
		// same participant, refresh cached transport coordinates
		cell.Host, cell.Port = peer.Host, peer.Port
	}
}

// insertLeaf returns the leaf sequence with peer merged in, keeping it
// sorted by the given order (nearest to the local id first).
func insertLeaf(leaves []domain.Node, peer domain.Node, before func(a, b domain.ID) bool) []domain.Node {
	out := make([]domain.Node, 0, len(leaves)+1)
	inserted := false
	for _, e := range leaves {
		if e.ID == peer.ID {
			continue // replaced below
		}
		if !inserted && before(peer.ID, e.ID) {
			out = append(out, peer)
			inserted = true
		}
		out = append(out, e)
	}
	if !inserted {
		out = append(out, peer)
	}
	return out
}

// IsRoot reports whether the local node is the root for the given key,
// i.e. whether among the nodes it knows as immediate ring neighbors the
// local id is the one nearest to the key.
//
// With both leaf sets empty the node is a singleton ring and therefore
// root of everything. Otherwise the key is compared against the closest
// known predecessor and successor: the node is root iff no neighbor is
// strictly nearer to the key along the ring, ties resolving toward the
// local node. This is the midpoint-arc rule of the two-sided leaf set,
// evaluated through ring distances.
func (rt *RoutingTable) IsRoot(key domain.ID) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	if len(rt.leafSmaller) == 0 && len(rt.leafLarger) == 0 {
		return true
	}
	pred, succ := rt.self.ID, rt.self.ID
	if len(rt.leafSmaller) > 0 {
		pred = rt.leafSmaller[0].ID
	}
	if len(rt.leafLarger) > 0 {
		succ = rt.leafLarger[0].ID
	}
	local := rt.space.RingDistance(rt.self.ID, key)
	return local <= rt.space.RingDistance(pred, key) &&
		local <= rt.space.RingDistance(succ, key)
}

// NextHop selects the peer a keyed request should be forwarded to. It
// assumes the caller has already checked IsRoot(key) == false.
//
// Selection order:
//  1. Leaf-set routing: if the key falls inside the numeric span of the
//     leaf set, the leaf entry nearest to the key on the integer line
//     wins, ties going to the smaller id.
//  2. Prefix routing: the cell addressed by the key's first digit that
//     differs from the local id, provided its occupant shares strictly
//     more prefix digits with the key than the local id does.
//  3. Rare-case fallback: any known peer that shares at least as many
//     prefix digits with the key and is numerically closer to it than
//     the local id, nearest first.
//
// Returns ok == false when no peer qualifies. The node's store path then
// keeps the value locally; its lookup path reports the key as unroutable.
func (rt *RoutingTable) NextHop(key domain.ID) (next domain.Node, ok bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	// 1. Leaf-set routing.
	if len(rt.leafSmaller) > 0 || len(rt.leafLarger) > 0 {
		lo, hi := rt.leafSpanLocked()
		if lo <= key && key <= hi {
			return rt.closestLeafLocked(key), true
		}
	}

	prefix := rt.space.SharedPrefixLen(rt.self.ID, key)

	// 2. Prefix routing.
	if prefix < rt.space.Rows {
		col := rt.space.Digit(key, prefix)
		if cell := rt.table[prefix][col]; cell != nil &&
			rt.space.SharedPrefixLen(cell.ID, key) > prefix {
			return *cell, true
		}
	}

	// 3. Rare-case fallback: scan everything we know.
	localDist := rt.space.AbsDistance(rt.self.ID, key)
	for _, p := range rt.peersLocked() {
		if rt.space.SharedPrefixLen(p.ID, key) < prefix {
			continue
		}
		dist := rt.space.AbsDistance(p.ID, key)
		if dist >= localDist {
			continue
		}
		if !ok || dist < rt.space.AbsDistance(next.ID, key) {
			next, ok = p, true
		}
	}
	return next, ok
}

// leafSpanLocked returns the smallest and largest ids across the union
// of both leaf sets. Each side is sorted nearest-first, so the extremes
// sit at the far end of their side. Must only be called with at least
// one leaf present.
func (rt *RoutingTable) leafSpanLocked() (lo, hi domain.ID) {
	if n := len(rt.leafSmaller); n > 0 {
		lo = rt.leafSmaller[n-1].ID
	} else {
		lo = rt.leafLarger[0].ID
	}
	if n := len(rt.leafLarger); n > 0 {
		hi = rt.leafLarger[n-1].ID
	} else {
		hi = rt.leafSmaller[0].ID
	}
	return lo, hi
}

// closestLeafLocked returns the leaf entry minimizing |entry - key| on
// the integer line, ties to the smaller id. Must only be called with at
// least one leaf present.
func (rt *RoutingTable) closestLeafLocked(key domain.ID) domain.Node {
	var best domain.Node
	found := false
	consider := func(e domain.Node) {
		if !found {
			best, found = e, true
			return
		}
		ed, bd := rt.space.AbsDistance(e.ID, key), rt.space.AbsDistance(best.ID, key)
		if ed < bd || (ed == bd && e.ID < best.ID) {
			best = e
		}
	}
	for _, e := range rt.leafSmaller {
		consider(e)
	}
	for _, e := range rt.leafLarger {
		consider(e)
	}
	return best
}

// peersLocked returns every distinct peer known to the table: leaf-set
// entries plus occupied routing cells.
func (rt *RoutingTable) peersLocked() []domain.Node {
	seen := make(map[domain.ID]domain.Node)
	for _, e := range rt.leafSmaller {
		seen[e.ID] = e
	}
	for _, e := range rt.leafLarger {
		seen[e.ID] = e
	}
	for _, row := range rt.table {
		for _, cell := range row {
			if cell != nil {
				seen[cell.ID] = *cell
			}
		}
	}
	out := make([]domain.Node, 0, len(seen))
	for _, n := range seen {
		out = append(out, n)
	}
	return out
}

// Peers returns a snapshot of every distinct peer currently known.
func (rt *RoutingTable) Peers() []domain.Node {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.peersLocked()
}

// Merge folds every node address carried by the snapshot (both leaf
// sets and all occupied routing cells) into the local state, as if each
// had been Inserted individually. The whole merge is atomic with respect
// to observers.
//
// The snapshot origin itself is not inserted: the routing-info schema
// carries only its id, not its transport address. Callers that know the
// origin's address (the join path does) insert it separately.
func (rt *RoutingTable) Merge(info domain.RoutingInfo) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, n := range info.LeafSmaller {
		rt.insertLocked(n)
	}
	for _, n := range info.LeafLarger {
		rt.insertLocked(n)
	}
	for _, row := range info.Table {
		for _, cell := range row {
			if cell != nil {
				rt.insertLocked(*cell)
			}
		}
	}
	rt.lgr.Debug("Merge: snapshot folded in",
		logger.F("origin", uint32(info.NodeID)),
		logger.F("peers", len(rt.peersLocked())))
}

// Snapshot produces a deep copy of the routing state suitable for
// seeding a joining node or gossiping to a peer.
func (rt *RoutingTable) Snapshot() domain.RoutingInfo {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	info := domain.RoutingInfo{
		NodeID:      rt.self.ID,
		LeafSmaller: append([]domain.Node(nil), rt.leafSmaller...),
		LeafLarger:  append([]domain.Node(nil), rt.leafLarger...),
		Table:       make([][]*domain.Node, len(rt.table)),
	}
	for i, row := range rt.table {
		info.Table[i] = make([]*domain.Node, len(row))
		for j, cell := range row {
			if cell != nil {
				n := *cell
				info.Table[i][j] = &n
			}
		}
	}
	return info
}

// Leaves returns copies of both leaf sets, nearest first.
func (rt *RoutingTable) Leaves() (smaller, larger []domain.Node) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return append([]domain.Node(nil), rt.leafSmaller...),
		append([]domain.Node(nil), rt.leafLarger...)
}

// DebugLog emits a single DEBUG entry with a snapshot of the whole
// routing state. Reads the internals directly so one call produces one
// compact entry.
func (rt *RoutingTable) DebugLog() {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	smaller := make([]string, 0, len(rt.leafSmaller))
	for _, e := range rt.leafSmaller {
		smaller = append(smaller, e.String())
	}
	larger := make([]string, 0, len(rt.leafLarger))
	for _, e := range rt.leafLarger {
		larger = append(larger, e.String())
	}
	cells := make([]map[string]any, 0)
	for i, row := range rt.table {
		for j, cell := range row {
			if cell != nil {
				cells = append(cells, map[string]any{
					"row": i, "col": j, "id": uint32(cell.ID), "addr": cell.Addr(),
				})
			}
		}
	}
	rt.lgr.Debug("RoutingTable snapshot",
		logger.FNode("self", rt.self),
		logger.F("leafSmaller", smaller),
		logger.F("leafLarger", larger),
		logger.F("cells", cells),
	)
}
