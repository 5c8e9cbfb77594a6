package wire

import (
	"encoding/json"
	"fmt"

	"PastryDHT/internal/domain"
)

// Peer is the wire form of a node address. It serializes as the
// three-element tuple [id, host, port] rather than an object, matching
// the routing-info schema.
type Peer struct {
	ID   domain.ID
	Host string
	Port int
}

// MarshalJSON encodes the peer as [id, host, port].
func (p Peer) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{uint32(p.ID), p.Host, p.Port})
}

// UnmarshalJSON decodes a [id, host, port] tuple.
func (p *Peer) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("peer tuple: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("peer tuple: expected 3 elements, got %d", len(tuple))
	}
	var id uint32
	if err := json.Unmarshal(tuple[0], &id); err != nil {
		return fmt.Errorf("peer tuple id: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &p.Host); err != nil {
		return fmt.Errorf("peer tuple host: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &p.Port); err != nil {
		return fmt.Errorf("peer tuple port: %w", err)
	}
	p.ID = domain.ID(id)
	return nil
}

// Node converts the wire peer back into a domain node.
func (p Peer) Node() domain.Node {
	return domain.Node{ID: p.ID, Host: p.Host, Port: p.Port}
}

func peerOf(n domain.Node) Peer {
	return Peer{ID: n.ID, Host: n.Host, Port: n.Port}
}

// RoutingInfo is the wire form of a routing-state snapshot: the origin
// id, both leaf sets (nearest first) and the routing table row by row,
// with null in empty cells.
type RoutingInfo struct {
	NodeID      domain.ID `json:"node_id"`
	LeafSmaller []Peer    `json:"leaf_set_smaller"`
	LeafLarger  []Peer    `json:"leaf_set_larger"`
	Table       [][]*Peer `json:"routing_table"`
}

// FromDomain converts a domain snapshot into its wire form.
func FromDomain(info domain.RoutingInfo) RoutingInfo {
	out := RoutingInfo{
		NodeID:      info.NodeID,
		LeafSmaller: make([]Peer, 0, len(info.LeafSmaller)),
		LeafLarger:  make([]Peer, 0, len(info.LeafLarger)),
		Table:       make([][]*Peer, len(info.Table)),
	}
	for _, n := range info.LeafSmaller {
		out.LeafSmaller = append(out.LeafSmaller, peerOf(n))
	}
	for _, n := range info.LeafLarger {
		out.LeafLarger = append(out.LeafLarger, peerOf(n))
	}
	for i, row := range info.Table {
		out.Table[i] = make([]*Peer, len(row))
		for j, cell := range row {
			if cell != nil {
				p := peerOf(*cell)
				out.Table[i][j] = &p
			}
		}
	}
	return out
}

// ToDomain converts the wire snapshot into its domain form.
func (ri RoutingInfo) ToDomain() domain.RoutingInfo {
	out := domain.RoutingInfo{
		NodeID:      ri.NodeID,
		LeafSmaller: make([]domain.Node, 0, len(ri.LeafSmaller)),
		LeafLarger:  make([]domain.Node, 0, len(ri.LeafLarger)),
		Table:       make([][]*domain.Node, len(ri.Table)),
	}
	for _, p := range ri.LeafSmaller {
		out.LeafSmaller = append(out.LeafSmaller, p.Node())
	}
	for _, p := range ri.LeafLarger {
		out.LeafLarger = append(out.LeafLarger, p.Node())
	}
	for i, row := range ri.Table {
		out.Table[i] = make([]*domain.Node, len(row))
		for j, cell := range row {
			if cell != nil {
				n := cell.Node()
				out.Table[i][j] = &n
			}
		}
	}
	return out
}
