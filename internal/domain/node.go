package domain

import (
	"fmt"
	"net"
	"strconv"
)

// Node identifies a participant of the DHT: its position on the ring plus
// the transport coordinates where it can be reached. Two Nodes are the
// same participant iff their IDs match; host and port are cached locating
// information and may be refreshed when a newer address for the same id
// is observed.
type Node struct {
	ID   ID     // identifier in the [0, 2^Bits) space
	Host string // reachable host, e.g. "127.0.0.1"
	Port int    // TCP port
}

// Addr returns the node's transport address in "host:port" form, the same
// string its identifier was derived from.
func (n Node) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// SameID reports whether the two nodes name the same participant,
// regardless of transport coordinates.
func (n Node) SameID(other Node) bool {
	return n.ID == other.ID
}

func (n Node) String() string {
	return fmt.Sprintf("%d@%s", uint32(n.ID), n.Addr())
}

// RoutingInfo is a compact description of a node's routing state, suitable
// for seeding a joining node or for gossiping between peers. The shape
// mirrors the wire schema: the origin id, both leaf sets (nearest first)
// and the full prefix routing table with nil holes.
type RoutingInfo struct {
	NodeID      ID
	LeafSmaller []Node
	LeafLarger  []Node
	Table       [][]*Node
}
