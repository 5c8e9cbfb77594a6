// Package bootstrap abstracts how a starting node discovers the peers it
// may join through.
package bootstrap

import "context"

// Bootstrap yields the addresses of candidate entry points into an
// existing overlay. An empty result means the node starts a fresh ring.
type Bootstrap interface {
	// Discover returns a list of known peer addresses.
	Discover(ctx context.Context) ([]string, error)
}
