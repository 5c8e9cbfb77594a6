// The demo launcher spins up a small local ring, stores a handful of
// key-value pairs round-robin and looks each one up from a different
// node than the one that stored it.
package main

import (
	"fmt"
	"log"
	"time"

	"PastryDHT/internal/node"
)

func main() {
	// Create the first node (bootstrap node)
	bootstrapNode, err := node.New("127.0.0.1", 5000)
	if err != nil {
		log.Fatalf("failed to start bootstrap node: %v", err)
	}
	fmt.Printf("Bootstrap node created with ID: %d\n", uint32(bootstrapNode.Self().ID))

	// Create additional nodes that join the network
	nodes := []*node.Node{bootstrapNode}
	for i := 1; i < 5; i++ {
		n, err := node.New("127.0.0.1", 5000+i,
			node.WithBootstrap(bootstrapNode.Addr()),
			node.WithGossipInterval(200*time.Millisecond),
		)
		if err != nil {
			log.Fatalf("failed to start node %d: %v", i, err)
		}
		nodes = append(nodes, n)
		fmt.Printf("Node %d created with ID: %d\n", i, uint32(n.Self().ID))
		time.Sleep(500 * time.Millisecond) // give the join time to settle
	}

	// Store some key-value pairs
	fmt.Println("\nStoring key-value pairs...")
	keys := []string{"apple", "banana", "cherry", "date", "elderberry"}
	values := []string{"red", "yellow", "red", "brown", "purple"}

	for i, key := range keys {
		n := nodes[i%len(nodes)]
		resp := n.Store(key, values[i])
		fmt.Printf("Node %d storing %s=%s: %s (%s)\n",
			uint32(n.Self().ID), key, values[i], resp.Status, resp.Message)
	}

	// Look up the values from a different node than the one that stored them
	fmt.Println("\nLooking up values...")
	for i, key := range keys {
		n := nodes[(i+2)%len(nodes)]
		resp := n.Lookup(key)
		if resp.IsSuccess() {
			fmt.Printf("Node %d looking up %s: %v\n", uint32(n.Self().ID), key, resp.Value)
		} else {
			fmt.Printf("Node %d looking up %s failed: %s\n", uint32(n.Self().ID), key, resp.Message)
		}
	}

	// Shutdown all nodes
	fmt.Println("\nShutting down nodes...")
	for _, n := range nodes {
		n.Shutdown()
	}
}
