package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"PastryDHT/internal/logger"
	"PastryDHT/internal/transport"
	"PastryDHT/internal/wire"

	"github.com/peterh/liner"
)

func main() {
	// CLI flags
	addr := flag.String("addr", "127.0.0.1:5000", "Address of the node to talk to (entry point)")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout (e.g., 5s)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cli := transport.NewClient(
		transport.WithClientLogger(&logger.NopLogger{}),
		transport.WithTimeouts(*timeout, *timeout),
	)

	currentAddr := *addr
	fmt.Printf("Pastry interactive client. Talking to %s\n", currentAddr)
	fmt.Println("Available commands: store/lookup/use/exit")

	// Setup liner shell
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(fmt.Sprintf("pastry[%s]> ", currentAddr))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		cmd := args[0]

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)

		switch cmd {

		case "store":
			if len(args) < 3 {
				fmt.Println("Usage: store <key> <value>")
				cancel()
				continue
			}
			key, value := args[1], strings.Join(args[2:], " ")
			start := time.Now()
			resp := cli.Send(ctx, currentAddr, wire.NewStore(key, value))
			delay := time.Since(start).Round(time.Millisecond)
			if resp.IsSuccess() {
				fmt.Printf("Store succeeded (key=%s, value=%s) | %s | latency=%s\n", key, value, resp.Message, delay)
			} else {
				fmt.Printf("Store failed: %s | latency=%s\n", resp.Message, delay)
			}

		case "lookup":
			if len(args) < 2 {
				fmt.Println("Usage: lookup <key>")
				cancel()
				continue
			}
			key := args[1]
			start := time.Now()
			resp := cli.Send(ctx, currentAddr, wire.NewLookup(key))
			delay := time.Since(start).Round(time.Millisecond)
			if resp.IsSuccess() {
				fmt.Printf("Lookup succeeded (key=%s, value=%v) | latency=%s\n", key, resp.Value, delay)
			} else {
				fmt.Printf("Lookup failed: %s | latency=%s\n", resp.Message, delay)
			}

		case "use":
			if len(args) < 2 {
				fmt.Println("Usage: use <host:port>")
				cancel()
				continue
			}
			currentAddr = args[1]
			fmt.Printf("Now talking to %s\n", currentAddr)

		case "exit", "quit":
			cancel()
			fmt.Println("Bye")
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}

		cancel()
	}
}
