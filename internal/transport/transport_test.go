package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"PastryDHT/internal/wire"

	"github.com/stretchr/testify/require"
)

// echoHandler answers every lookup with its key and everything else with
// a fixed marker.
type echoHandler struct{}

func (echoHandler) HandleMessage(msg wire.Message, _ net.Addr) wire.Response {
	switch m := msg.(type) {
	case *wire.Lookup:
		return wire.OKValue(m.Key)
	default:
		return wire.OKMessage("handled")
	}
}

func startServer(t *testing.T) *Server {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(lis, echoHandler{})
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Close)
	return srv
}

func TestClientServerExchange(t *testing.T) {
	srv := startServer(t)
	cli := NewClient()

	resp := cli.Send(context.Background(), srv.Addr().String(), wire.NewLookup("apple"))
	require.True(t, resp.IsSuccess(), "unexpected response: %+v", resp)
	require.Equal(t, "apple", resp.Value)
}

func TestConnectionReuse(t *testing.T) {
	srv := startServer(t)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	r := bufio.NewReader(conn)
	for _, key := range []string{"one", "two", "three"} {
		require.NoError(t, wire.WriteFrame(conn, wire.NewLookup(key)))
		frame, err := wire.ReadFrame(r)
		require.NoError(t, err)

		var resp wire.Response
		require.NoError(t, json.Unmarshal(frame, &resp))
		require.Equal(t, key, resp.Value)
	}
}

func TestUnknownMessageType(t *testing.T) {
	srv := startServer(t)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"type":"PING"}` + "\n"))
	require.NoError(t, err)

	frame, err := wire.ReadFrame(bufio.NewReader(conn))
	require.NoError(t, err)

	var resp wire.Response
	require.NoError(t, json.Unmarshal(frame, &resp))
	require.Equal(t, wire.StatusError, resp.Status)
	require.Equal(t, "Unknown message type", resp.Message)
}

func TestMalformedFrame(t *testing.T) {
	srv := startServer(t)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	frame, err := wire.ReadFrame(bufio.NewReader(conn))
	require.NoError(t, err)

	var resp wire.Response
	require.NoError(t, json.Unmarshal(frame, &resp))
	require.Equal(t, wire.StatusError, resp.Status)
}

func TestSendConnectFailure(t *testing.T) {
	// Bind-then-close yields a port with nothing listening.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	cli := NewClient(WithTimeouts(500*time.Millisecond, 500*time.Millisecond))
	resp := cli.Send(context.Background(), addr, wire.NewLookup("apple"))
	require.Equal(t, wire.StatusError, resp.Status)
	require.NotEmpty(t, resp.Message)
}

func TestSendReadTimeout(t *testing.T) {
	// A listener that accepts and then stays silent.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			// hold the connection open without answering
			go func(c net.Conn) {
				time.Sleep(2 * time.Second)
				_ = c.Close()
			}(conn)
		}
	}()

	cli := NewClient(WithTimeouts(time.Second, 200*time.Millisecond))
	start := time.Now()
	resp := cli.Send(context.Background(), lis.Addr().String(), wire.NewLookup("apple"))
	require.Equal(t, wire.StatusError, resp.Status)
	require.Less(t, time.Since(start), time.Second, "timeout did not bound the exchange")
}

func TestCloseIdempotent(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(lis, echoHandler{})

	done := make(chan struct{})
	go func() {
		_ = srv.Serve()
		close(done)
	}()

	srv.Close()
	srv.Close() // second call is a no-op

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Close")
	}
}
