package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, d *Dispatcher) (net.Addr, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(d, ln, func() {})
	go srv.Serve()

	return ln.Addr(), func() { srv.Shutdown() }
}

func TestServerDispatchesPing(t *testing.T) {
	d := NewDispatcher()
	d.Register("ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{"pong": true}, nil
	})

	addr, stop := startTestServer(t, d)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"command":"ping"}` + "\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	require.True(t, resp.Success)
}

func TestServerReportsUnknownCommand(t *testing.T) {
	d := NewDispatcher()
	addr, stop := startTestServer(t, d)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"command":"nope"}` + "\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	require.False(t, resp.Success)
	require.Equal(t, "Unknown command: nope", resp.Error)
}

func TestServerReportsInvalidJSON(t *testing.T) {
	d := NewDispatcher()
	addr, stop := startTestServer(t, d)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "Invalid JSON: ")
}

func TestServerReportsEmptyRequest(t *testing.T) {
	d := NewDispatcher()
	addr, stop := startTestServer(t, d)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	require.False(t, resp.Success)
	require.Equal(t, "Empty request", resp.Error)
}

func TestDispatcherRegisterUnregisterList(t *testing.T) {
	d := NewDispatcher()
	d.Register("a", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	d.Register("b", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	require.ElementsMatch(t, []string{"a", "b"}, d.List())

	require.True(t, d.Unregister("a"))
	require.False(t, d.Unregister("a"))
	require.ElementsMatch(t, []string{"b"}, d.List())
}
