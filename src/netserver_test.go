package mrf49xa

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetServerOneClientAtATime(t *testing.T) {
	var ln, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var served = make(chan string, 2)
	var s = &NetServer{
		DNSSDName: "-",
		Serve: func(ctx context.Context, conn net.Conn) error {
			var line, err = bufio.NewReader(conn).ReadString('\n')
			served <- line
			conn.Write([]byte("ok\n")) //nolint:errcheck
			return err
		},
	}

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	for _, msg := range []string{"first\n", "second\n"} {
		var conn, dialErr = net.Dial("tcp", ln.Addr().String())
		require.NoError(t, dialErr)

		_, err = conn.Write([]byte(msg))
		require.NoError(t, err)

		var reply, readErr = bufio.NewReader(conn).ReadString('\n')
		require.NoError(t, readErr)
		assert.Equal(t, "ok\n", reply)
		assert.Equal(t, msg, <-served)

		conn.Close()
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestDNSSDDefaultName(t *testing.T) {
	assert.Contains(t, DNSSDDefaultName(), "MRF49XA")
}
