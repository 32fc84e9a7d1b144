package socks5

import (
	"context"
	"crypto/rand"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// tcpPipe returns two ends of a loopback TCP connection, so relay's
// CloseWrite half-close path (only satisfied by *net.TCPConn) is exercised
// the same way it would be in production.
func tcpPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		acceptCh <- conn
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	accepted := <-acceptCh
	require.NotNil(t, accepted)
	return dialed, accepted
}

func TestRelayPreservesBytesBothDirections(t *testing.T) {
	client, clientSide := tcpPipe(t)
	outbound, outboundSide := tcpPipe(t)
	defer clientSide.Close()
	defer outboundSide.Close()

	upstream := make([]byte, 1024*1024)
	_, err := rand.Read(upstream)
	require.NoError(t, err)
	downstream := make([]byte, 1024*1024)
	_, err = rand.Read(downstream)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- relay(context.Background(), client, outbound) }()

	// The relay ends as soon as either direction reaches EOF, so the
	// downstream bytes are read in full before the client half-closes.
	go func() { outboundSide.Write(downstream) }()
	gotDownstream := make([]byte, len(downstream))
	_, err = io.ReadFull(clientSide, gotDownstream)
	require.NoError(t, err)

	var gotUpstream []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		gotUpstream, _ = io.ReadAll(outboundSide)
	}()
	go func() {
		clientSide.Write(upstream)
		clientSide.(*net.TCPConn).CloseWrite()
	}()

	require.NoError(t, <-errCh)

	<-done
	require.Equal(t, upstream, gotUpstream)
	require.Equal(t, downstream, gotDownstream)
}

func TestRelayEndsWhenOneSideCloses(t *testing.T) {
	client, clientSide := tcpPipe(t)
	outbound, outboundSide := tcpPipe(t)
	defer outboundSide.Close()

	clientSide.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- relay(context.Background(), client, outbound) }()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not return after one side closed")
	}
}

func TestRelayHonorsContextCancellation(t *testing.T) {
	client, clientSide := tcpPipe(t)
	outbound, outboundSide := tcpPipe(t)
	defer client.Close()
	defer clientSide.Close()
	defer outbound.Close()
	defer outboundSide.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- relay(ctx, client, outbound) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not return after context cancellation")
	}
}
