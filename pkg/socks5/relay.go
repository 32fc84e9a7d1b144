package socks5

import (
	"context"
	"errors"
	"io"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/mehranr/socks5gate/pkg/proxyerr"
)

// relayBufferSize is the per-direction copy buffer. 4-64 KiB is the
// acceptable range; 32 KiB is the size io.Copy uses by default.
const relayBufferSize = 32 * 1024

// closeWriter is satisfied by connections that support a half-close
// (*net.TCPConn does). When the environment supports it, EOF on one
// direction's reader shuts down the write side of the other connection so
// the remote peer observes the half-close.
type closeWriter interface {
	CloseWrite() error
}

// relay copies bytes in both directions between client and outbound
// concurrently until either direction terminates (by EOF or by error), then
// cancels the other direction, closes both streams, and returns. It never
// transforms the bytes it copies; every byte read in one direction is
// written to the other exactly once, in order.
func relay(ctx context.Context, client, outbound net.Conn) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return copyDirection(client, outbound) })
	g.Go(func() error { return copyDirection(outbound, client) })

	// Once either direction's copy ends (or the parent context is done),
	// gctx is canceled; closing both streams unblocks whichever side is
	// still parked in a blocking Read, so the other errgroup goroutine
	// returns and g.Wait() below does not hang.
	go func() {
		<-gctx.Done()
		client.Close()
		outbound.Close()
	}()

	err := g.Wait()
	if err == nil || errors.Is(err, proxyerr.ErrFinished) {
		return nil
	}
	return err
}

// copyDirection copies from src to dst with a fixed buffer, backpressuring
// naturally: io.CopyBuffer never issues the next Read until the prior Write
// completes, so no unbounded internal queue forms. A clean EOF is reported
// as proxyerr.ErrFinished so the caller can tell "done" apart from "failed"
// without inspecting io.EOF directly (useful once the read is wrapped by
// errgroup's context cancellation, which can itself surface as a read
// error on the now-closed connection).
func copyDirection(dst, src net.Conn) error {
	buf := make([]byte, relayBufferSize)
	_, err := io.CopyBuffer(dst, src, buf)
	if cw, ok := dst.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	if err == nil {
		return proxyerr.ErrFinished
	}
	return proxyerr.IOErr(err)
}
