// Package server wires the config, logger, and socks5 packages into a
// runnable listener: it owns the accept loop and the lifetime of every
// connection it spawns.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mehranr/socks5gate/internal/config"
	"github.com/mehranr/socks5gate/internal/logger"
	"github.com/mehranr/socks5gate/pkg/socks5"
)

// ErrListenerNotInitialized is returned by Run if called before Listen.
var ErrListenerNotInitialized = errors.New("server: listener is not initialized, call Listen first")

// Server accepts SOCKS5 connections on a single TCP listener and drives each
// one through the protocol core to completion.
type Server struct {
	cfg       *config.Config
	policy    *socks5.AuthPolicy
	connector *socks5.DialConnector

	listener net.Listener
	nextConn atomic.Uint64
}

// New builds a Server from a validated config. It does not open the
// listener; call Listen before Run.
func New(cfg *config.Config) *Server {
	return &Server{
		cfg:       cfg,
		policy:    socks5.NewAuthPolicy(cfg.Credential()),
		connector: socks5.NewDialConnector(cfg.DialTimeout()),
	}
}

// Listen opens the TCP listener at the configured endpoint. Call it once,
// before Run.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Endpoint)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Server.Endpoint, err)
	}
	s.listener = ln
	logger.Infof("listening on %s", s.cfg.Server.Endpoint)
	return nil
}

// Run accepts connections until ctx is canceled, spawning one goroutine per
// connection. It returns once the listener is closed and every in-flight
// accept has stopped; connections already in the relay phase are not waited
// on, since relayCtx (derived from ctx) is what eventually unwinds them.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		return ErrListenerNotInitialized
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return s.listener.Close()
	})

	g.Go(func() error {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				logger.Warnf("accept: %v", err)
				continue
			}
			connID := s.nextConn.Add(1)
			logger.Infof("conn %d: accepted from %s", connID, conn.RemoteAddr())
			go s.handle(gctx, conn, connID)
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// handle drives a single connection through the handshake (bounded by the
// configured handshake timeout) and, once it reaches the relay phase, the
// unbounded server lifetime context.
func (s *Server) handle(parentCtx context.Context, conn net.Conn, connID uint64) {
	defer conn.Close()

	handshakeCtx, cancel := context.WithTimeout(parentCtx, s.cfg.HandshakeTimeout())
	defer cancel()

	sess := socks5.NewSession(conn, s.policy, s.connector,
		socks5.WithLogger(logger.Adapter{}),
		socks5.WithConnID(connID),
	)

	if err := sess.Run(handshakeCtx, parentCtx); err != nil {
		logger.Warnf("conn %d: terminated: %v", connID, err)
	}
}
