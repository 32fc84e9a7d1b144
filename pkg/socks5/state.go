package socks5

import (
	"context"
	"net"

	"github.com/mehranr/socks5gate/pkg/proxyerr"
	"github.com/mehranr/socks5gate/pkg/wire"
)

// ConnectionState is one phase of a connection's handshake, encoded as a
// tagged union via an interface with one implementation per variant (rather
// than a single struct with a discriminator field), per the state machine's
// five states: AwaitingHello, AwaitingAuth, AwaitingClientRequest, Proxying,
// Finished. Each implementation is the exclusive owner of whichever
// stream(s) it holds; a stream never appears in two states concurrently, and
// a state that fails its step closes every stream it owns before returning.
type ConnectionState interface {
	step(ctx context.Context) (ConnectionState, error)
}

// env carries the dependencies shared by every state of one connection: the
// auth policy (shared read-only across all connections) and the destination
// connector (possibly connection-specific only in tests).
type env struct {
	policy    *AuthPolicy
	connector Connector
	log       Logger
	connID    uint64
}

// Session drives one accepted client connection through the handshake and
// into the relay phase. Callers construct one Session per connection and
// call Run once.
type Session struct {
	state ConnectionState
	env   *env
}

// SessionOption customizes a Session at construction. The zero value of
// every option is the production default; tests substitute a Logger or a
// fake Connector this way without needing a second constructor per field.
type SessionOption func(*env)

// WithLogger overrides the Session's logger (default: a logger that discards
// everything).
func WithLogger(log Logger) SessionOption {
	return func(e *env) { e.log = log }
}

// WithConnID tags the Session's log lines with a connection identifier.
func WithConnID(id uint64) SessionOption {
	return func(e *env) { e.connID = id }
}

// NewSession builds a Session ready to run the handshake for client,
// enforcing policy and dialing outbound connections through connector.
func NewSession(client net.Conn, policy *AuthPolicy, connector Connector, opts ...SessionOption) *Session {
	e := &env{policy: policy, connector: connector, log: noopLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	return &Session{
		state: &awaitingHello{client: client, env: e},
		env:   e,
	}
}

// Run steps the session to completion: AwaitingHello -> ... -> Finished. It
// returns the error (if any) that ended the handshake; a nil return means
// the connection reached the relay phase and the relay ended, or was
// terminated per protocol (no acceptable method, auth failure) without
// error. An error that ends the relay is logged at warn level and not
// returned.
//
// Two contexts are accepted because the handshake and the relay have
// different lifetimes: handshakeCtx should carry the accept-to-Proxying
// budget (spec default 30s) so a stalled client can't hold a goroutine
// forever, while relayCtx should only reflect server shutdown — an active
// proxy session can legitimately run for hours and must not be cut off by
// the handshake's short deadline. Run switches from handshakeCtx to
// relayCtx the moment the state machine reaches Proxying.
func (s *Session) Run(handshakeCtx, relayCtx context.Context) error {
	cur := handshakeCtx
	for {
		if _, done := s.state.(*finished); done {
			return nil
		}
		next, err := s.state.step(cur)
		if err != nil {
			return err
		}
		if _, enteringRelay := next.(*proxying); enteringRelay {
			cur = relayCtx
		}
		s.state = next
	}
}

// finished is the terminal state. Transitioning out of it is a programming
// error: Run never calls step on it, since it checks for *finished before
// stepping.
type finished struct{}

func (*finished) step(ctx context.Context) (ConnectionState, error) {
	panic("socks5: step called on Finished state")
}

// awaitingHello parses the client's method offer, picks (or refuses) an
// auth method, and replies.
type awaitingHello struct {
	client net.Conn
	env    *env
}

func (s *awaitingHello) step(ctx context.Context) (ConnectionState, error) {
	req, err := wire.ReadHelloRequest(ctx, s.client)
	if err != nil {
		s.client.Close()
		return nil, err
	}
	if req.Version != wire.Version {
		s.client.Close()
		return nil, proxyerr.Malformedf("hello carries version %d, want %d", req.Version, wire.Version)
	}

	method, ok := s.env.policy.SelectMethod(req.Methods)
	if !ok {
		// RFC 1928: reply with NO ACCEPTABLE METHODS before closing.
		if err := wire.WriteHelloResponse(ctx, s.client, wire.HelloResponse{
			Version: wire.Version,
			Method:  wire.NoAcceptableMethods,
		}); err != nil {
			s.client.Close()
			return nil, err
		}
		s.env.log.Infof("conn %d: no acceptable auth method among %v", s.env.connID, req.Methods)
		s.client.Close()
		return &finished{}, nil
	}

	if err := wire.WriteHelloResponse(ctx, s.client, wire.HelloResponse{Version: wire.Version, Method: method}); err != nil {
		s.client.Close()
		return nil, err
	}
	s.env.log.Infof("conn %d: selected auth method %s", s.env.connID, method)

	if method == wire.UserPass {
		return &awaitingAuth{client: s.client, env: s.env}, nil
	}
	return &awaitingClientRequest{client: s.client, env: s.env}, nil
}

// awaitingAuth parses the client's username/password and authenticates once:
// a failed attempt terminates the connection rather than looping for a
// retry, correcting the teacher implementation's unbounded-retry behavior.
type awaitingAuth struct {
	client net.Conn
	env    *env
}

func (s *awaitingAuth) step(ctx context.Context) (ConnectionState, error) {
	req, err := wire.ReadAuthRequest(ctx, s.client)
	if err != nil {
		s.client.Close()
		return nil, err
	}
	if req.Version != wire.AuthSubVersion {
		s.client.Close()
		return nil, proxyerr.Malformedf("auth request carries version %d, want %d", req.Version, wire.AuthSubVersion)
	}

	ok := s.env.policy.Authenticate(req.Username, req.Password)
	status := wire.AuthSuccess
	if !ok {
		status = wire.AuthFailure
	}
	if err := wire.WriteAuthResponse(ctx, s.client, wire.AuthResponse{Version: wire.AuthSubVersion, Status: status}); err != nil {
		s.client.Close()
		return nil, err
	}

	if !ok {
		s.env.log.Debugf("conn %d: auth failed for user %q", s.env.connID, req.Username)
		s.client.Close()
		return &finished{}, nil
	}
	s.env.log.Debugf("conn %d: auth succeeded for user %q", s.env.connID, req.Username)
	return &awaitingClientRequest{client: s.client, env: s.env}, nil
}

// awaitingClientRequest parses the CONNECT request, dials the destination,
// and replies with the outcome.
type awaitingClientRequest struct {
	client net.Conn
	env    *env
}

func (s *awaitingClientRequest) step(ctx context.Context) (ConnectionState, error) {
	req, err := wire.ReadClientRequest(ctx, s.client)
	if err != nil {
		s.client.Close()
		return nil, err
	}
	if req.Version != wire.Version {
		s.client.Close()
		return nil, proxyerr.Malformedf("client request carries version %d, want %d", req.Version, wire.Version)
	}
	if req.Command != wire.Connect {
		s.client.Close()
		return nil, proxyerr.Malformedf("unsupported command %s", req.Command)
	}

	outbound, connectErr := s.env.connector.Connect(ctx, req.Address, req.Port)
	if connectErr != nil {
		// Best-effort failure reply; a write error here does not shadow the
		// original connect error.
		_ = wire.WriteRequestResponse(ctx, s.client, wire.RequestResponse{
			Version:     wire.Version,
			Code:        wire.GeneralFailure,
			BindAddress: wire.ZeroIPv4,
			Port:        0,
		})
		s.env.log.Warnf("conn %d: connect to %s:%d failed: %v", s.env.connID, req.Address, req.Port, connectErr)
		s.client.Close()
		return nil, connectErr
	}
	s.env.log.Infof("conn %d: connected to %s:%d", s.env.connID, req.Address, req.Port)

	if err := wire.WriteRequestResponse(ctx, s.client, wire.RequestResponse{
		Version:     wire.Version,
		Code:        wire.Success,
		BindAddress: wire.ZeroIPv4,
		Port:        0,
	}); err != nil {
		s.client.Close()
		outbound.Close()
		return nil, err
	}

	return &proxying{client: s.client, outbound: outbound, env: s.env}, nil
}

// proxying relays bytes between the client and outbound streams until
// either side terminates, then disposes of both and finishes.
type proxying struct {
	client   net.Conn
	outbound net.Conn
	env      *env
}

func (s *proxying) step(ctx context.Context) (ConnectionState, error) {
	err := relay(ctx, s.client, s.outbound)
	if err != nil {
		s.env.log.Warnf("conn %d: relay ended with error: %v", s.env.connID, err)
	}
	s.client.Close()
	s.outbound.Close()
	return &finished{}, nil
}
