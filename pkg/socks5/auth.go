// Package socks5 implements the per-connection SOCKS5 protocol state machine:
// the handshake driver, the auth policy, the destination connector, and the
// bidirectional relay. The wire codec lives in pkg/wire; this package
// supplies the I/O policy and decision logic around it.
package socks5

import (
	"crypto/subtle"

	"github.com/mehranr/socks5gate/pkg/wire"
)

// Credentials is the single username/password pair this server accepts, held
// once at process scope and immutable after construction.
type Credentials struct {
	username string
	password string
}

// NewCredentials builds an immutable Credentials pair.
func NewCredentials(username, password string) *Credentials {
	return &Credentials{username: username, password: password}
}

// AuthPolicy decides which authentication method the server offers and
// whether a submitted username/password is acceptable. It holds an optional
// Credentials and is safe for concurrent use by every connection: it is
// immutable after construction, so no locking is needed beyond ordinary
// publication.
type AuthPolicy struct {
	credentials *Credentials
}

// NewAuthPolicy builds a policy around an optional credential pair. A nil
// credentials means the server accepts unauthenticated clients.
func NewAuthPolicy(credentials *Credentials) *AuthPolicy {
	return &AuthPolicy{credentials: credentials}
}

// expectedMethod is the method this policy requires: UserPass if a
// credential pair is configured, NoAuth otherwise.
func (p *AuthPolicy) expectedMethod() wire.AuthMethod {
	if p.credentials != nil {
		return wire.UserPass
	}
	return wire.NoAuth
}

// SelectMethod returns the server's expected method and true iff it appears
// among offered. Ordering and duplicates in offered are irrelevant.
func (p *AuthPolicy) SelectMethod(offered []wire.AuthMethod) (wire.AuthMethod, bool) {
	expected := p.expectedMethod()
	for _, m := range offered {
		if m == expected {
			return expected, true
		}
	}
	return 0, false
}

// Authenticate reports whether username/password match the configured
// credentials. If no credentials are configured this path is unreachable in
// practice — SelectMethod never offers UserPass in that case — but an
// unreachable arrival is treated as "accept" rather than a crash, per the
// documented resolution of this implementation's source ambiguity.
func (p *AuthPolicy) Authenticate(username, password string) bool {
	if p.credentials == nil {
		return true
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(p.credentials.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(p.credentials.password)) == 1
	return userOK && passOK
}
