package socks5

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mehranr/socks5gate/pkg/wire"
)

func TestSelectMethodNoAuthConfigured(t *testing.T) {
	policy := NewAuthPolicy(nil)

	method, ok := policy.SelectMethod([]wire.AuthMethod{wire.UserPass, wire.NoAuth})
	require.True(t, ok)
	require.Equal(t, wire.NoAuth, method)

	_, ok = policy.SelectMethod([]wire.AuthMethod{wire.UserPass})
	require.False(t, ok)
}

func TestSelectMethodUserPassConfigured(t *testing.T) {
	policy := NewAuthPolicy(NewCredentials("alice", "secret"))

	method, ok := policy.SelectMethod([]wire.AuthMethod{wire.NoAuth, wire.UserPass})
	require.True(t, ok)
	require.Equal(t, wire.UserPass, method)

	_, ok = policy.SelectMethod([]wire.AuthMethod{wire.NoAuth})
	require.False(t, ok)
}

func TestAuthenticateNoCredentialsAlwaysAccepts(t *testing.T) {
	policy := NewAuthPolicy(nil)
	require.True(t, policy.Authenticate("", ""))
	require.True(t, policy.Authenticate("anyone", "anything"))
}

func TestAuthenticateWithCredentials(t *testing.T) {
	policy := NewAuthPolicy(NewCredentials("alice", "secret"))

	require.True(t, policy.Authenticate("alice", "secret"))
	require.False(t, policy.Authenticate("alice", "wrong"))
	require.False(t, policy.Authenticate("bob", "secret"))
	require.False(t, policy.Authenticate("", ""))
}
