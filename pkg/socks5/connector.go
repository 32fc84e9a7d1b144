package socks5

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/mehranr/socks5gate/pkg/proxyerr"
	"github.com/mehranr/socks5gate/pkg/wire"
)

// Connector turns a parsed destination address into an open outbound byte
// stream. It is the only collaborator the state machine needs to reach the
// network beyond the client socket itself.
type Connector interface {
	Connect(ctx context.Context, addr wire.Address, port uint16) (net.Conn, error)
}

// DialConnector is the default Connector: it dials IP literals directly and
// resolves domain names with the system resolver, trying each resolved
// address in order until one connects.
type DialConnector struct {
	Resolver *net.Resolver
	Dialer   *net.Dialer
}

// NewDialConnector builds a DialConnector whose dials time out after
// timeout. A zero timeout means no per-dial deadline beyond ctx's own.
func NewDialConnector(timeout time.Duration) *DialConnector {
	return &DialConnector{
		Resolver: net.DefaultResolver,
		Dialer:   &net.Dialer{Timeout: timeout},
	}
}

// Connect implements Connector.
func (d *DialConnector) Connect(ctx context.Context, addr wire.Address, port uint16) (net.Conn, error) {
	switch addr.Type {
	case wire.AtypIPv4, wire.AtypIPv6:
		return d.dial(ctx, net.JoinHostPort(net.IP(addr.IP).String(), portString(port)))
	case wire.AtypDomain:
		return d.connectDomain(ctx, addr.Domain, port)
	default:
		return nil, proxyerr.Genericf("internal error: unsupported address type in connector")
	}
}

func (d *DialConnector) connectDomain(ctx context.Context, name string, port uint16) (net.Conn, error) {
	ipAddrs, err := d.Resolver.LookupIPAddr(ctx, name)
	if err != nil || len(ipAddrs) == 0 {
		return nil, proxyerr.DNSErrf("no usable address for %q: %v", name, err)
	}

	var lastErr error
	for _, ipAddr := range ipAddrs {
		conn, err := d.dial(ctx, net.JoinHostPort(ipAddr.IP.String(), portString(port)))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, proxyerr.IOErr(lastErr)
}

func (d *DialConnector) dial(ctx context.Context, address string) (net.Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, proxyerr.IOErr(err)
	}
	return conn, nil
}

func portString(port uint16) string {
	return strconv.Itoa(int(port))
}
