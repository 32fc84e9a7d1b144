package wire

import (
	"context"
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/mehranr/socks5gate/pkg/proxyerr"
)

// ReadHelloRequest parses the client's initial greeting:
// ver(1) nmethods(1) methods(nmethods).
func ReadHelloRequest(ctx context.Context, r io.Reader) (*HelloRequest, error) {
	hdr := make([]byte, 2)
	if err := readFull(ctx, r, hdr); err != nil {
		return nil, proxyerr.IOErr(err)
	}
	nMethods := hdr[1]
	if nMethods == 0 {
		return nil, proxyerr.Malformedf("hello request carries zero methods")
	}
	raw := make([]byte, nMethods)
	if err := readFull(ctx, r, raw); err != nil {
		return nil, proxyerr.IOErr(err)
	}
	methods := make([]AuthMethod, nMethods)
	for i, b := range raw {
		m := AuthMethod(b)
		if m != NoAuth && m != UserPass {
			return nil, proxyerr.Malformedf("hello request offers unsupported method 0x%02x", b)
		}
		methods[i] = m
	}
	return &HelloRequest{Version: hdr[0], Methods: methods}, nil
}

// WriteHelloResponse serializes and flushes ver(1) method(1).
func WriteHelloResponse(ctx context.Context, w io.Writer, resp HelloResponse) error {
	buf := []byte{resp.Version, byte(resp.Method)}
	if err := writeAll(ctx, w, buf); err != nil {
		return proxyerr.IOErr(err)
	}
	return nil
}

// ReadAuthRequest parses ver(1)=1 ulen(1) uname(ulen) plen(1) passwd(plen).
func ReadAuthRequest(ctx context.Context, r io.Reader) (*AuthRequest, error) {
	ver := make([]byte, 1)
	if err := readFull(ctx, r, ver); err != nil {
		return nil, proxyerr.IOErr(err)
	}
	username, err := readLengthPrefixed(ctx, r)
	if err != nil {
		return nil, err
	}
	password, err := readLengthPrefixed(ctx, r)
	if err != nil {
		return nil, err
	}
	return &AuthRequest{Version: ver[0], Username: username, Password: password}, nil
}

// WriteAuthResponse serializes and flushes ver(1) status(1).
func WriteAuthResponse(ctx context.Context, w io.Writer, resp AuthResponse) error {
	buf := []byte{resp.Version, byte(resp.Status)}
	if err := writeAll(ctx, w, buf); err != nil {
		return proxyerr.IOErr(err)
	}
	return nil
}

// ReadClientRequest parses ver(1) cmd(1) rsv(1, ignored) atyp(1) addr(var) port(2).
func ReadClientRequest(ctx context.Context, r io.Reader) (*ClientRequest, error) {
	hdr := make([]byte, 3)
	if err := readFull(ctx, r, hdr); err != nil {
		return nil, proxyerr.IOErr(err)
	}
	atypBuf := make([]byte, 1)
	if err := readFull(ctx, r, atypBuf); err != nil {
		return nil, proxyerr.IOErr(err)
	}
	addr, err := readAddress(ctx, r, AddressType(atypBuf[0]))
	if err != nil {
		return nil, err
	}
	portBuf := make([]byte, 2)
	if err := readFull(ctx, r, portBuf); err != nil {
		return nil, proxyerr.IOErr(err)
	}
	return &ClientRequest{
		Version: hdr[0],
		Command: Command(hdr[1]),
		Address: addr,
		Port:    binary.BigEndian.Uint16(portBuf),
	}, nil
}

// WriteRequestResponse serializes and flushes ver(1) code(1) rsv(1)=0 atyp(1)
// addr(var) port(2). A Domain bind address is a programming error: this
// server never binds a named address, so encoding one here would silently
// emit a malformed reply to the client instead of surfacing the bug.
func WriteRequestResponse(ctx context.Context, w io.Writer, resp RequestResponse) error {
	if resp.BindAddress.Type == AtypDomain {
		return proxyerr.Genericf("internal error: cannot serialize a domain bind address")
	}
	buf := make([]byte, 0, 22)
	buf = append(buf, resp.Version, byte(resp.Code), 0x00)
	buf = append(buf, addressBytes(resp.BindAddress)...)
	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, resp.Port)
	buf = append(buf, portBuf...)
	if err := writeAll(ctx, w, buf); err != nil {
		return proxyerr.IOErr(err)
	}
	return nil
}

func readAddress(ctx context.Context, r io.Reader, atyp AddressType) (Address, error) {
	switch atyp {
	case AtypIPv4:
		buf := make([]byte, 4)
		if err := readFull(ctx, r, buf); err != nil {
			return Address{}, proxyerr.IOErr(err)
		}
		return IPAddress(buf), nil
	case AtypIPv6:
		buf := make([]byte, 16)
		if err := readFull(ctx, r, buf); err != nil {
			return Address{}, proxyerr.IOErr(err)
		}
		return IPAddress(buf), nil
	case AtypDomain:
		name, err := readLengthPrefixed(ctx, r)
		if err != nil {
			return Address{}, err
		}
		return DomainAddress(name), nil
	default:
		return Address{}, proxyerr.Malformedf("unsupported address type 0x%02x", byte(atyp))
	}
}

func addressBytes(a Address) []byte {
	switch a.Type {
	case AtypDomain:
		buf := make([]byte, 0, 2+len(a.Domain))
		buf = append(buf, byte(AtypDomain), byte(len(a.Domain)))
		return append(buf, a.Domain...)
	default:
		buf := make([]byte, 0, 1+len(a.IP))
		buf = append(buf, byte(a.Type))
		return append(buf, a.IP...)
	}
}

// readLengthPrefixed reads one length byte N (1..=255) followed by N bytes,
// validated as UTF-8.
func readLengthPrefixed(ctx context.Context, r io.Reader) (string, error) {
	lenBuf := make([]byte, 1)
	if err := readFull(ctx, r, lenBuf); err != nil {
		return "", proxyerr.IOErr(err)
	}
	n := lenBuf[0]
	if n == 0 {
		return "", proxyerr.Malformedf("length-prefixed field carries zero length")
	}
	buf := make([]byte, n)
	if err := readFull(ctx, r, buf); err != nil {
		return "", proxyerr.IOErr(err)
	}
	if !utf8.Valid(buf) {
		return "", proxyerr.Malformedf("length-prefixed field is not valid UTF-8")
	}
	return string(buf), nil
}
