// Package transport owns a single full-duplex byte stream to one broker:
// dial, optional TLS upgrade, byte-stream reads, and a committed-write
// interface. It never interprets protocol bytes; that is wire's job.
package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// TLSMode mirrors spec.md §4.2's policy enum.
type TLSMode int

const (
	TLSDisabled TLSMode = iota
	TLSPrefer
	TLSRequire
	TLSImplicit
)

// Socket is a connected transport to one server. All methods are safe to
// call from the supervisor's single owning goroutine; Socket has no
// internal locking because spec.md §5 assigns it exclusively to that task.
type Socket struct {
	conn net.Conn
}

// DialConfig carries what Dial needs to open a raw TCP connection before any
// protocol negotiation happens.
type DialConfig struct {
	Timeout time.Duration
}

// Dial opens a plain TCP connection to addr. TLS upgrade (when the server's
// INFO advertises it, or when TLSImplicit is configured) happens afterward
// via Upgrade, mirroring the handshake ordering in spec.md §4.6.
func Dial(addr string, cfg DialConfig) (*Socket, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	c, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Socket{conn: c}, nil
}

// TLSConfig bundles the options needed to upgrade an established TCP
// connection.
type TLSConfig struct {
	Mode               TLSMode
	ServerName         string
	RootCAs            *tls.Config // caller-provided base config (certs/ServerName already loaded)
	InsecureSkipVerify bool
}

// Upgrade performs the TLS handshake over the existing connection when mode
// requires or prefers it. serverAdvertisesTLS reflects the INFO frame's
// tls_required or tls_available field; Prefer only upgrades when that is true, Require fails
// otherwise, Implicit always upgrades (and must be called before any bytes
// are sent, per spec.md §4.2).
func (s *Socket) Upgrade(cfg TLSConfig, serverAdvertisesTLS bool) error {
	switch cfg.Mode {
	case TLSDisabled:
		return nil
	case TLSPrefer:
		if !serverAdvertisesTLS {
			return nil
		}
	case TLSRequire:
		if !serverAdvertisesTLS {
			return fmt.Errorf("transport: tls required but server did not advertise tls support")
		}
	case TLSImplicit:
		// always upgrades
	default:
		return fmt.Errorf("transport: unknown tls mode %d", cfg.Mode)
	}

	base := cfg.RootCAs
	if base == nil {
		base = &tls.Config{} //nolint:gosec // caller fills certs/min-version; zero value only when untouched by options
	}
	tlsCfg := base.Clone()
	tlsCfg.ServerName = cfg.ServerName
	tlsCfg.InsecureSkipVerify = cfg.InsecureSkipVerify

	tlsConn := tls.Client(s.conn, tlsCfg)
	if err := tlsConn.Handshake(); err != nil {
		return fmt.Errorf("transport: tls handshake: %w", err)
	}
	s.conn = tlsConn
	return nil
}

// ReadInto reads available bytes into buf, returning the count appended.
// Peer closure is reported as a zero count together with the underlying
// connection's error (io.EOF for an orderly close).
func (s *Socket) ReadInto(buf []byte) (int, error) {
	n, err := s.conn.Read(buf)
	if err != nil {
		return n, err
	}
	return n, nil
}

// Write commits bytes to the socket. There is no partial-write return: the
// command writer is the only caller and it always wants all-or-error
// semantics per frame boundary (spec.md §4.3).
func (s *Socket) Write(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

// SetDeadline bounds the next read/write pair, used during the
// resolve->connect->handshake window before the connection is Open.
func (s *Socket) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

// Shutdown closes the underlying connection.
func (s *Socket) Shutdown() error {
	return s.conn.Close()
}

// RemoteAddr returns the peer address, used for logging and events.
func (s *Socket) RemoteAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}
