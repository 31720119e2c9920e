package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/adred-codev/natscore/internal/transport"
	"github.com/adred-codev/natscore/internal/wire"
)

// serverInfo mirrors the broker's INFO payload (spec.md §6).
type serverInfo struct {
	ServerID     string   `json:"server_id"`
	Version      string   `json:"version"`
	MaxPayload   int64    `json:"max_payload"`
	Proto        int      `json:"proto"`
	ClientID     uint64   `json:"client_id"`
	AuthRequired bool     `json:"auth_required,omitempty"`
	TLSRequired  bool     `json:"tls_required,omitempty"`
	TLSAvailable bool     `json:"tls_available,omitempty"`
	ConnectURLs  []string `json:"connect_urls,omitempty"`
	Headers      bool     `json:"headers,omitempty"`
	Nonce        string   `json:"nonce,omitempty"`
}

// connectFrame mirrors the CONNECT JSON object (spec.md §6).
type connectFrame struct {
	Verbose      bool   `json:"verbose"`
	Pedantic     bool   `json:"pedantic"`
	TLSRequired  bool   `json:"tls_required"`
	Name         string `json:"name,omitempty"`
	Lang         string `json:"lang"`
	Version      string `json:"version"`
	Protocol     int    `json:"protocol"`
	Headers      bool   `json:"headers"`
	NoResponders bool   `json:"no_responders"`
	AuthToken    string `json:"auth_token,omitempty"`
	User         string `json:"user,omitempty"`
	Pass         string `json:"pass,omitempty"`
	Sig          string `json:"sig,omitempty"`
	NKey         string `json:"nkey,omitempty"`
	JWT          string `json:"jwt,omitempty"`
}

const (
	clientLang     = "go"
	clientVersion  = "0.1.0"
	clientProtocol = 1
)

// handshake performs the synchronous exchange of spec.md §4.6's
// "Handshaking" row: read INFO, negotiate TLS, send CONNECT, send PING,
// await PONG. It returns the negotiated serverInfo; a TLS upgrade replaces
// the connection inside sock in place.
func (c *Conn) handshake(sock *transport.Socket, addr string) (serverInfo, error) {
	deadline := time.Now().Add(c.opts.DialTimeout + c.opts.PingTimeout)
	_ = sock.SetDeadline(deadline)
	defer sock.SetDeadline(time.Time{})

	serverName := addr
	if i := hostOnly(addr); i != "" {
		serverName = i
	}
	tlsCfg := transport.TLSConfig{
		Mode:               c.opts.TLSMode,
		ServerName:         serverName,
		RootCAs:            c.opts.TLSConfig,
		InsecureSkipVerify: c.opts.TLSInsecureSkipVerify,
	}

	// Implicit TLS wraps the socket before anything is read: the server
	// speaks TLS from byte zero, so reading INFO as plaintext first would
	// hang or fail to parse the TLS handshake bytes as a wire frame.
	if c.opts.TLSMode == transport.TLSImplicit {
		if err := sock.Upgrade(tlsCfg, true); err != nil {
			return serverInfo{}, &Error{Kind: KindTLS, Err: err}
		}
	}

	dec := wire.NewDecoder()
	info, err := c.readInfo(sock, dec)
	if err != nil {
		return serverInfo{}, &Error{Kind: KindProtocol, Err: err}
	}

	if c.opts.TLSMode != transport.TLSImplicit {
		if err := sock.Upgrade(tlsCfg, info.TLSRequired || info.TLSAvailable); err != nil {
			return serverInfo{}, &Error{Kind: KindTLS, Err: err}
		}
	}

	connectJSON, err := c.buildConnect(info)
	if err != nil {
		return serverInfo{}, &Error{Kind: KindAuth, Err: err}
	}
	if err := sock.Write(wire.EncodeConnect(connectJSON)); err != nil {
		return serverInfo{}, &Error{Kind: KindTransport, Err: err}
	}
	if err := sock.Write(wire.EncodePing()); err != nil {
		return serverInfo{}, &Error{Kind: KindTransport, Err: err}
	}

	if err := c.awaitPong(sock, dec); err != nil {
		return serverInfo{}, err
	}

	return info, nil
}

func (c *Conn) readInfo(sock *transport.Socket, dec *wire.Decoder) (serverInfo, error) {
	buf := make([]byte, 4096)
	for {
		f, err := dec.Next()
		if err == nil {
			if f.Op != wire.OpInfo {
				return serverInfo{}, fmt.Errorf("expected INFO, got %s", f.Op)
			}
			var info serverInfo
			if jsonErr := json.Unmarshal(f.JSON, &info); jsonErr != nil {
				return serverInfo{}, fmt.Errorf("decode INFO: %w", jsonErr)
			}
			return info, nil
		}
		if err != wire.ErrNeedMore {
			return serverInfo{}, err
		}
		n, rerr := sock.ReadInto(buf)
		if n == 0 || rerr != nil {
			return serverInfo{}, fmt.Errorf("connection closed waiting for INFO")
		}
		dec.Feed(buf[:n])
	}
}

func (c *Conn) awaitPong(sock *transport.Socket, dec *wire.Decoder) error {
	buf := make([]byte, 4096)
	for {
		f, err := dec.Next()
		if err == nil {
			switch f.Op {
			case wire.OpPong:
				return nil
			case wire.OpErr:
				return &Error{Kind: KindAuth, Err: fmt.Errorf("%s", f.ErrText)}
			default:
				// +OK (verbose mode) or a stray frame; keep waiting for PONG.
				continue
			}
		}
		if err != wire.ErrNeedMore {
			return &Error{Kind: KindProtocol, Err: err}
		}
		n, rerr := sock.ReadInto(buf)
		if n == 0 || rerr != nil {
			return &Error{Kind: KindTransport, Err: fmt.Errorf("connection closed awaiting PONG")}
		}
		dec.Feed(buf[:n])
	}
}

func (c *Conn) buildConnect(info serverInfo) ([]byte, error) {
	cf := connectFrame{
		Verbose:      false,
		Pedantic:     false,
		TLSRequired:  c.opts.TLSMode != transport.TLSDisabled,
		Name:         c.opts.Name,
		Lang:         clientLang,
		Version:      clientVersion,
		Protocol:     clientProtocol,
		Headers:      true,
		NoResponders: true,
		AuthToken:    c.creds.Token,
		User:         c.creds.User,
		Pass:         c.creds.Pass,
		JWT:          c.creds.JWT,
	}

	if pub, err := c.creds.PublicKey(); err == nil && pub != "" {
		cf.NKey = pub
		if info.Nonce != "" {
			sig, err := c.creds.SignNonce([]byte(info.Nonce))
			if err != nil {
				return nil, err
			}
			cf.Sig = sig
		}
	}

	return json.Marshal(cf)
}

func hostOnly(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
