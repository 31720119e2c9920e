// Package nats is a client library for a publish/subscribe messaging
// system with an optional durable stream layer ("JetStream"): a
// reconnecting connection core (this package) plus a pull-consumer engine
// (package jetstream).
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/natscore/internal/auth"
	"github.com/adred-codev/natscore/internal/backoff"
	"github.com/adred-codev/natscore/internal/inbox"
	"github.com/adred-codev/natscore/internal/ratelimit"
	"github.com/adred-codev/natscore/internal/subs"
	"github.com/adred-codev/natscore/internal/transport"
	"github.com/adred-codev/natscore/internal/wire"
	"github.com/adred-codev/natscore/internal/writer"
)

// Conn is a long-lived, auto-reconnecting connection to a broker cluster,
// implementing the state machine of spec.md §4.6.
type Conn struct {
	opts  Options
	log   zerolog.Logger
	creds auth.Credentials

	mu        sync.RWMutex
	state     State
	servers   []string
	serverIdx int
	info      serverInfo
	sock      *transport.Socket

	writer   *writer.Writer
	registry *subs.Registry
	mux      *inbox.Mux

	stats statsCounters

	pongMu   sync.Mutex
	pongWait []chan struct{}
	pingsOut int

	bo       backoff.Backoff
	reconnRL *ratelimit.Limiter

	closeOnce      sync.Once
	closed         chan struct{}
	supervisorDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	firstConnect      chan error // closed (with error stored) after the first connect attempt settles
	firstConnectOnce  sync.Once
	inboxRegistered   bool
}

// Connect dials url (a single server or comma-separated list) and blocks
// until the connection reaches Open or permanently fails, matching the
// common synchronous-connect ergonomics of the NATS client ecosystem.
func Connect(url string, options ...Option) (*Conn, error) {
	opts := DefaultOptions()
	opts.URL = url
	for _, o := range options {
		o(&opts)
	}
	return connectWithOptions(opts)
}

// ConnectWithOptions is Connect for callers who built Options directly
// (e.g. via OptionsFromEnv).
func ConnectWithOptions(opts Options) (*Conn, error) {
	return connectWithOptions(opts)
}

func connectWithOptions(opts Options) (*Conn, error) {
	creds, err := auth.Resolve(auth.Config{
		Token:           opts.Auth.Token,
		User:            opts.Auth.User,
		Pass:            opts.Auth.Pass,
		JWT:             opts.Auth.JWT,
		NKeySeed:        opts.Auth.NKeySeed,
		CredentialsFile: opts.Auth.CredentialsFile,
	})
	if err != nil {
		return nil, &Error{Kind: KindAuth, Err: err}
	}

	prefix := opts.InboxPrefix
	if prefix == "" {
		prefix = inbox.NewPrefix()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Conn{
		opts:           opts,
		log:            opts.Logger,
		creds:          creds,
		servers:        shuffle(parseServers(opts.URL)),
		writer:         writer.New(opts.CommandWriterBufferSize, opts.Logger),
		registry:       subs.New(opts.SubscriptionCleanupInterval, opts.Logger),
		mux:            inbox.New(prefix),
		closed:         make(chan struct{}),
		supervisorDone: make(chan struct{}),
		firstConnect:   make(chan error, 1),
		bo:             backoff.Backoff{Min: opts.ReconnectDelayMin, Max: opts.ReconnectDelayMax, Jitter: opts.ReconnectJitter},
		reconnRL:       ratelimit.New(opts.ReconnectRateLimit, opts.ReconnectRateBurst),
		ctx:            ctx,
		cancel:         cancel,
	}

	go c.supervise()

	select {
	case err := <-c.firstConnect:
		if err != nil {
			return nil, err
		}
		return c, nil
	case <-c.closed:
		return nil, &Error{Kind: KindTransport, Err: errConnectionClosed}
	}
}

// supervise runs Closed -> Connecting -> Handshaking -> Open -> Reconnecting
// forever until Close, applying spec.md §4.6's transition table.
func (c *Conn) supervise() {
	defer close(c.supervisorDone)

	attempt := 0
	for {
		select {
		case <-c.closed:
			return
		default:
		}

		addr, ok := c.nextServer()
		if !ok {
			c.settleFirstConnect(&Error{Kind: KindTransport, Err: fmt.Errorf("no servers configured")})
			return
		}

		// Bounds dial-attempt frequency beyond what the backoff delay
		// already paces; a no-op when ReconnectRateLimit is disabled.
		if err := c.reconnRL.Wait(c.ctx); err != nil {
			return
		}

		c.setState(StateConnecting)
		sock, err := transport.Dial(addr, transport.DialConfig{Timeout: c.opts.DialTimeout})
		if err != nil {
			c.log.Debug().Err(err).Str("addr", addr).Msg("nats: dial failed")
			if !c.backoffOrGiveUp(&attempt) {
				return
			}
			continue
		}

		c.setState(StateHandshaking)
		info, err := c.handshake(sock, addr)
		if err != nil {
			_ = sock.Shutdown()
			c.log.Debug().Err(err).Str("addr", addr).Msg("nats: handshake failed")
			c.settleFirstConnect(err)
			if !c.backoffOrGiveUp(&attempt) {
				return
			}
			continue
		}

		c.onOpen(sock, info)
		attempt = 0

		disconnectErr := c.runOpen(sock)
		c.onDisconnect(disconnectErr)

		select {
		case <-c.closed:
			return
		default:
		}
		if !c.backoffOrGiveUp(&attempt) {
			return
		}
	}
}

func (c *Conn) nextServer() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.servers) == 0 {
		return "", false
	}
	addr := c.servers[c.serverIdx%len(c.servers)]
	c.serverIdx++
	return addr, true
}

func (c *Conn) backoffOrGiveUp(attempt *int) bool {
	if c.opts.MaxReconnects >= 0 && *attempt >= c.opts.MaxReconnects {
		c.settleFirstConnect(&Error{Kind: KindTransport, Err: fmt.Errorf("max reconnects exceeded")})
		return false
	}
	c.setState(StateReconnecting)
	c.emit(EventReconnecting, nil)
	delay := c.bo.Delay(*attempt)
	*attempt++
	select {
	case <-time.After(delay):
		return true
	case <-c.closed:
		return false
	}
}

func (c *Conn) onOpen(sock *transport.Socket, info serverInfo) {
	c.mu.Lock()
	c.sock = sock
	c.info = info
	c.mu.Unlock()

	c.writer.SetSink(&socketSink{sock: sock})

	wasReconnect := false
	c.mu.Lock()
	if c.inboxRegistered {
		wasReconnect = true
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
	defer cancel()

	if wasReconnect {
		if err := c.registry.Replay(ctx, c.writer); err != nil {
			c.log.Warn().Err(err).Msg("nats: subscription replay failed")
		}
	} else {
		if _, err := c.registry.Subscribe(ctx, c.writer, c.mux.Wildcard(), "", 0, inboxSink{c}); err != nil {
			c.log.Warn().Err(err).Msg("nats: inbox subscription failed")
		}
		c.mu.Lock()
		c.inboxRegistered = true
		c.mu.Unlock()
	}

	c.setState(StateOpen)
	if wasReconnect {
		c.stats.reconnects.Add(1)
		c.emit(EventReconnected, nil)
	} else {
		c.emit(EventConnected, nil)
	}
	c.settleFirstConnect(nil)
}

func (c *Conn) onDisconnect(err error) {
	c.mu.Lock()
	c.sock = nil
	c.mu.Unlock()
	c.setState(StateReconnecting)
	c.emit(EventDisconnected, err)
}

func (c *Conn) settleFirstConnect(err error) {
	c.firstConnectOnce.Do(func() {
		c.firstConnect <- err
	})
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Status returns the current connection state.
func (c *Conn) Status() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ConnectedURL returns the address of the currently connected server, or
// "" when not Open.
func (c *Conn) ConnectedURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sock == nil {
		return ""
	}
	return c.sock.RemoteAddr()
}

// MaxPayload returns the server's advertised max_payload, or 0 if unknown.
func (c *Conn) MaxPayload() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.MaxPayload
}

// socketSink adapts *transport.Socket to writer.Sink.
type socketSink struct {
	sock *transport.Socket
}

func (s *socketSink) Write(b []byte) error { return s.sock.Write(b) }

// runOpen owns the read-dispatch loop and ping liveness check for one
// connected session. It blocks until the socket closes, a protocol error
// occurs, or two consecutive PINGs go unanswered (spec.md §4.6's
// "missing two consecutive PONGs" liveness rule), returning the reason.
func (c *Conn) runOpen(sock *transport.Socket) error {
	pingCtx, cancelPing := context.WithCancel(context.Background())
	defer cancelPing()
	go c.pingLoop(pingCtx, sock)

	dec := wire.NewDecoder()
	buf := make([]byte, 32*1024)
	for {
		n, err := sock.ReadInto(buf)
		if n == 0 || err != nil {
			return &Error{Kind: KindTransport, Err: fmt.Errorf("read: %w", err)}
		}
		c.stats.inBytes.Add(uint64(n))
		dec.Feed(buf[:n])
		for {
			f, err := dec.Next()
			if err == wire.ErrNeedMore {
				break
			}
			if err != nil {
				return &Error{Kind: KindProtocol, Err: err}
			}
			c.dispatch(f)
		}
	}
}

func (c *Conn) dispatch(f *wire.Frame) {
	switch f.Op {
	case wire.OpPing:
		_ = c.writer.Write(context.Background(), wire.EncodePong())
	case wire.OpPong:
		c.signalPong()
	case wire.OpInfo:
		var info serverInfo
		if err := json.Unmarshal(f.JSON, &info); err == nil && len(info.ConnectURLs) > 0 {
			c.mu.Lock()
			c.servers = mergeConnectURLs(c.servers, info.ConnectURLs)
			c.mu.Unlock()
		}
	case wire.OpErr:
		c.log.Warn().Str("err", f.ErrText).Msg("nats: server error")
		if c.opts.ErrorCB != nil {
			c.opts.ErrorCB(c, nil, fmt.Errorf("%s", f.ErrText))
		}
	case wire.OpMsg, wire.OpHMsg:
		c.stats.inMsgs.Add(1)
		if c.isInboxSubject(f.Subject) {
			c.mux.Dispatch(f)
			return
		}
		c.registry.Deliver(context.Background(), c.writer, f)
	}
}

func (c *Conn) isInboxSubject(subject string) bool {
	prefix := c.mux.Wildcard()
	prefix = prefix[:len(prefix)-1] // strip trailing "*"
	return strings.HasPrefix(subject, prefix)
}

// pingLoop issues PING at opts.PingInterval and tracks outstanding PONGs,
// closing the session when opts.MaxPingsOut consecutive PONGs are missed.
func (c *Conn) pingLoop(ctx context.Context, sock *transport.Socket) {
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.pongMu.Lock()
			c.pingsOut++
			missed := c.pingsOut
			c.pongMu.Unlock()
			if missed > c.opts.MaxPingsOut {
				_ = sock.Shutdown()
				return
			}
			if err := c.writer.Write(ctx, wire.EncodePing()); err != nil {
				return
			}
		}
	}
}

func (c *Conn) signalPong() {
	c.pongMu.Lock()
	c.pingsOut = 0
	waiters := c.pongWait
	c.pongWait = nil
	c.pongMu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// Flush sends a PING and waits for the matching PONG, giving callers a
// synchronization barrier equivalent to the "ping-pong barrier" spec.md
// §4.4 requires subscribe acknowledgement to await.
func (c *Conn) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	c.pongMu.Lock()
	c.pongWait = append(c.pongWait, ch)
	c.pongMu.Unlock()

	if err := c.writer.Write(ctx, wire.EncodePing()); err != nil {
		return err
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return &Error{Kind: KindTimeout, Err: ctx.Err()}
	case <-c.closed:
		return &Error{Kind: KindCanceled, Err: errConnectionClosed}
	}
}

// Close tears down the connection permanently: any inflight waiters are
// surfaced ConnectionClosed, matching spec.md §4.6's "any -> dispose() ->
// Closed" row.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
		c.mu.RLock()
		sock := c.sock
		c.mu.RUnlock()
		if sock != nil {
			_ = sock.Shutdown()
		}
		<-c.supervisorDone
		c.writer.Close()
		c.registry.Close()
		c.setState(StateClosed)
		c.emit(EventClosed, nil)
	})
}

// inboxSink adapts the connection's inbox multiplexer to subs.Sink, since
// the registry addresses it as an ordinary subscription (the single real
// "<prefix>*" SUB per spec.md §4.5).
type inboxSink struct{ c *Conn }

func (s inboxSink) Deliver(f *wire.Frame) { s.c.mux.Dispatch(f) }
