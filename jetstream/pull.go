package jetstream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	nats "github.com/adred-codev/natscore"
)

const (
	minIdleHeartbeat     = 500 * time.Millisecond
	maxIdleHeartbeat     = 30 * time.Second
	defaultIdleHeartbeat = 15 * time.Second

	minExpires     = 1 * time.Second
	maxExpires     = 300 * time.Second
	defaultExpires = 30 * time.Second

	// pullBatchSentinel bounds a byte-limited pull's message count so the
	// broker is effectively bounded by bytes only (spec.md §4.9).
	pullBatchSentinel = 1_000_000

	defaultMaxMsgs = 100
)

// ConsumeConfig is a pull-consumer engine invocation's parameters,
// spec.md §3's "Pull-consumer state".
type ConsumeConfig struct {
	MaxMsgs        int64
	MaxBytes       int64
	ThresholdMsgs  int64
	ThresholdBytes int64
	Expires        time.Duration
	IdleHeartbeat  time.Duration
}

func (cfg ConsumeConfig) normalize() (ConsumeConfig, error) {
	if cfg.MaxMsgs > 0 && cfg.MaxBytes > 0 {
		return cfg, &nats.Error{Kind: nats.KindUsage, Err: ErrBothLimits}
	}
	if cfg.MaxMsgs == 0 && cfg.MaxBytes == 0 {
		cfg.MaxMsgs = defaultMaxMsgs
	}
	if cfg.MaxMsgs > 0 && cfg.ThresholdMsgs == 0 {
		cfg.ThresholdMsgs = cfg.MaxMsgs / 2
	}
	if cfg.MaxBytes > 0 && cfg.ThresholdBytes == 0 {
		cfg.ThresholdBytes = cfg.MaxBytes / 2
	}
	cfg.IdleHeartbeat = clampDuration(cfg.IdleHeartbeat, minIdleHeartbeat, maxIdleHeartbeat, defaultIdleHeartbeat)
	cfg.Expires = clampDuration(cfg.Expires, minExpires, maxExpires, defaultExpires)
	return cfg, nil
}

func clampDuration(d, min, max, def time.Duration) time.Duration {
	if d <= 0 {
		d = def
	}
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// NotificationKind enumerates the pull-consumer engine's lifecycle events
// (spec.md §3's "notification_channel").
type NotificationKind int

const (
	NotifyPulled NotificationKind = iota
	NotifyRefilled
	NotifyTimedOut
	NotifyHeartbeatLost
	NotifyTerminated
)

// Notification is one lifecycle event emitted on a Consumption's
// notification channel.
type Notification struct {
	Kind NotificationKind
	Err  error
}

// pullRequest is the JSON payload of a CONSUMER.MSG.NEXT request
// (spec.md §4.9).
type pullRequest struct {
	Batch         int64 `json:"batch"`
	MaxBytes      int64 `json:"max_bytes,omitempty"`
	Expires       int64 `json:"expires,omitempty"`
	IdleHeartbeat int64 `json:"idle_heartbeat,omitempty"`
	NoWait        bool  `json:"no_wait,omitempty"`
}

// PullConsumer addresses one broker-side pull consumer.
type PullConsumer struct {
	js       *JetStream
	stream   string
	consumer string
}

// PullSubscribe binds a PullConsumer to an existing stream/consumer pair.
func (js *JetStream) PullSubscribe(stream, consumer string) *PullConsumer {
	return &PullConsumer{js: js, stream: stream, consumer: consumer}
}

// Consumption is the live message/notification stream of one Consume call.
type Consumption struct {
	msgs   chan *nats.Msg
	notify chan Notification

	cancelRoute func()
	stopOnce    sync.Once
	stopped     chan struct{}

	watchdog *time.Timer

	inbox string

	mu           sync.Mutex
	cfg          ConsumeConfig
	byteLimited  bool
	pendingMsgs  int64
	pendingBytes int64
	refilling    bool

	pc  *PullConsumer
	ctx context.Context
}

// Messages yields delivered stream messages in broker order.
func (c *Consumption) Messages() <-chan *nats.Msg { return c.msgs }

// Notifications yields lifecycle events (spec.md §3's notification_channel).
func (c *Consumption) Notifications() <-chan Notification { return c.notify }

// Stop cancels the consumption: no further pulls are issued, the inbox
// route is torn down, and both channels are closed.
func (c *Consumption) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		c.cancelRoute()
		if c.watchdog != nil {
			c.watchdog.Stop()
		}
		close(c.msgs)
		close(c.notify)
	})
}

// Consume starts the pull cycle: Idle -> Pulling (spec.md §4.9's per-
// invocation state machine). It returns once the initial pull request has
// been sent; messages and notifications arrive asynchronously.
func (pc *PullConsumer) Consume(ctx context.Context, cfg ConsumeConfig) (*Consumption, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	byteLimited := cfg.MaxBytes > 0 && cfg.MaxMsgs == 0
	initialBatch := cfg.MaxMsgs
	if byteLimited {
		initialBatch = pullBatchSentinel
	}

	c := &Consumption{
		msgs:        make(chan *nats.Msg, 64),
		notify:      make(chan Notification, 16),
		stopped:     make(chan struct{}),
		cfg:         cfg,
		byteLimited: byteLimited,
		pendingMsgs: initialBatch,
		pendingBytes: cfg.MaxBytes,
		pc:          pc,
		ctx:         ctx,
	}

	c.inbox = pc.js.conn.NewInbox()
	c.cancelRoute = pc.js.conn.SubscribeInbox(c.inbox, c.onFrame)

	if err := pc.sendPull(ctx, c.inbox, initialBatch, cfg.MaxBytes, cfg); err != nil {
		c.cancelRoute()
		close(c.msgs)
		close(c.notify)
		return nil, err
	}

	c.watchdog = time.AfterFunc(2*cfg.IdleHeartbeat, c.onHeartbeatLost)

	return c, nil
}

func (pc *PullConsumer) sendPull(ctx context.Context, replyInbox string, batch, maxBytes int64, cfg ConsumeConfig) error {
	if err := pc.js.pullRL.Wait(ctx); err != nil {
		return err
	}
	req := pullRequest{
		Batch:         batch,
		MaxBytes:      maxBytes,
		Expires:       cfg.Expires.Nanoseconds(),
		IdleHeartbeat: cfg.IdleHeartbeat.Nanoseconds(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	subject := pc.js.prefix + consumerMsgNextSubject(pc.stream, pc.consumer)
	if err := pc.js.conn.PublishRequest(ctx, subject, replyInbox, body); err != nil {
		return err
	}
	if pc.js.metrics != nil {
		pc.js.metrics.PullsIssued.Inc()
	}
	return nil
}

func (c *Consumption) onFrame(msg *nats.Msg) {
	select {
	case <-c.stopped:
		return
	default:
	}

	c.resetWatchdog()

	if msg.IsStatusOnly() {
		c.onStatus(msg)
		return
	}

	c.mu.Lock()
	c.pendingMsgs--
	c.pendingBytes -= wireSize(msg)
	if c.pendingMsgs < 0 {
		c.pendingMsgs = 0
	}
	if c.pendingBytes < 0 {
		c.pendingBytes = 0
	}
	needsRefill := !c.refilling && c.refillDue()
	if needsRefill {
		c.refilling = true
	}
	c.mu.Unlock()

	// onFrame runs inline on the connection's single read-dispatch goroutine
	// (mux.Dispatch -> this route's sinkFn), so this send must never block:
	// a full msgs channel would stall delivery to every other subscription
	// and PING/PONG handling on the connection, not just this Consumption.
	select {
	case c.msgs <- msg:
	case <-c.stopped:
		return
	default:
		c.pc.js.log.Warn().Str("stream", c.pc.stream).Str("consumer", c.pc.consumer).Msg("jetstream: consumption backlog full, dropping message")
	}

	if needsRefill {
		c.refill()
	}
}

// refillDue reports the predicate of spec.md §3: pending_msgs <=
// threshold_msgs, OR (when byte-limited) pending_bytes <= threshold_bytes.
// Caller must hold c.mu.
func (c *Consumption) refillDue() bool {
	if c.pendingMsgs <= c.cfg.ThresholdMsgs {
		return true
	}
	if c.byteLimited && c.pendingBytes <= c.cfg.ThresholdBytes {
		return true
	}
	return false
}

func (c *Consumption) refill() {
	c.mu.Lock()
	var deltaMsgs, deltaBytes int64
	if !c.byteLimited {
		deltaMsgs = c.cfg.MaxMsgs - c.pendingMsgs
	} else {
		// Batch must stay non-zero on the wire even though this refill is
		// bytes-accounted; the sentinel leaves the broker bounded by
		// max_bytes only (spec.md §8 scenario 2).
		deltaMsgs = pullBatchSentinel
		deltaBytes = c.cfg.MaxBytes - c.pendingBytes
	}
	inbox := c.currentInbox()
	cfg := c.cfg
	c.mu.Unlock()

	if err := c.pc.sendPull(c.ctx, inbox, deltaMsgs, deltaBytes, cfg); err != nil {
		c.mu.Lock()
		c.refilling = false
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if !c.byteLimited {
		c.pendingMsgs += deltaMsgs
	} else {
		c.pendingBytes += deltaBytes
	}
	c.refilling = false
	c.mu.Unlock()

	c.emit(Notification{Kind: NotifyRefilled})
}

// currentInbox returns the one reply inbox used for the whole Consumption
// lifetime. Caller must hold c.mu.
func (c *Consumption) currentInbox() string {
	return c.inbox
}

func (c *Consumption) onStatus(msg *nats.Msg) {
	switch msg.Status {
	case nats.StatusIdleHeartbeat:
		// Watchdog already reset above; credit is unchanged.
		return
	case nats.StatusNoMessages:
		c.emit(Notification{Kind: NotifyPulled})
		return
	case nats.StatusRequestTimeout:
		c.mu.Lock()
		c.pendingMsgs = 0
		c.pendingBytes = 0
		cfg := c.cfg
		byteLimited := c.byteLimited
		inbox := c.inbox
		c.mu.Unlock()

		c.emit(Notification{Kind: NotifyTimedOut})

		var batch, maxBytes int64
		if byteLimited {
			batch = pullBatchSentinel
			maxBytes = cfg.MaxBytes
		} else {
			batch = cfg.MaxMsgs
		}
		if err := c.pc.sendPull(c.ctx, inbox, batch, maxBytes, cfg); err == nil {
			c.mu.Lock()
			if byteLimited {
				c.pendingBytes = cfg.MaxBytes
			} else {
				c.pendingMsgs = cfg.MaxMsgs
			}
			c.mu.Unlock()
		}
		return
	case nats.StatusConflict:
		c.terminate(ErrConsumerTerminated)
		return
	default:
		c.terminate(ErrConsumerTerminated)
		return
	}
}

func (c *Consumption) onHeartbeatLost() {
	select {
	case <-c.stopped:
		return
	default:
	}
	c.emit(Notification{Kind: NotifyHeartbeatLost, Err: ErrHeartbeatLost})

	c.mu.Lock()
	cfg := c.cfg
	byteLimited := c.byteLimited
	pendingMsgs := c.pendingMsgs
	pendingBytes := c.pendingBytes
	inbox := c.inbox
	c.mu.Unlock()

	var batch, maxBytes int64
	if byteLimited {
		batch = pullBatchSentinel
		maxBytes = pendingBytes
	} else {
		batch = pendingMsgs
	}
	_ = c.pc.sendPull(c.ctx, inbox, batch, maxBytes, cfg)
	c.resetWatchdog()
}

func (c *Consumption) terminate(cause error) {
	c.emit(Notification{Kind: NotifyTerminated, Err: cause})
	c.Stop()
}

func (c *Consumption) resetWatchdog() {
	if c.watchdog != nil {
		c.watchdog.Reset(2 * c.cfg.IdleHeartbeat)
	}
}

func (c *Consumption) emit(n Notification) {
	select {
	case c.notify <- n:
	case <-c.stopped:
	default:
		// Notification channel backlog full: drop rather than block message
		// delivery, which must never stall behind a slow notification reader.
	}
}

// wireSize approximates the on-wire size the broker accounts against
// pending_bytes: payload plus header block, matching spec.md §3's
// "on-wire size" byte-accounting rule.
func wireSize(msg *nats.Msg) int64 {
	n := int64(len(msg.Data))
	if msg.Header != nil {
		for _, k := range msg.Header.Keys() {
			for _, v := range msg.Header.Values(k) {
				n += int64(len(k) + len(v) + 4)
			}
		}
	}
	return n
}
