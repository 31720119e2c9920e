package nats

import (
	"context"

	"github.com/adred-codev/natscore/internal/wire"
)

// Header is an ordered multimap of header keys to values, matching
// spec.md §3's "Message" header field.
type Header = wire.Header

// NewHeader returns an empty Header ready for use with PublishMsg.
func NewHeader() *Header { return wire.NewHeader() }

// StatusCode is a parsed three-digit NATS/1.0 status line, matching
// spec.md §9's "status headers as control flow" rule. Exported so a
// caller outside this package (the pull-consumer engine) can recognize
// heartbeat and terminal-pull statuses without reaching into internal/wire.
type StatusCode = wire.StatusCode

const (
	StatusNone           = wire.StatusNone
	StatusIdleHeartbeat  = wire.StatusIdleHeartbeat
	StatusNoMessages     = wire.StatusNoMessages
	StatusRequestTimeout = wire.StatusRequestTimeout
	StatusConflict       = wire.StatusConflict
	StatusNoResponders   = wire.StatusNoResponders
)

// Msg is immutable on the receive path per spec.md §3: subject, optional
// reply subject, optional headers, and a payload. A status-only control
// message (heartbeat, terminal pull status) carries no payload and is
// never delivered to a user's ordinary subscription: Subscription.Deliver
// drops it, and the pull-consumer engine receives it through its inbox
// route and checks IsStatusOnly.
type Msg struct {
	Subject string
	Reply   string
	Header  *Header
	Data    []byte

	// Status and StatusText carry a control message's NATS/1.0 status line
	// (heartbeat, pull-consumer terminal status); zero/"" on an ordinary
	// message. Callers outside the pull-consumer engine rarely need these.
	Status     wire.StatusCode
	StatusText string

	sub *Subscription
}

// IsStatusOnly reports whether this Msg is a control frame (no payload, a
// status line present) rather than an application message -- spec.md §9's
// "status headers as control flow" rule.
func (m *Msg) IsStatusOnly() bool {
	return m.Status != wire.StatusNone && len(m.Data) == 0
}

// Subscription returns the Subscription this message arrived on, or nil
// for a message obtained outside of one (e.g. a Request reply).
func (m *Msg) Subscription() *Subscription { return m.sub }

// Respond publishes payload on m.Reply, the convenience pattern described
// in SPEC_FULL.md §3's supplement. It is a no-op error if the message
// carries no reply subject.
func (m *Msg) Respond(payload []byte) error {
	if m.Reply == "" {
		return &Error{Kind: KindUsage, Err: errNoReplySubject}
	}
	return m.sub.conn.Publish(context.Background(), m.Reply, payload)
}

// RespondMsg publishes a full Msg (including headers) on m.Reply.
func (m *Msg) RespondMsg(reply *Msg) error {
	if m.Reply == "" {
		return &Error{Kind: KindUsage, Err: errNoReplySubject}
	}
	reply.Subject = m.Reply
	return m.sub.conn.PublishMsg(context.Background(), reply)
}

func msgFromFrame(f *wire.Frame, sub *Subscription) *Msg {
	return &Msg{
		Subject:    f.Subject,
		Reply:      f.ReplySubject,
		Header:     f.Header,
		Data:       f.Payload,
		Status:     f.Status,
		StatusText: f.StatusText,
		sub:        sub,
	}
}
