package nats

import (
	"context"

	"github.com/adred-codev/natscore/internal/wire"
)

// Request publishes data to subject and waits for a single reply on a
// fresh inbox subject, implementing spec.md §4.7. A 503 no-responders
// status is surfaced as KindTransport rather than a message.
func (c *Conn) Request(ctx context.Context, subject string, data []byte) (*Msg, error) {
	return c.RequestMsg(ctx, &Msg{Subject: subject, Data: data})
}

// RequestMsg is Request for a caller that wants to set headers on the
// outgoing request.
func (c *Conn) RequestMsg(ctx context.Context, m *Msg) (*Msg, error) {
	replySubject := c.mux.Subject()
	waiter := c.mux.Register(replySubject)
	defer waiter.Cancel()

	if err := c.publish(ctx, m.Subject, replySubject, m.Header, m.Data); err != nil {
		return nil, err
	}

	select {
	case f := <-waiter.C():
		if f.Status == wire.StatusNoResponders {
			return nil, &Error{Kind: KindTransport, Err: errNoResponders}
		}
		return msgFromFrame(f, nil), nil
	case <-ctx.Done():
		return nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
	case <-c.closed:
		return nil, &Error{Kind: KindCanceled, Err: errConnectionClosed}
	}
}
