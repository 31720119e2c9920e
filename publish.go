package nats

import (
	"context"

	"github.com/adred-codev/natscore/internal/wire"
)

// Publish sends data to subject with no reply subject and no headers
// (spec.md §4.3). It enforces the broker's advertised max_payload locally,
// failing fast rather than letting the broker close the connection. ctx
// bounds the wait for room in the command writer ring (spec.md §5: publish
// is a suspension point when that ring is full) in addition to the
// connection's FlushTimeout.
func (c *Conn) Publish(ctx context.Context, subject string, data []byte) error {
	return c.publish(ctx, subject, "", nil, data)
}

// PublishRequest sends data to subject with reply set, the low-level form
// underlying Request.
func (c *Conn) PublishRequest(ctx context.Context, subject, reply string, data []byte) error {
	return c.publish(ctx, subject, reply, nil, data)
}

// PublishMsg sends a full Msg, including headers when present, using HPUB
// when m.Header is non-nil and non-empty.
func (c *Conn) PublishMsg(ctx context.Context, m *Msg) error {
	return c.publish(ctx, m.Subject, m.Reply, m.Header, m.Data)
}

func (c *Conn) publish(ctx context.Context, subject, reply string, h *Header, data []byte) error {
	if subject == "" {
		return &Error{Kind: KindUsage, Err: errEmptySubject}
	}
	if max := c.MaxPayload(); max > 0 && int64(len(data)) > max {
		return &Error{Kind: KindPayloadTooLarge, Err: errPayloadTooLarge}
	}

	var frame []byte
	if h != nil && h.Len() > 0 {
		frame = wire.EncodeHPub(subject, reply, h, data)
	} else {
		frame = wire.EncodePub(subject, reply, data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.FlushTimeout)
	defer cancel()
	if err := c.writer.Write(ctx, frame); err != nil {
		return classifyWriteErr(err)
	}
	c.stats.outMsgs.Add(1)
	c.stats.outBytes.Add(uint64(len(frame)))
	return nil
}
