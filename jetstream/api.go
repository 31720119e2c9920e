package jetstream

import (
	"context"
	"encoding/json"
	"fmt"

	nats "github.com/adred-codev/natscore"
)

// apiEnvelope is the common shape every JetStream API JSON response wraps:
// an optional error object alongside the verb-specific payload (spec.md
// §4.8).
type apiEnvelope struct {
	Type  string          `json:"type,omitempty"`
	Error *nats.APIError  `json:"error,omitempty"`
}

// request marshals req, sends it to js.prefix+subject, and decodes the
// reply into resp (nil when the caller only cares about success/error).
// An "error" object in the reply is surfaced as *nats.Error{Kind: KindAPI}.
func (js *JetStream) request(ctx context.Context, subject string, req, resp any) error {
	var body []byte
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("jetstream: marshal request: %w", err)
		}
		body = b
	}

	msg, err := js.conn.Request(ctx, js.prefix+subject, body)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return fmt.Errorf("jetstream: decode response envelope: %w", err)
	}
	if env.Error != nil {
		return &nats.Error{Kind: nats.KindAPI, Err: env.Error}
	}

	if resp != nil {
		if err := json.Unmarshal(msg.Data, resp); err != nil {
			return fmt.Errorf("jetstream: decode response: %w", err)
		}
	}
	return nil
}

func streamCreateSubject(name string) string { return "STREAM.CREATE." + name }
func streamUpdateSubject(name string) string { return "STREAM.UPDATE." + name }
func streamDeleteSubject(name string) string { return "STREAM.DELETE." + name }
func streamInfoSubject(name string) string   { return "STREAM.INFO." + name }
func streamPurgeSubject(name string) string  { return "STREAM.PURGE." + name }
func streamMsgGetSubject(name string) string { return "STREAM.MSG.GET." + name }
func streamMsgDeleteSubject(name string) string { return "STREAM.MSG.DELETE." + name }
func streamListSubject() string              { return "STREAM.LIST" }

func consumerCreateSubject(stream, durable, filter string) string {
	s := "CONSUMER.CREATE." + stream
	if durable != "" {
		s += "." + durable
		if filter != "" {
			s += "." + filter
		}
	}
	return s
}
func consumerInfoSubject(stream, consumer string) string {
	return "CONSUMER.INFO." + stream + "." + consumer
}
func consumerDeleteSubject(stream, consumer string) string {
	return "CONSUMER.DELETE." + stream + "." + consumer
}
func consumerMsgNextSubject(stream, consumer string) string {
	return "CONSUMER.MSG.NEXT." + stream + "." + consumer
}
