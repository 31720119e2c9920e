package nats

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories of spec.md §7.
type Kind int

const (
	KindUnknown Kind = iota
	KindProtocol
	KindAuth
	KindTLS
	KindTransport
	KindTimeout
	KindCanceled
	KindUsage
	KindPayloadTooLarge
	KindAPI
	KindConsumerTerminated
	KindHeartbeatLost
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindAuth:
		return "auth"
	case KindTLS:
		return "tls"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindUsage:
		return "usage"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindAPI:
		return "api"
	case KindConsumerTerminated:
		return "consumer_terminated"
	case KindHeartbeatLost:
		return "heartbeat_lost"
	default:
		return "unknown"
	}
}

// Error is the library's typed error, carrying a Kind for programmatic
// dispatch plus the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "nats: " + e.Kind.String()
	}
	return fmt.Sprintf("nats: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can use errors.Is(err, &nats.Error{Kind: nats.KindTimeout}).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// APIError carries the JetStream API's decoded error object (spec.md §4.8).
type APIError struct {
	Code        int    `json:"code"`
	ErrCode     int    `json:"err_code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nats: api error %d (err_code %d): %s", e.Code, e.ErrCode, e.Description)
}

var (
	errNoReplySubject  = errors.New("message has no reply subject")
	errConnectionClosed = errors.New("connection closed")
	errQueueOnInbox    = errors.New("queue groups are not permitted on inbox subscriptions")
	errBothLimits      = errors.New("max_msgs and max_bytes may not both be set")
	errEmptySubject    = errors.New("subject must not be empty")
	errEmptyQueue      = errors.New("queue group name must not be empty")
	errPayloadTooLarge = errors.New("payload exceeds server max_payload")
	errNoResponders    = errors.New("no responders are listening on the request subject")
)
