package jetstream

import "context"

// AckPolicy controls whether/how a consumer must acknowledge delivery.
type AckPolicy string

const (
	AckNone     AckPolicy = "none"
	AckAll      AckPolicy = "all"
	AckExplicit AckPolicy = "explicit"
)

// ReplayPolicy controls delivery pacing for historical messages.
type ReplayPolicy string

const (
	ReplayInstant  ReplayPolicy = "instant"
	ReplayOriginal ReplayPolicy = "original"
)

// DeliverPolicy selects where in the stream a new consumer starts.
type DeliverPolicy string

const (
	DeliverAll               DeliverPolicy = "all"
	DeliverLast              DeliverPolicy = "last"
	DeliverNew               DeliverPolicy = "new"
	DeliverByStartSequence   DeliverPolicy = "by_start_sequence"
	DeliverByStartTime       DeliverPolicy = "by_start_time"
	DeliverLastPerSubject    DeliverPolicy = "last_per_subject"
)

// ConsumerConfig is the subset of broker consumer configuration fields this
// client sends, per spec.md §6.
type ConsumerConfig struct {
	Name           string        `json:"name,omitempty"`
	DurableName    string        `json:"durable_name,omitempty"`
	DeliverSubject string        `json:"deliver_subject,omitempty"`
	FilterSubject  string        `json:"filter_subject,omitempty"`
	FilterSubjects []string      `json:"filter_subjects,omitempty"`
	AckPolicy      AckPolicy     `json:"ack_policy,omitempty"`
	AckWait        int64         `json:"ack_wait,omitempty"` // nanoseconds
	MaxDeliver     int           `json:"max_deliver,omitempty"`
	ReplayPolicy   ReplayPolicy  `json:"replay_policy,omitempty"`
	InactiveThreshold int64      `json:"inactive_threshold,omitempty"` // nanoseconds
	NumReplicas    int           `json:"num_replicas,omitempty"`
	MemStorage     bool          `json:"mem_storage,omitempty"`
	DeliverPolicy  DeliverPolicy `json:"deliver_policy,omitempty"`
	OptStartSeq    uint64        `json:"opt_start_seq,omitempty"`
	OptStartTime   string        `json:"opt_start_time,omitempty"`
	HeadersOnly    bool          `json:"headers_only,omitempty"`
}

// SequenceInfo pairs a stream sequence with a consumer sequence, used by
// ConsumerInfo.Delivered/.AckFloor (SPEC_FULL.md §3 supplement).
type SequenceInfo struct {
	Consumer uint64 `json:"consumer_seq"`
	Stream   uint64 `json:"stream_seq"`
}

// ConsumerInfo is the plain data object the broker returns for
// CONSUMER.{CREATE,INFO} (SPEC_FULL.md §4.11).
type ConsumerInfo struct {
	Stream    string         `json:"stream_name"`
	Name      string         `json:"name"`
	Config    ConsumerConfig `json:"config"`
	Delivered SequenceInfo   `json:"delivered"`
	AckFloor  SequenceInfo   `json:"ack_floor"`
	NumPending uint64        `json:"num_pending"`
}

type consumerCreateRequest struct {
	StreamName string         `json:"stream_name"`
	Config     ConsumerConfig `json:"config"`
}

func (js *JetStream) CreateConsumer(ctx context.Context, stream string, cfg ConsumerConfig) (*ConsumerInfo, error) {
	var info ConsumerInfo
	req := consumerCreateRequest{StreamName: stream, Config: cfg}
	subject := consumerCreateSubject(stream, cfg.DurableName, cfg.FilterSubject)
	if err := js.request(ctx, subject, req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (js *JetStream) GetConsumerInfo(ctx context.Context, stream, consumer string) (*ConsumerInfo, error) {
	var info ConsumerInfo
	if err := js.request(ctx, consumerInfoSubject(stream, consumer), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (js *JetStream) DeleteConsumer(ctx context.Context, stream, consumer string) error {
	var resp struct {
		Success bool `json:"success"`
	}
	return js.request(ctx, consumerDeleteSubject(stream, consumer), nil, &resp)
}
