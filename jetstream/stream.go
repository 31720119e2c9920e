package jetstream

import "context"

// RetentionPolicy controls when the broker discards stored messages.
type RetentionPolicy string

const (
	RetentionLimits    RetentionPolicy = "limits"
	RetentionInterest  RetentionPolicy = "interest"
	RetentionWorkQueue RetentionPolicy = "workqueue"
)

// StorageType selects the broker's backing store for a stream.
type StorageType string

const (
	StorageFile   StorageType = "file"
	StorageMemory StorageType = "memory"
)

// DiscardPolicy controls what happens when a stream's limits are reached.
type DiscardPolicy string

const (
	DiscardOld DiscardPolicy = "old"
	DiscardNew DiscardPolicy = "new"
)

// StreamConfig is the subset of the broker's stream configuration this
// client creates/updates (spec.md §4.8/§6).
type StreamConfig struct {
	Name        string          `json:"name"`
	Subjects    []string        `json:"subjects,omitempty"`
	Retention   RetentionPolicy `json:"retention,omitempty"`
	MaxConsumers int            `json:"max_consumers,omitempty"`
	MaxMsgs     int64           `json:"max_msgs,omitempty"`
	MaxBytes    int64           `json:"max_bytes,omitempty"`
	MaxAge      int64           `json:"max_age,omitempty"` // nanoseconds
	Storage     StorageType     `json:"storage,omitempty"`
	Replicas    int             `json:"num_replicas,omitempty"`
	NoAck       bool            `json:"no_ack,omitempty"`
	Discard     DiscardPolicy   `json:"discard,omitempty"`
}

// StreamState reports a stream's current usage, the counters half of
// StreamInfo.
type StreamState struct {
	Msgs      uint64 `json:"messages"`
	Bytes     uint64 `json:"bytes"`
	FirstSeq  uint64 `json:"first_seq"`
	LastSeq   uint64 `json:"last_seq"`
	Consumers int    `json:"consumer_count"`
}

// StreamInfo is the plain data object the broker returns for
// STREAM.{CREATE,INFO}, grounded in go-server/internal/types's thin
// typed-payload pattern (SPEC_FULL.md §4.11).
type StreamInfo struct {
	Config StreamConfig `json:"config"`
	State  StreamState  `json:"state"`
}

func (js *JetStream) CreateStream(ctx context.Context, cfg StreamConfig) (*StreamInfo, error) {
	var info StreamInfo
	if err := js.request(ctx, streamCreateSubject(cfg.Name), cfg, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (js *JetStream) UpdateStream(ctx context.Context, cfg StreamConfig) (*StreamInfo, error) {
	var info StreamInfo
	if err := js.request(ctx, streamUpdateSubject(cfg.Name), cfg, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (js *JetStream) GetStreamInfo(ctx context.Context, name string) (*StreamInfo, error) {
	var info StreamInfo
	if err := js.request(ctx, streamInfoSubject(name), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (js *JetStream) DeleteStream(ctx context.Context, name string) error {
	var resp struct {
		Success bool `json:"success"`
	}
	return js.request(ctx, streamDeleteSubject(name), nil, &resp)
}

// PurgeStream deletes all messages currently stored by name, subject to no
// selector (a full purge).
func (js *JetStream) PurgeStream(ctx context.Context, name string) error {
	var resp struct {
		Success bool   `json:"success"`
		Purged  uint64 `json:"purged"`
	}
	return js.request(ctx, streamPurgeSubject(name), nil, &resp)
}

type streamListRequest struct {
	Offset int `json:"offset,omitempty"`
}

type streamListResponse struct {
	Streams []StreamInfo `json:"streams"`
	Total   int          `json:"total"`
}

func (js *JetStream) ListStreams(ctx context.Context) ([]StreamInfo, error) {
	var resp streamListResponse
	if err := js.request(ctx, streamListSubject(), streamListRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Streams, nil
}

// deleteMsgRequest requests removal of a single stored message by
// sequence, used by STREAM.MSG.DELETE.
type deleteMsgRequest struct {
	Seq uint64 `json:"seq"`
}

func (js *JetStream) DeleteMsg(ctx context.Context, stream string, seq uint64) error {
	var resp struct {
		Success bool `json:"success"`
	}
	return js.request(ctx, streamMsgDeleteSubject(stream), deleteMsgRequest{Seq: seq}, &resp)
}

// StoredMsg is the decoded payload of STREAM.MSG.GET.
type StoredMsg struct {
	Subject string `json:"subject"`
	Seq     uint64 `json:"seq"`
	Data    []byte `json:"data"`
	Time    string `json:"time"`
}

type getMsgRequest struct {
	Seq uint64 `json:"seq,omitempty"`
	// LastBySubject fetches the most recent message on a subject instead
	// of by sequence.
	LastBySubject string `json:"last_by_subj,omitempty"`
}

type getMsgResponse struct {
	Message StoredMsg `json:"message"`
}

func (js *JetStream) GetMsg(ctx context.Context, stream string, seq uint64) (*StoredMsg, error) {
	var resp getMsgResponse
	if err := js.request(ctx, streamMsgGetSubject(stream), getMsgRequest{Seq: seq}, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}
