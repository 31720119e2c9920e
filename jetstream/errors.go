package jetstream

import "errors"

var (
	// ErrBothLimits is returned when a ConsumeConfig sets both MaxMsgs and
	// MaxBytes, which spec.md §8's boundary tests require to fail Usage.
	ErrBothLimits = errors.New("jetstream: max_msgs and max_bytes may not both be set")

	// ErrConsumerTerminated is the fatal notification cause for a 409
	// Consumer Deleted / Exceeded MaxAckPending or any other 4xx/5xx
	// terminal pull status (spec.md §4.9).
	ErrConsumerTerminated = errors.New("jetstream: consumer terminated")

	// ErrHeartbeatLost is emitted when 2x idle_heartbeat elapses without a
	// heartbeat frame (spec.md §4.9).
	ErrHeartbeatLost = errors.New("jetstream: idle heartbeat missed")
)
