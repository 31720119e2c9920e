package jetstream

import (
	"testing"
	"time"
)

func TestConsumeConfigClampsIdleHeartbeat(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{100 * time.Millisecond, 500 * time.Millisecond},
		{60 * time.Second, 30 * time.Second},
		{10 * time.Second, 10 * time.Second},
	}
	for _, c := range cases {
		cfg, err := ConsumeConfig{MaxMsgs: 10, IdleHeartbeat: c.in}.normalize()
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if cfg.IdleHeartbeat != c.want {
			t.Fatalf("idle_heartbeat %v -> %v, want %v", c.in, cfg.IdleHeartbeat, c.want)
		}
	}
}

func TestConsumeConfigClampsExpires(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{100 * time.Millisecond, 1 * time.Second},
		{300 * time.Second, 300 * time.Second},
		{10 * time.Second, 10 * time.Second},
	}
	for _, c := range cases {
		cfg, err := ConsumeConfig{MaxMsgs: 10, Expires: c.in}.normalize()
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if cfg.Expires != c.want {
			t.Fatalf("expires %v -> %v, want %v", c.in, cfg.Expires, c.want)
		}
	}
}

func TestConsumeConfigDefaultThresholds(t *testing.T) {
	cfg, err := ConsumeConfig{MaxMsgs: 10_000}.normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.ThresholdMsgs != 5_000 {
		t.Fatalf("threshold_msgs = %d, want 5000", cfg.ThresholdMsgs)
	}

	cfg, err = ConsumeConfig{MaxBytes: 1024}.normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.ThresholdBytes != 512 {
		t.Fatalf("threshold_bytes = %d, want 512", cfg.ThresholdBytes)
	}
}

func TestConsumeConfigRejectsBothLimits(t *testing.T) {
	_, err := ConsumeConfig{MaxMsgs: 10, MaxBytes: 100}.normalize()
	if err == nil {
		t.Fatal("expected error when both max_msgs and max_bytes are set")
	}
}

// TestRefillAtMsgThreshold reproduces spec.md §8 scenario 1: max_msgs=100,
// threshold_msgs=10; no refill through message 89, a refill triggers on
// message 90.
func TestRefillAtMsgThreshold(t *testing.T) {
	c := &Consumption{
		cfg: ConsumeConfig{MaxMsgs: 100, ThresholdMsgs: 10},
	}
	c.pendingMsgs = 100

	for i := 0; i < 89; i++ {
		c.pendingMsgs--
		if c.refillDue() {
			t.Fatalf("refill triggered early at message %d (pending=%d)", i+1, c.pendingMsgs)
		}
	}
	if c.pendingMsgs != 11 {
		t.Fatalf("pending_msgs after 89 deliveries = %d, want 11", c.pendingMsgs)
	}

	c.pendingMsgs--
	if !c.refillDue() {
		t.Fatalf("refill not triggered at message 90 (pending=%d, threshold=%d)", c.pendingMsgs, c.cfg.ThresholdMsgs)
	}
	if c.pendingMsgs != 10 {
		t.Fatalf("pending_msgs at message 90 = %d, want 10", c.pendingMsgs)
	}

	delta := c.cfg.MaxMsgs - c.pendingMsgs
	if delta != 90 {
		t.Fatalf("refill delta = %d, want 90", delta)
	}
}

// TestRefillAtByteThreshold reproduces spec.md §8 scenario 2: max_bytes=1000,
// threshold_bytes=100, 10-byte messages; refill triggers on the 90th.
func TestRefillAtByteThreshold(t *testing.T) {
	c := &Consumption{
		cfg:         ConsumeConfig{MaxBytes: 1000, ThresholdBytes: 100},
		byteLimited: true,
	}
	c.pendingMsgs = pullBatchSentinel // as Consume sets it for a byte-limited pull
	c.pendingBytes = 1000

	for i := 0; i < 89; i++ {
		c.pendingBytes -= 10
		if c.refillDue() {
			t.Fatalf("refill triggered early at message %d (pending_bytes=%d)", i+1, c.pendingBytes)
		}
	}
	if c.pendingBytes != 110 {
		t.Fatalf("pending_bytes after 89 deliveries = %d, want 110", c.pendingBytes)
	}

	c.pendingBytes -= 10
	if !c.refillDue() {
		t.Fatalf("refill not triggered at message 90 (pending_bytes=%d)", c.pendingBytes)
	}

	deltaBytes := c.cfg.MaxBytes - c.pendingBytes
	if deltaBytes != 900 {
		t.Fatalf("refill delta_bytes = %d, want 900", deltaBytes)
	}
}

func TestInitialBatchSentinelForByteLimitedConsume(t *testing.T) {
	cfg, err := ConsumeConfig{MaxBytes: 1000}.normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	byteLimited := cfg.MaxBytes > 0 && cfg.MaxMsgs == 0
	if !byteLimited {
		t.Fatal("expected byte-limited consume")
	}
	initialBatch := cfg.MaxMsgs
	if byteLimited {
		initialBatch = pullBatchSentinel
	}
	if initialBatch != pullBatchSentinel {
		t.Fatalf("initial batch = %d, want sentinel %d", initialBatch, pullBatchSentinel)
	}
}
