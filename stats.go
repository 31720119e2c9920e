package nats

import "sync/atomic"

// Statistics exposes the connection's running counters, matching
// SPEC_FULL.md §3's supplemented Statistics record.
type Statistics struct {
	InMsgs     uint64
	OutMsgs    uint64
	InBytes    uint64
	OutBytes   uint64
	Reconnects uint64
}

type statsCounters struct {
	inMsgs     atomic.Uint64
	outMsgs    atomic.Uint64
	inBytes    atomic.Uint64
	outBytes   atomic.Uint64
	reconnects atomic.Uint64
}

func (s *statsCounters) snapshot() Statistics {
	return Statistics{
		InMsgs:     s.inMsgs.Load(),
		OutMsgs:    s.outMsgs.Load(),
		InBytes:    s.inBytes.Load(),
		OutBytes:   s.outBytes.Load(),
		Reconnects: s.reconnects.Load(),
	}
}

// Stats returns a snapshot of the connection's running counters.
func (c *Conn) Stats() Statistics {
	return c.stats.snapshot()
}
