package nats

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/adred-codev/natscore/internal/inbox"
	"github.com/adred-codev/natscore/internal/subs"
	"github.com/adred-codev/natscore/internal/writer"
)

// fakeSink captures frames written by the command writer, standing in for
// a real socket so tests can exercise Conn without a broker.
type fakeSink struct {
	frames chan []byte
}

func newFakeSink() *fakeSink {
	return &fakeSink{frames: make(chan []byte, 64)}
}

func (s *fakeSink) Write(b []byte) error {
	s.frames <- append([]byte(nil), b...)
	return nil
}

// newTestConn builds a Conn with its writer/registry/mux wired to an
// in-memory sink, bypassing the supervisor and transport entirely.
func newTestConn(t *testing.T) (*Conn, *fakeSink) {
	t.Helper()
	opts := DefaultOptions()
	c := &Conn{
		opts:     opts,
		log:      zerolog.Nop(),
		writer:   writer.New(opts.CommandWriterBufferSize, zerolog.Nop()),
		registry: subs.New(0, zerolog.Nop()),
		mux:      inbox.New(inbox.NewPrefix()),
		closed:   make(chan struct{}),
	}
	sink := newFakeSink()
	c.writer.SetSink(sink)
	return c, sink
}
