package wire

import (
	"bytes"
	"testing"
)

func decodeAll(t *testing.T, chunks [][]byte) []*Frame {
	t.Helper()
	d := NewDecoder()
	var frames []*Frame
	for _, c := range chunks {
		d.Feed(c)
		for {
			f, err := d.Next()
			if err == ErrNeedMore {
				break
			}
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			frames = append(frames, f)
		}
	}
	return frames
}

func TestDecodeSimpleVerbs(t *testing.T) {
	raw := []byte("PING\r\nPONG\r\n+OK\r\n-ERR 'Authorization Violation'\r\n")
	frames := decodeAll(t, [][]byte{raw})
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	if frames[0].Op != OpPing || frames[1].Op != OpPong || frames[2].Op != OpOK {
		t.Fatalf("unexpected ops: %+v", frames)
	}
	if frames[3].Op != OpErr || frames[3].ErrText != "Authorization Violation" {
		t.Fatalf("unexpected -ERR frame: %+v", frames[3])
	}
}

func TestDecodeMsgAndHMsg(t *testing.T) {
	raw := []byte("MSG foo.bar 9 12\r\nhello, world\r\n" +
		"HMSG foo.baz 10 inbox.1 18 27\r\nNATS/1.0\r\nX: y\r\n\r\npayload12\r\n")
	frames := decodeAll(t, [][]byte{raw})
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	m := frames[0]
	if m.Op != OpMsg || m.Subject != "foo.bar" || m.SID != 9 || string(m.Payload) != "hello, world" {
		t.Fatalf("unexpected MSG frame: %+v", m)
	}

	hm := frames[1]
	if hm.Op != OpHMsg || hm.ReplySubject != "inbox.1" || hm.Header.Get("X") != "y" {
		t.Fatalf("unexpected HMSG frame: %+v", hm)
	}
	if string(hm.Payload) != "payload12" {
		t.Fatalf("unexpected HMSG payload: %q", hm.Payload)
	}
}

func TestDecodeIdempotentUnderSplit(t *testing.T) {
	raw := []byte("INFO {\"server_id\":\"abc\"}\r\nMSG foo 1 5\r\nhello\r\nPING\r\n")

	whole := decodeAll(t, [][]byte{raw})

	// Split at every byte offset and confirm the same frame sequence
	// results, regardless of how the reader happened to chunk the stream.
	for split := 1; split < len(raw); split++ {
		got := decodeAll(t, [][]byte{raw[:split], raw[split:]})
		if len(got) != len(whole) {
			t.Fatalf("split=%d: got %d frames, want %d", split, len(got), len(whole))
		}
		for i := range got {
			if got[i].Op != whole[i].Op {
				t.Fatalf("split=%d: frame %d op mismatch: %v vs %v", split, i, got[i].Op, whole[i].Op)
			}
			if !bytes.Equal(got[i].Payload, whole[i].Payload) {
				t.Fatalf("split=%d: frame %d payload mismatch", split, i)
			}
		}
	}
}

func TestDecodeHeartbeatStatus(t *testing.T) {
	raw := []byte("HMSG foo 1 31 31\r\nNATS/1.0 100 Idle Heartbeat\r\n\r\n\r\n")
	frames := decodeAll(t, [][]byte{raw})
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Status != StatusIdleHeartbeat {
		t.Fatalf("status = %d, want %d", f.Status, StatusIdleHeartbeat)
	}
	if !f.IsStatusOnly() {
		t.Fatalf("expected IsStatusOnly true")
	}
}

func TestDecodeMalformedVerbFails(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("BOGUS x y\r\n"))
	_, err := d.Next()
	if err == nil {
		t.Fatalf("expected protocol error")
	}
	var pe *ProtocolError
	if !errorsAs(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %T", err)
	}
}

func TestDecodeTruncatedNeverPanics(t *testing.T) {
	raw := []byte("MSG foo.bar 9 100\r\n")
	d := NewDecoder()
	d.Feed(raw)
	if _, err := d.Next(); err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore, got %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sub := EncodeSub("foo.bar", "workers", 42)
	d := NewDecoder()
	d.Feed(sub)
	f, err := d.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Subject != "foo.bar" || f.Queue != "workers" || f.SID != 42 {
		t.Fatalf("round trip mismatch: %+v", f)
	}

	pub := EncodePub("foo.bar", "", []byte("payload"))
	d2 := NewDecoder()
	d2.Feed(pub)
	pf, err := d2.Next()
	if err != nil {
		t.Fatalf("decode PUB: %v", err)
	}
	if pf.Subject != "foo.bar" || string(pf.Payload) != "payload" {
		t.Fatalf("PUB round trip mismatch: %+v", pf)
	}
}

func errorsAs(err error, target **ProtocolError) bool {
	pe, ok := err.(*ProtocolError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
