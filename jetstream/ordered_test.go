package jetstream

import "testing"

func TestParseDeliverySeqExtractsStreamSequence(t *testing.T) {
	reply := "$JS.ACK.ORDERS.ordered-abc123.1.42.1.1690000000000000000.0"
	seq, ok := parseDeliverySeq(reply)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if seq != 42 {
		t.Fatalf("seq = %d, want 42", seq)
	}
}

func TestParseDeliverySeqRejectsShortSubject(t *testing.T) {
	_, ok := parseDeliverySeq("too.short.subject")
	if ok {
		t.Fatal("expected ok=false for a subject with too few tokens")
	}
}

func TestSplitSubjectTokenizesOnDots(t *testing.T) {
	got := splitSubject("a.b.c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitSubjectSingleToken(t *testing.T) {
	got := splitSubject("foo")
	if len(got) != 1 || got[0] != "foo" {
		t.Fatalf("got %v, want [foo]", got)
	}
}
