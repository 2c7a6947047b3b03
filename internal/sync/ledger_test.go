package sync

import "testing"

func TestRetryLedger_SentAndAck(t *testing.T) {
	ledger := NewRetryLedger()

	ledger.Sent("m1", "gps")
	ledger.Sent("m1", "gps")
	ledger.Sent("m2", "heart_rate")

	if got := ledger.Attempts("m1"); got != 2 {
		t.Errorf("attempts for m1: got %d, want 2", got)
	}
	if got := ledger.Pending(); got != 2 {
		t.Errorf("pending: got %d, want 2", got)
	}

	category, ok := ledger.Ack("m1")
	if !ok || category != "gps" {
		t.Errorf("ack m1: got (%q, %v), want (gps, true)", category, ok)
	}
	if got := ledger.Pending(); got != 1 {
		t.Errorf("pending after ack: got %d, want 1", got)
	}
}

func TestRetryLedger_AckUnknownID(t *testing.T) {
	ledger := NewRetryLedger()

	if _, ok := ledger.Ack("never-sent"); ok {
		t.Error("ack of unknown id should report ok=false")
	}

	// Double ack: second one is a no-op
	ledger.Sent("m1", "gps")
	ledger.Ack("m1")
	if _, ok := ledger.Ack("m1"); ok {
		t.Error("second ack of the same id should report ok=false")
	}
}
