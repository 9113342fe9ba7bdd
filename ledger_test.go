package sas26

import "testing"

func TestLedgerFirstSendAndRetransmission(t *testing.T) {
	pl := CreatePacketLedger()

	if !pl.RecordSend(1, 10, IMR, 1000.0) {
		t.Fatalf("first send of packet 1 not recorded as new")
	}
	if pl.RecordSend(1, 10, IMR, 2000.0) {
		t.Fatalf("repeat send of packet 1 not flagged as retransmission")
	}

	rec, present := pl.Record(1)
	if !present {
		t.Fatalf("packet 1 missing from ledger")
	}
	if rec.SendMs != 1000.0 {
		t.Fatalf("retransmission overwrote the original send time: got %v", rec.SendMs)
	}
	if rec.Status != StatusSent {
		t.Fatalf("fresh record not in sent status: got %v", rec.Status)
	}
}

func TestLedgerDeliveryClassification(t *testing.T) {
	pl := CreatePacketLedger()

	// exactly on the budget counts as on time
	pl.RecordSend(1, 10, IMR, 0.0)
	outcome, rec := pl.RecordDelivery(1, 60000.0)
	if outcome != DeliveryOnTime {
		t.Fatalf("delivery at the IMR budget boundary: got %v want on time", outcome)
	}
	if rec.DelayMs != 60000.0 {
		t.Fatalf("delay: got %v want 60000", rec.DelayMs)
	}

	// one millisecond past the budget is late
	pl.RecordSend(2, 10, PCC, 0.0)
	outcome, rec = pl.RecordDelivery(2, 1001.0)
	if outcome != DeliveryLate {
		t.Fatalf("delivery past the PCC budget: got %v want late", outcome)
	}
	if rec.Status != StatusDeliveredLate {
		t.Fatalf("late delivery status: got %v", rec.Status)
	}

	pl.RecordSend(3, 10, PCC, 0.0)
	if outcome, _ = pl.RecordDelivery(3, 1000.0); outcome != DeliveryOnTime {
		t.Fatalf("delivery at the PCC budget boundary: got %v want on time", outcome)
	}
}

func TestLedgerDuplicateAndUntrackedDelivery(t *testing.T) {
	pl := CreatePacketLedger()

	outcome, rec := pl.RecordDelivery(99, 500.0)
	if outcome != DeliveryUntracked || rec != nil {
		t.Fatalf("delivery without a send: got %v, rec %v", outcome, rec)
	}

	pl.RecordSend(1, 10, IMR, 0.0)
	pl.RecordDelivery(1, 100.0)
	outcome, rec = pl.RecordDelivery(1, 200.0)
	if outcome != DeliveryDuplicate {
		t.Fatalf("second delivery: got %v want duplicate", outcome)
	}
	if rec.DelayMs != 100.0 {
		t.Fatalf("duplicate mutated the record: delay %v", rec.DelayMs)
	}
}

func TestLedgerLossOnlyFromSentStatus(t *testing.T) {
	pl := CreatePacketLedger()

	if pl.RecordLoss(7, CauseInterference) {
		t.Fatalf("loss of an untracked packet mutated the ledger")
	}

	pl.RecordSend(1, 10, IMR, 0.0)
	if !pl.RecordLoss(1, CauseChannelBusy) {
		t.Fatalf("loss of a sent packet not recorded")
	}
	rec, _ := pl.Record(1)
	if rec.Status != StatusLostChannelBusy {
		t.Fatalf("loss status: got %v", rec.Status)
	}

	// terminal records never transition again
	if pl.RecordLoss(1, CauseInterference) {
		t.Fatalf("second loss transitioned a terminal record")
	}
	if outcome, _ := pl.RecordDelivery(1, 50.0); outcome != DeliveryDuplicate {
		t.Fatalf("delivery after loss: got %v want duplicate", outcome)
	}
}

func TestLedgerAckRecordedOnce(t *testing.T) {
	pl := CreatePacketLedger()
	pl.RecordSend(1, 10, IMR, 0.0)

	if !pl.RecordAck(1, 0.0, 2500.0) {
		t.Fatalf("first ack completion not recorded")
	}
	if pl.RecordAck(1, 0.0, 4000.0) {
		t.Fatalf("second ack completion recorded")
	}
	rec, _ := pl.Record(1)
	if rec.AckDelayMs != 2500.0 {
		t.Fatalf("ack delay: got %v want 2500", rec.AckDelayMs)
	}

	if pl.RecordAck(42, 0.0, 100.0) {
		t.Fatalf("ack for untracked packet recorded")
	}
}

func TestLedgerLookupAndReset(t *testing.T) {
	pl := CreatePacketLedger()
	pl.RecordSend(5, 77, PCC, 0.0)

	sender, found := pl.Lookup(5)
	if !found || sender != 77 {
		t.Fatalf("lookup: got %d,%v want 77,true", sender, found)
	}
	if _, found = pl.Lookup(6); found {
		t.Fatalf("lookup of untracked packet succeeded")
	}

	if pl.Len() != 1 || pl.Unresolved() != 1 {
		t.Fatalf("len/unresolved: got %d/%d want 1/1", pl.Len(), pl.Unresolved())
	}
	pl.Reset()
	if pl.Len() != 0 {
		t.Fatalf("reset left %d records", pl.Len())
	}
}
