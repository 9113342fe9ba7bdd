package sas26

// ledger.go holds the keyed store of per-packet lifecycle records.  The
// ledger owns one invariant: a record transitions out of StatusSent at most
// once, no matter how many outcome events arrive for the same identifier.

import "fmt"

// PacketRecord tracks one packet from its first observed transmission to a
// terminal outcome.  Retransmissions share the record of the original send.
type PacketRecord struct {
	PktID    int
	SenderID int
	Class    AppClass

	SendMs     float64
	DeliveryMs float64

	// DelayMs is -1 until the first reception is observed
	DelayMs float64

	// AckDelayMs is -1 until a confirmed-delivery exchange completes
	AckDelayMs float64

	Status PacketStatus
}

// DeliveryOutcome is the ledger's answer to a delivery event
type DeliveryOutcome int

const (
	// DeliveryUntracked means no record exists for the identifier
	DeliveryUntracked DeliveryOutcome = iota

	// DeliveryDuplicate means the record already reached a terminal state;
	// nothing was mutated
	DeliveryDuplicate

	// DeliveryOnTime means the packet met its class delay budget
	DeliveryOnTime

	// DeliveryLate means the radio delivered the packet after the budget;
	// it counts as an expiry, not a success
	DeliveryLate
)

// PacketLedger maps packet identifiers to their lifecycle records
type PacketLedger struct {
	records map[int]*PacketRecord
}

// CreatePacketLedger is a constructor
func CreatePacketLedger() *PacketLedger {
	pl := new(PacketLedger)
	pl.records = make(map[int]*PacketRecord)
	return pl
}

// RecordSend inserts a StatusSent record for an unseen identifier and
// returns true.  A repeated identifier is a retransmission: the record is
// left untouched and the return is false.  An invalid class marks a broken
// event source, not a runtime condition, and so panics.
func (pl *PacketLedger) RecordSend(pktID, senderID int, class AppClass, atMs float64) bool {
	if !class.valid() {
		panic(fmt.Errorf("packet %d sent with unknown application class %d", pktID, int(class)))
	}

	_, present := pl.records[pktID]
	if present {
		return false
	}

	pl.records[pktID] = &PacketRecord{
		PktID:      pktID,
		SenderID:   senderID,
		Class:      class,
		SendMs:     atMs,
		DelayMs:    -1,
		AckDelayMs: -1,
		Status:     StatusSent,
	}
	return true
}

// RecordDelivery looks up the identifier and, when the record is still in
// StatusSent, computes the delay, classifies it against the class budget
// (inclusive), and makes the transition.  The record returned is nil exactly
// when the outcome is DeliveryUntracked.
func (pl *PacketLedger) RecordDelivery(pktID int, atMs float64) (DeliveryOutcome, *PacketRecord) {
	rec, present := pl.records[pktID]
	if !present {
		return DeliveryUntracked, nil
	}

	if rec.Status.Terminal() {
		return DeliveryDuplicate, rec
	}

	delay := atMs - rec.SendMs
	rec.DelayMs = delay
	rec.DeliveryMs = atMs

	if delay <= rec.Class.MaxDelayMs() {
		rec.Status = StatusDeliveredOnTime
		return DeliveryOnTime, rec
	}

	rec.Status = StatusDeliveredLate
	return DeliveryLate, rec
}

// RecordLoss marks the record terminal with the given cause, provided it
// exists and is still in StatusSent.  Anything else is a no-op for the
// ledger; loss counters are maintained by the aggregation engine whether or
// not a record was found.
func (pl *PacketLedger) RecordLoss(pktID int, cause LossCause) bool {
	rec, present := pl.records[pktID]
	if !present || rec.Status.Terminal() {
		return false
	}
	rec.Status = cause.status()
	return true
}

// RecordAck notes completion of a confirmed-delivery exchange.  Only the
// first successful completion for a packet is recorded; the return says
// whether this call was that first one.
func (pl *PacketLedger) RecordAck(pktID int, firstAttemptMs, atMs float64) bool {
	rec, present := pl.records[pktID]
	if !present {
		return false
	}
	if rec.AckDelayMs != -1 {
		return false
	}
	rec.AckDelayMs = atMs - firstAttemptMs
	return true
}

// Lookup returns the sender of a tracked packet, for collaborators that
// need to act on the originating device
func (pl *PacketLedger) Lookup(pktID int) (int, bool) {
	rec, present := pl.records[pktID]
	if !present {
		return -1, false
	}
	return rec.SenderID, true
}

// Record exposes the full record for a tracked packet
func (pl *PacketLedger) Record(pktID int) (*PacketRecord, bool) {
	rec, present := pl.records[pktID]
	return rec, present
}

// Len reports the number of tracked packets
func (pl *PacketLedger) Len() int {
	return len(pl.records)
}

// Unresolved counts records still in StatusSent
func (pl *PacketLedger) Unresolved() int {
	n := 0
	for _, rec := range pl.records {
		if !rec.Status.Terminal() {
			n += 1
		}
	}
	return n
}

// Reset empties the ledger for a fresh run
func (pl *PacketLedger) Reset() {
	pl.records = make(map[int]*PacketRecord)
}
