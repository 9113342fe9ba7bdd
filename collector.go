package sas26

// collector.go is the front end of the telemetry core.  A Collector owns
// the packet ledger and the aggregate state, consumes the event stream
// through a single HandleEvent entry point, and performs run finalization.
// Event handling is synchronous and the caller's event loop delivers events
// in non-decreasing timestamp order; one mutex makes the Collector safe for
// multi-threaded embeddings, which must treat ledger and state as a single
// mutual-exclusion domain.

import (
	"fmt"
	"sync"
)

// Collector binds the ledger, the aggregation engine, and the device
// capability registry for one run
type Collector struct {
	mu sync.Mutex

	cfg    *ExperimentCfg
	ledger *PacketLedger
	state  *AggregateState

	devices map[int]*registeredDevice

	finalized bool
}

// CreateCollector builds an empty Collector for a run described by cfg
func CreateCollector(cfg *ExperimentCfg) *Collector {
	if cfg == nil {
		cfg = CreateExperimentCfg()
	}
	InitLog(cfg.LogLevel)

	coll := new(Collector)
	coll.cfg = cfg
	coll.ledger = CreatePacketLedger()
	coll.state = CreateAggregateState()
	coll.devices = make(map[int]*registeredDevice)
	return coll
}

// RegisterDevice offers a device handle to the collector, which probes it
// once for the capabilities used at finalization and for follow-up actions.
// A handle may implement any subset of EnergyReporter, RadioStatus, and
// RateControl.
func (coll *Collector) RegisterDevice(id int, handle any) {
	coll.mu.Lock()
	defer coll.mu.Unlock()

	dev := &registeredDevice{id: id}
	if er, ok := handle.(EnergyReporter); ok {
		dev.energy = er
	}
	if rs, ok := handle.(RadioStatus); ok {
		dev.radio = rs
	}
	if rc, ok := handle.(RateControl); ok {
		dev.rate = rc
	}
	coll.devices[id] = dev
}

// HandleEvent consumes one typed event.  After finalization the stream is
// closed and further events are dropped.
func (coll *Collector) HandleEvent(ev Event) {
	coll.mu.Lock()
	defer coll.mu.Unlock()

	if coll.finalized {
		StatsLog.Debugf("event at %v ms dropped after finalization", ev.EventTime())
		return
	}

	switch e := ev.(type) {
	case PacketSent:
		coll.handleSent(e)
	case PacketDelivered:
		coll.handleDelivered(e)
	case PacketLost:
		coll.handleLost(e)
	case AckRoundTrip:
		coll.handleAck(e)
	default:
		panic(fmt.Errorf("unknown event variant %T", ev))
	}
}

func (coll *Collector) handleSent(ev PacketSent) {
	if coll.ledger.RecordSend(ev.PktID, ev.SenderID, ev.Class, ev.AtMs) {
		coll.state.NoteSend(ev.Class)
		return
	}
	coll.state.NoteRetransmission()
}

func (coll *Collector) handleDelivered(ev PacketDelivered) {
	if !ev.SF.valid() {
		panic(fmt.Errorf("delivery of packet %d carries spreading factor %d", ev.PktID, int(ev.SF)))
	}

	// the gateway physically received this transmission whatever the
	// ledger says about it
	coll.state.NoteObserved(ev.RxPowerDbm)

	outcome, rec := coll.ledger.RecordDelivery(ev.PktID, ev.AtMs)
	switch outcome {
	case DeliveryUntracked:
		StatsLog.Debugf("delivery for untracked packet %d", ev.PktID)
	case DeliveryDuplicate:
		// another gateway got here first; signal sums above are the
		// only statistics a duplicate may touch
	case DeliveryOnTime, DeliveryLate:
		coll.state.NoteDelivery(outcome, rec.Class, ev.SF, rec.DelayMs, ev.RxPowerDbm)
	}
}

func (coll *Collector) handleLost(ev PacketLost) {
	if !ev.SF.valid() {
		panic(fmt.Errorf("loss of packet %d carries spreading factor %d", ev.PktID, int(ev.SF)))
	}
	if !ev.Cause.valid() {
		panic(fmt.Errorf("loss of packet %d carries unknown cause %d", ev.PktID, int(ev.Cause)))
	}

	coll.state.NoteObserved(ev.RxPowerDbm)

	// loss counters do not depend on a ledger hit
	coll.state.NoteLoss(ev.Cause, ev.SF)
	coll.ledger.RecordLoss(ev.PktID, ev.Cause)

	if ev.Cause == CauseInterference && coll.cfg.AdaptiveRate {
		coll.reduceDataRate(ev.PktID, ev.SF)
	}
}

// reduceDataRate asks the sender's MAC for the next lower data rate after
// an interference loss.  The ledger lookup is what makes the follow-up
// device-specific; an untracked packet means no action.
func (coll *Collector) reduceDataRate(pktID int, sf SpreadingFactor) {
	senderID, found := coll.ledger.Lookup(pktID)
	if !found {
		return
	}
	dev, present := coll.devices[senderID]
	if !present || dev.rate == nil {
		return
	}

	dr := 12 - int(sf)
	if dr > 0 {
		dr -= 1
	}
	dev.rate.SetDataRate(dr)
	StatsLog.Debugf("interference on packet %d: device %d data rate lowered to DR%d", pktID, senderID, dr)
}

func (coll *Collector) handleAck(ev AckRoundTrip) {
	if !ev.Success {
		return
	}
	// first completion only; later acknowledgments for the same packet
	// are ignored
	if coll.ledger.RecordAck(ev.PktID, ev.FirstAttemptMs, ev.AtMs) {
		coll.state.NoteAck(ev.Attempts)
	}
}

// SampleWindow closes the current delivery-ratio window.  The sampler's
// periodic tick lands here so the window counters move under the same lock
// as every other mutation.
func (coll *Collector) SampleWindow() float64 {
	coll.mu.Lock()
	defer coll.mu.Unlock()

	if coll.finalized {
		return 0.0
	}
	return coll.state.SampleWindow()
}

// Finalize ends the run: the event stream is closed, device energy is
// collected, radio distributions are read, and the KPI report is built.
// Calling it again returns a fresh snapshot without re-collecting energy.
func (coll *Collector) Finalize() *Report {
	coll.mu.Lock()
	defer coll.mu.Unlock()

	if !coll.finalized {
		total := collectEnergy(coll.devices, coll.state)
		coll.finalized = true
		MainLog.Infof("run %d finalized: %d sent, %d delivered, %.3f J drawn",
			coll.cfg.Run, coll.state.TotalSent, coll.state.TotalReceived, total)
	}

	sfDist, tpDist := collectRadioDistributions(coll.devices)
	return buildReport(coll.cfg, coll.state, sfDist, tpDist)
}

// Reset clears the ledger and every counter for a new independent run.
// Registered devices stay registered; the orchestrator re-registers only
// when the population changes.
func (coll *Collector) Reset() {
	coll.mu.Lock()
	defer coll.mu.Unlock()

	coll.ledger.Reset()
	coll.state.Reset()
	coll.finalized = false
	MainLog.Debugf("collector reset for a new run")
}

// Ledger exposes the packet ledger for collaborators that resolve senders
func (coll *Collector) Ledger() *PacketLedger {
	return coll.ledger
}

// State exposes the aggregate state for tests and read-only inspection
func (coll *Collector) State() *AggregateState {
	return coll.state
}
