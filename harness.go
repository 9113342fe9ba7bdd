package sas26

// harness.go is the built-in traffic generator.  It drives a Collector
// through the event loop with synthetic uplink traffic from a population of
// simulated devices, half reporting meter readings on a short period and
// half reporting consumption summaries hourly.  Transmission outcomes are
// drawn from configured frequencies standing in for a radio model.

import (
	"fmt"
	"math"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
)

// airtime in seconds of a 51 byte uplink at 125 kHz, per spreading factor,
// indexed SF7 first
var uplinkAirtimeSecs = [NumSF]float64{0.112896, 0.205312, 0.369664, 0.698368, 1.47866, 2.62963}

// transmit chain draw of a class A radio
const (
	txCurrentAmps = 0.028
	supplyVolts   = 3.3
)

// simDevice is one synthetic end device.  It implements EnergyReporter,
// RadioStatus, and RateControl, so the collector sees the full capability
// surface a real device model would offer.
type simDevice struct {
	id      int
	class   AppClass
	harness *TrafficHarness
	rng     *rngstream.RngStream

	sf      SpreadingFactor
	txPower float64

	energyJ float64
}

func (dev *simDevice) TotalEnergyConsumptionJ() float64 {
	return dev.energyJ
}

func (dev *simDevice) FinalSpreadingFactor() SpreadingFactor {
	return dev.sf
}

func (dev *simDevice) TransmissionPowerDbm() float64 {
	return dev.txPower
}

// SetDataRate maps the requested data rate back onto a spreading factor,
// DR0 being SF12, clamped to the supported range
func (dev *simDevice) SetDataRate(dr int) {
	sf := SpreadingFactor(12 - dr)
	if sf < MinSF {
		sf = MinSF
	}
	if sf > MaxSF {
		sf = MaxSF
	}
	dev.sf = sf
}

// pendingTx tracks one packet through its transmission attempts
type pendingTx struct {
	pktID          int
	attempts       int
	firstAttemptMs float64
}

// transmission carries one airborne attempt from its launch to the handler
// that resolves it at the gateway
type transmission struct {
	dev       *simDevice
	pend      *pendingTx
	delivered bool
	cause     LossCause
	rxPower   float64
}

// TrafficHarness owns the synthetic device population and the packet
// identifier sequence
type TrafficHarness struct {
	cfg     *ExperimentCfg
	coll    *Collector
	devices []*simDevice

	nextPktID int
}

// CreateTrafficHarness builds the device population and registers every
// device with the collector.  Device classes alternate so both application
// classes carry traffic; initial radio settings are drawn per device from
// its own random stream.
func CreateTrafficHarness(cfg *ExperimentCfg, coll *Collector) *TrafficHarness {
	h := new(TrafficHarness)
	h.cfg = cfg
	h.coll = coll
	h.devices = make([]*simDevice, cfg.Devices)

	for idx := 0; idx < cfg.Devices; idx++ {
		dev := new(simDevice)
		dev.id = idx
		dev.harness = h
		dev.class = IMR
		if idx%2 == 1 {
			dev.class = PCC
		}
		dev.rng = rngstream.New(fmt.Sprintf("dev-%d-%d", cfg.Run, idx))

		dev.sf = MinSF + SpreadingFactor(int(dev.rng.RandU01()*float64(NumSF)))
		if dev.sf > MaxSF {
			dev.sf = MaxSF
		}
		dev.txPower = float64(1 + int(dev.rng.RandU01()*float64(TxPowerBuckets)))
		if dev.txPower > float64(TxPowerBuckets) {
			dev.txPower = float64(TxPowerBuckets)
		}

		h.devices[idx] = dev
		coll.RegisterDevice(dev.id, dev)
	}

	HarnessLog.Infof("harness built: %d devices, confirmed=%v", cfg.Devices, cfg.Confirmed)
	return h
}

// Start books the first launch of every device, with the start phase drawn
// uniformly over the device's sending period so launches spread out
func (h *TrafficHarness) Start(evtMgr *evtm.EventManager) {
	for _, dev := range h.devices {
		phase := dev.rng.RandU01() * dev.class.PeriodSecs()
		evtMgr.Schedule(dev, nil, launchPacket, vrtime.SecondsToTime(phase))
	}
}

// expRV draws an exponential inter-arrival gap with the given rate
func expRV(rng *rngstream.RngStream, rate float64) float64 {
	return -math.Log(1.0-rng.RandU01()) / rate
}

// launchPacket starts a fresh packet from the device in context and books
// the device's next launch one exponential gap out
func launchPacket(evtMgr *evtm.EventManager, context any, data any) any {
	dev := context.(*simDevice)
	h := dev.harness

	pend := &pendingTx{
		pktID:          h.nextPktID,
		firstAttemptMs: TimeToMs(evtMgr.CurrentTime()),
	}
	h.nextPktID += 1
	h.transmit(evtMgr, dev, pend)

	gap := expRV(dev.rng, 1.0/dev.class.PeriodSecs())
	evtMgr.Schedule(dev, nil, launchPacket, vrtime.SecondsToTime(gap))
	return nil
}

// retransmitPacket re-sends a packet whose earlier attempt was lost
func retransmitPacket(evtMgr *evtm.EventManager, context any, data any) any {
	dev := context.(*simDevice)
	pend := data.(*pendingTx)
	dev.harness.transmit(evtMgr, dev, pend)
	return nil
}

// transmit emits the send event, charges the radio's energy draw for the
// airtime, draws the outcome, and books arrival at the gateway one airtime
// out
func (h *TrafficHarness) transmit(evtMgr *evtm.EventManager, dev *simDevice, pend *pendingTx) {
	pend.attempts += 1
	h.coll.HandleEvent(PacketSent{
		PktID:    pend.pktID,
		SenderID: dev.id,
		Class:    dev.class,
		AtMs:     TimeToMs(evtMgr.CurrentTime()),
	})

	airtime := uplinkAirtimeSecs[dev.sf.index()]
	dev.energyJ += txCurrentAmps * supplyVolts * airtime

	tx := &transmission{dev: dev, pend: pend, rxPower: -120.0 + 50.0*dev.rng.RandU01()}
	tx.delivered, tx.cause = h.drawOutcome(dev.rng.RandU01())

	evtMgr.Schedule(dev, tx, finishTransmission, vrtime.SecondsToTime(airtime))
}

// drawOutcome maps one uniform draw onto the configured outcome frequencies
func (h *TrafficHarness) drawOutcome(u float64) (bool, LossCause) {
	op := h.cfg.Traffic.Outcomes
	u -= op.Delivered
	if u < 0.0 {
		return true, CauseInterference
	}
	u -= op.Interference
	if u < 0.0 {
		return false, CauseInterference
	}
	u -= op.UnderSensitivity
	if u < 0.0 {
		return false, CauseUnderSensitivity
	}
	u -= op.NoReceiver
	if u < 0.0 {
		return false, CauseNoReceiver
	}
	return false, CauseChannelBusy
}

// finishTransmission resolves an attempt at the gateway: a delivery or loss
// event is emitted, and in confirmed mode the exchange continues with a
// retransmission, an acknowledgment, or a final failure
func finishTransmission(evtMgr *evtm.EventManager, context any, data any) any {
	dev := context.(*simDevice)
	tx := data.(*transmission)
	h := dev.harness
	atMs := TimeToMs(evtMgr.CurrentTime())

	if tx.delivered {
		h.coll.HandleEvent(PacketDelivered{
			PktID:      tx.pend.pktID,
			GatewayID:  tx.pend.pktID % h.cfg.Gateways,
			SF:         dev.sf,
			Class:      dev.class,
			RxPowerDbm: tx.rxPower,
			AtMs:       atMs,
		})
		if h.cfg.Confirmed {
			// downlink ack in the first receive window
			evtMgr.Schedule(dev, tx, deliverAck, vrtime.SecondsToTime(1.0))
		}
		return nil
	}

	h.coll.HandleEvent(PacketLost{
		PktID:      tx.pend.pktID,
		Cause:      tx.cause,
		SF:         dev.sf,
		RxPowerDbm: tx.rxPower,
		AtMs:       atMs,
	})

	if !h.cfg.Confirmed {
		return nil
	}
	if tx.pend.attempts < h.cfg.Traffic.MaxAttempts {
		backoff := 1.0 + 2.0*dev.rng.RandU01()
		evtMgr.Schedule(dev, tx.pend, retransmitPacket, vrtime.SecondsToTime(backoff))
		return nil
	}
	h.coll.HandleEvent(AckRoundTrip{
		PktID:          tx.pend.pktID,
		Attempts:       tx.pend.attempts,
		Success:        false,
		FirstAttemptMs: tx.pend.firstAttemptMs,
		AtMs:           atMs,
	})
	return nil
}

// deliverAck completes a confirmed exchange whose uplink was delivered
func deliverAck(evtMgr *evtm.EventManager, context any, data any) any {
	dev := context.(*simDevice)
	tx := data.(*transmission)

	dev.harness.coll.HandleEvent(AckRoundTrip{
		PktID:          tx.pend.pktID,
		Attempts:       tx.pend.attempts,
		Success:        true,
		FirstAttemptMs: tx.pend.firstAttemptMs,
		AtMs:           TimeToMs(evtMgr.CurrentTime()),
	})
	return nil
}
