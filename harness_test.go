package sas26

import (
	"math"
	"testing"

	"github.com/iti/evt/evtm"
)

func harnessCfg() *ExperimentCfg {
	cfg := quietCfg()
	cfg.Devices = 6
	cfg.SimSeconds = 3000.0
	cfg.WindowSecs = 1000.0
	return cfg
}

func TestHarnessAllDelivered(t *testing.T) {
	cfg := harnessCfg()
	cfg.Traffic.Outcomes = OutcomeProbs{Delivered: 1.0}

	coll := CreateCollector(cfg)
	h := CreateTrafficHarness(cfg, coll)

	evtMgr := evtm.New()
	h.Start(evtMgr)
	evtMgr.Run(cfg.SimSeconds)

	as := coll.State()
	if as.TotalSent == 0 {
		t.Fatalf("no traffic generated over %v s", cfg.SimSeconds)
	}
	if as.TotalLost != 0 {
		t.Fatalf("losses with delivery probability 1: %d", as.TotalLost)
	}

	// every sent packet is delivered (possibly past its budget) or still
	// airborne at the horizon
	resolved := as.TotalReceived + as.TotalExpired
	if resolved+coll.Ledger().Unresolved() != as.TotalSent {
		t.Fatalf("accounting: %d resolved, %d unresolved, %d sent",
			resolved, coll.Ledger().Unresolved(), as.TotalSent)
	}
	if as.TotalObserved != resolved {
		t.Fatalf("observed %d attempts, resolved %d", as.TotalObserved, resolved)
	}
	if as.TotalEnergyJ != 0.0 {
		t.Fatalf("energy folded in before finalization")
	}

	rpt := coll.Finalize()
	if rpt.TotalEnergyJ <= 0.0 {
		t.Fatalf("no transmit energy accrued")
	}
	sfSum := 0.0
	for _, share := range rpt.SFDistPct {
		sfSum += share
	}
	if math.Abs(sfSum-100.0) > 1e-6 {
		t.Fatalf("sf distribution sums to %v", sfSum)
	}
}

func TestHarnessConfirmedAllLost(t *testing.T) {
	cfg := harnessCfg()
	cfg.Confirmed = true
	cfg.Traffic.MaxAttempts = 2
	cfg.Traffic.Outcomes = OutcomeProbs{ChannelBusy: 1.0}

	coll := CreateCollector(cfg)
	h := CreateTrafficHarness(cfg, coll)

	evtMgr := evtm.New()
	h.Start(evtMgr)
	evtMgr.Run(cfg.SimSeconds)

	as := coll.State()
	if as.TotalSent == 0 {
		t.Fatalf("no traffic generated")
	}
	if as.TotalReceived != 0 || as.TotalAckReceived != 0 {
		t.Fatalf("deliveries with delivery probability 0: %d received, %d acked",
			as.TotalReceived, as.TotalAckReceived)
	}
	if as.TotalRetransmissions == 0 {
		t.Fatalf("confirmed losses produced no retransmissions")
	}
	if as.LostByCause[CauseChannelBusy] != as.TotalLost {
		t.Fatalf("loss cause attribution: %d busy of %d", as.LostByCause[CauseChannelBusy], as.TotalLost)
	}
	// every attempt, first or repeat, is one loss event
	if as.TotalLost > as.TotalSent+as.TotalRetransmissions {
		t.Fatalf("more losses (%d) than attempts (%d)",
			as.TotalLost, as.TotalSent+as.TotalRetransmissions)
	}
}

func TestHarnessSampledWindowsAreFull(t *testing.T) {
	cfg := harnessCfg()
	cfg.Traffic.Outcomes = OutcomeProbs{Delivered: 1.0}

	coll := CreateCollector(cfg)
	h := CreateTrafficHarness(cfg, coll)
	ws := CreateWindowSampler(coll)

	evtMgr := evtm.New()
	ws.Start(evtMgr)
	h.Start(evtMgr)
	evtMgr.Run(cfg.SimSeconds)
	ws.Stop()

	samples := coll.State().WindowSamples
	if len(samples) < 2 {
		t.Fatalf("sampler ticks: got %d windows over %v s", len(samples), cfg.SimSeconds)
	}
	for idx, pdr := range samples {
		if pdr < 0.0 || pdr > 100.0 {
			t.Fatalf("window %d pdr out of range: %v", idx, pdr)
		}
	}
}

func TestSimDeviceDataRateMapping(t *testing.T) {
	dev := &simDevice{sf: 7}

	dev.SetDataRate(0)
	if dev.sf != 12 {
		t.Fatalf("DR0: got SF%d want SF12", int(dev.sf))
	}
	dev.SetDataRate(5)
	if dev.sf != 7 {
		t.Fatalf("DR5: got SF%d want SF7", int(dev.sf))
	}
	// out-of-range rates clamp to the supported factors
	dev.SetDataRate(9)
	if dev.sf != MinSF {
		t.Fatalf("DR9: got SF%d want SF7", int(dev.sf))
	}
	dev.SetDataRate(-2)
	if dev.sf != MaxSF {
		t.Fatalf("DR-2: got SF%d want SF12", int(dev.sf))
	}
}

func TestHarnessOutcomeDraw(t *testing.T) {
	cfg := quietCfg()
	cfg.Traffic.Outcomes = OutcomeProbs{
		Delivered:        0.5,
		Interference:     0.2,
		UnderSensitivity: 0.1,
		NoReceiver:       0.1,
		ChannelBusy:      0.1,
	}
	h := &TrafficHarness{cfg: cfg}

	cases := []struct {
		u         float64
		delivered bool
		cause     LossCause
	}{
		{0.0, true, CauseInterference},
		{0.49, true, CauseInterference},
		{0.55, false, CauseInterference},
		{0.75, false, CauseUnderSensitivity},
		{0.85, false, CauseNoReceiver},
		{0.95, false, CauseChannelBusy},
	}
	for _, c := range cases {
		delivered, cause := h.drawOutcome(c.u)
		if delivered != c.delivered {
			t.Fatalf("draw %v: delivered %v want %v", c.u, delivered, c.delivered)
		}
		if !delivered && cause != c.cause {
			t.Fatalf("draw %v: cause %v want %v", c.u, cause, c.cause)
		}
	}
}
