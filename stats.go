package sas26

// stats.go implements the aggregation engine.  It translates ledger
// transitions plus event metadata into running counters and sums; it never
// recomputes a classification the ledger already made.  All state lives in
// one AggregateState value built per run and cleared by Reset, so nothing
// survives between independent runs.

// AggregateState holds every running counter and sum maintained during a
// run, plus the per-window delivery-ratio series.
type AggregateState struct {
	TotalSent            int
	TotalReceived        int
	TotalExpired         int
	TotalLost            int
	TotalRetransmissions int

	TotalAckAttempts int
	TotalAckReceived int

	SentByClass     [NumClasses]int
	ReceivedByClass [NumClasses]int

	LostByCause [NumCauses]int
	LossBySF    [NumCauses][NumSF]int
	ExpiredBySF [NumSF]int

	// delay sums cover every reception the ledger classified, on time or
	// late; the per-class sums cover on-time receptions only
	SumDelayMs        float64
	SumDelayByClassMs [NumClasses]float64

	// delivered-only signal sums.  Late deliveries contribute here too:
	// the radio delivered them even though the deadline did not hold.
	SumRxPowerDbm float64
	SumSnrDb      float64

	// all-observed signal sums, fed by every reception attempt a gateway
	// physically saw, delivered or lost, tracked or not
	TotalObserved      int
	SumAllRxPowerDbm   float64
	SumAllSnrDb        float64

	TotalEnergyJ  float64
	DeviceEnergyJ []float64

	// per-window counters, cleared each time the sampler fires
	WindowSent     int
	WindowReceived int

	// WindowSamples is append-only: one delivery-ratio entry per elapsed
	// window, in percent, never rewritten
	WindowSamples []float64
}

// CreateAggregateState is a constructor
func CreateAggregateState() *AggregateState {
	as := new(AggregateState)
	as.Reset()
	return as
}

// NoteSend records a new (non-retransmitted) transmission
func (as *AggregateState) NoteSend(class AppClass) {
	as.TotalSent += 1
	as.SentByClass[class] += 1
	as.WindowSent += 1
}

// NoteRetransmission records a repeat send of an already-tracked packet
func (as *AggregateState) NoteRetransmission() {
	as.TotalRetransmissions += 1
}

// NoteObserved folds one physically received transmission, whatever its
// classification, into the all-observed signal sums
func (as *AggregateState) NoteObserved(rxPowerDbm float64) {
	as.TotalObserved += 1
	as.SumAllRxPowerDbm += rxPowerDbm
	as.SumAllSnrDb += RxPowerToSNR(rxPowerDbm)
}

// NoteDelivery records a ledger classification of DeliveryOnTime or
// DeliveryLate.  Duplicate and untracked outcomes must not reach here.
func (as *AggregateState) NoteDelivery(outcome DeliveryOutcome, class AppClass,
	sf SpreadingFactor, delayMs, rxPowerDbm float64) {

	as.SumRxPowerDbm += rxPowerDbm
	as.SumSnrDb += RxPowerToSNR(rxPowerDbm)
	as.SumDelayMs += delayMs

	switch outcome {
	case DeliveryOnTime:
		as.TotalReceived += 1
		as.ReceivedByClass[class] += 1
		as.WindowReceived += 1
		as.SumDelayByClassMs[class] += delayMs
	case DeliveryLate:
		// late counts toward expiry, not success
		as.TotalExpired += 1
		as.ExpiredBySF[sf.index()] += 1
	default:
		panic("NoteDelivery called with a non-delivery outcome")
	}
}

// NoteLoss records a loss event.  The counters here are independent of the
// ledger: they advance whether or not a Sent record was found.
func (as *AggregateState) NoteLoss(cause LossCause, sf SpreadingFactor) {
	as.TotalLost += 1
	as.LostByCause[cause] += 1
	as.LossBySF[cause][sf.index()] += 1
}

// NoteAck records the first successful confirmed-delivery completion for a
// packet, with the attempt count the exchange needed
func (as *AggregateState) NoteAck(attempts int) {
	as.TotalAckReceived += 1
	as.TotalAckAttempts += attempts
}

// AddDeviceEnergy folds one device's cumulative draw into the totals
func (as *AggregateState) AddDeviceEnergy(joules float64) {
	as.TotalEnergyJ += joules
	as.DeviceEnergyJ = append(as.DeviceEnergyJ, joules)
}

// SampleWindow closes the current window: it appends the window delivery
// ratio (percent, clamped to 100 to absorb boundary artifacts) to the series
// and clears the per-window counters.  Cumulative counters are untouched.
func (as *AggregateState) SampleWindow() float64 {
	pdr := 0.0
	if as.WindowSent > 0 {
		pdr = 100.0 * float64(as.WindowReceived) / float64(as.WindowSent)
	}
	if pdr > 100.0 {
		pdr = 100.0
	}
	as.WindowSamples = append(as.WindowSamples, pdr)

	as.WindowSent = 0
	as.WindowReceived = 0
	return pdr
}

// Resolved checks the conservation property that every sent packet reached
// exactly one terminal bucket
func (as *AggregateState) Resolved() bool {
	lost := 0
	for _, n := range as.LostByCause {
		lost += n
	}
	return as.TotalSent == as.TotalReceived+as.TotalExpired+lost
}

// Reset zeroes every counter, sum, and series for a fresh run
func (as *AggregateState) Reset() {
	*as = AggregateState{
		DeviceEnergyJ: make([]float64, 0),
		WindowSamples: make([]float64, 0),
	}
}

// ratioPct divides num by den as a percentage, with the zero-denominator
// case defined as zero rather than an error
func ratioPct(num, den int) float64 {
	if den <= 0 {
		return 0.0
	}
	return 100.0 * float64(num) / float64(den)
}

// meanOver divides a sum by a count, zero when the count is zero
func meanOver(sum float64, n int) float64 {
	if n <= 0 {
		return 0.0
	}
	return sum / float64(n)
}

// safeDiv divides two floats, zero when the denominator is zero
func safeDiv(num, den float64) float64 {
	if den == 0.0 {
		return 0.0
	}
	return num / den
}
