package sas26

// events.go defines the typed events the telemetry core consumes from the
// simulation collaborator, along with the enums shared across the package:
// application classes, loss causes, spreading factors, and packet status codes.

import (
	"fmt"
	"math"

	"github.com/iti/evt/vrtime"
)

// AppClass identifies one of the two application traffic classes carried by
// the network.  Each class has a fixed nominal sending period and a fixed
// maximum acceptable delay.
type AppClass int

const (
	IMR AppClass = iota
	PCC
)

// NumClasses is the number of application classes with per-class counters
const NumClasses = 2

var acToStr map[AppClass]string = map[AppClass]string{IMR: "IMR", PCC: "PCC"}

func (ac AppClass) String() string {
	return acToStr[ac]
}

// MaxDelayMs gives the class delay budget in simulated milliseconds.
// A packet delivered within the budget (inclusive) counts as on time.
func (ac AppClass) MaxDelayMs() float64 {
	if ac == IMR {
		return 60000.0
	}
	return 1000.0
}

// PeriodSecs gives the nominal inter-transmission period of the class
func (ac AppClass) PeriodSecs() float64 {
	if ac == IMR {
		return 720.0
	}
	return 3600.0
}

func (ac AppClass) valid() bool {
	return ac == IMR || ac == PCC
}

// LossCause identifies why a gateway PHY discarded an uplink transmission
type LossCause int

const (
	CauseInterference LossCause = iota
	CauseUnderSensitivity
	CauseNoReceiver
	CauseChannelBusy
)

// NumCauses is the number of distinct loss causes
const NumCauses = 4

var lcToStr map[LossCause]string = map[LossCause]string{
	CauseInterference:     "interference",
	CauseUnderSensitivity: "under-sensitivity",
	CauseNoReceiver:       "no-receiver",
	CauseChannelBusy:      "channel-busy",
}

func (lc LossCause) String() string {
	return lcToStr[lc]
}

func (lc LossCause) valid() bool {
	return lc >= CauseInterference && lc <= CauseChannelBusy
}

// SpreadingFactor is the LoRa modulation parameter, SF7 through SF12.
// Each value gets its own statistics bucket.
type SpreadingFactor int

const (
	MinSF SpreadingFactor = 7
	MaxSF SpreadingFactor = 12
)

// NumSF is the number of spreading factor buckets
const NumSF = 6

func (sf SpreadingFactor) valid() bool {
	return MinSF <= sf && sf <= MaxSF
}

// index maps SF7..SF12 onto bucket positions 0..5
func (sf SpreadingFactor) index() int {
	if !sf.valid() {
		panic(fmt.Errorf("spreading factor %d outside SF7-SF12", int(sf)))
	}
	return int(sf) - int(MinSF)
}

// PacketStatus is the lifecycle state of a tracked packet.  StatusSent is
// the only non-terminal state; a record leaves it at most once.
type PacketStatus int

const (
	StatusSent PacketStatus = iota
	StatusDeliveredOnTime
	StatusDeliveredLate
	StatusLostInterference
	StatusLostUnderSensitivity
	StatusLostNoReceiver
	StatusLostChannelBusy
)

var psToStr map[PacketStatus]string = map[PacketStatus]string{
	StatusSent:                 "sent",
	StatusDeliveredOnTime:      "delivered",
	StatusDeliveredLate:        "expired",
	StatusLostInterference:     "lost-interference",
	StatusLostUnderSensitivity: "lost-under-sensitivity",
	StatusLostNoReceiver:       "lost-no-receiver",
	StatusLostChannelBusy:      "lost-channel-busy",
}

func (ps PacketStatus) String() string {
	return psToStr[ps]
}

// Terminal reports whether the status is one a record cannot leave
func (ps PacketStatus) Terminal() bool {
	return ps != StatusSent
}

// status maps a loss cause to the terminal packet status it induces
func (lc LossCause) status() PacketStatus {
	switch lc {
	case CauseInterference:
		return StatusLostInterference
	case CauseUnderSensitivity:
		return StatusLostUnderSensitivity
	case CauseNoReceiver:
		return StatusLostNoReceiver
	case CauseChannelBusy:
		return StatusLostChannelBusy
	}
	panic(fmt.Errorf("unknown loss cause %d", int(lc)))
}

// receiver chain model used to derive SNR from receive power
const (
	loraBandwidthHz = 125e3
	noiseFigureDb   = 6.0
)

// RxPowerToSNR converts a receive power reading (dBm) into a signal-to-noise
// ratio (dB) using the thermal noise floor of a 125 kHz LoRa channel
func RxPowerToSNR(rxPowerDbm float64) float64 {
	return rxPowerDbm + 174.0 - 10.0*math.Log10(loraBandwidthHz) - noiseFigureDb
}

// TimeToMs converts a scheduler virtual time into the simulated-millisecond
// timestamps carried on events
func TimeToMs(vrt vrtime.Time) float64 {
	return vrt.Seconds() * 1e3
}

// Event is the tagged variant consumed by Collector.HandleEvent.  Every
// variant carries the packet identifier and a simulated timestamp in
// milliseconds; the remaining fields depend on the variant.
type Event interface {
	// EventTime returns the simulated timestamp of the event, in ms
	EventTime() float64
}

// PacketSent reports the start of an uplink transmission.  A repeat of an
// already-seen packet identifier is a retransmission.
type PacketSent struct {
	PktID    int
	SenderID int
	Class    AppClass
	AtMs     float64
}

// PacketDelivered reports a successful reception at a gateway
type PacketDelivered struct {
	PktID      int
	GatewayID  int
	SF         SpreadingFactor
	Class      AppClass
	RxPowerDbm float64
	AtMs       float64
}

// PacketLost reports a reception attempt a gateway PHY discarded
type PacketLost struct {
	PktID      int
	Cause      LossCause
	SF         SpreadingFactor
	RxPowerDbm float64
	AtMs       float64
}

// AckRoundTrip reports completion of a confirmed-delivery exchange,
// successful or not, with the number of transmission attempts used
type AckRoundTrip struct {
	PktID          int
	Attempts       int
	Success        bool
	FirstAttemptMs float64
	AtMs           float64
}

func (ev PacketSent) EventTime() float64      { return ev.AtMs }
func (ev PacketDelivered) EventTime() float64 { return ev.AtMs }
func (ev PacketLost) EventTime() float64      { return ev.AtMs }
func (ev AckRoundTrip) EventTime() float64    { return ev.AtMs }
