package sas26

// energy.go declares the capability interfaces the external collaborator
// implements for end-of-run queries, and the collection passes that fold
// device attributes into the aggregate totals.  Capabilities are injected by
// registration rather than discovered by downcasting a device object.

import (
	"golang.org/x/exp/slices"
)

// EnergyReporter exposes a device's cumulative energy draw.  A device with
// no installed energy model simply does not implement the interface.
type EnergyReporter interface {
	TotalEnergyConsumptionJ() float64
}

// RadioStatus exposes the end-of-run radio configuration of a device, used
// for the spreading-factor and transmission-power distribution reports
type RadioStatus interface {
	FinalSpreadingFactor() SpreadingFactor
	TransmissionPowerDbm() float64
}

// RateControl lets the core ask a device's MAC to drop its data rate, the
// follow-up action taken on interference losses when adaptive rate
// reduction is enabled
type RateControl interface {
	SetDataRate(dr int)
}

// registeredDevice records which capabilities a device handle offers.
// Probing happens once, at registration.
type registeredDevice struct {
	id     int
	energy EnergyReporter
	radio  RadioStatus
	rate   RateControl
}

// TxPowerBuckets is the number of transmission-power report buckets,
// covering 1 through 14 dBm
const TxPowerBuckets = 14

// collectEnergy queries every registered device once and folds the answers
// into the aggregate energy totals.  Devices without an energy model are
// skipped, not failed; the summation is order-independent but iterates in
// id order so repeated runs produce identical DeviceEnergyJ series.
func collectEnergy(devices map[int]*registeredDevice, as *AggregateState) float64 {
	ids := make([]int, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	total := 0.0
	for _, id := range ids {
		dev := devices[id]
		if dev.energy == nil {
			continue
		}
		joules := dev.energy.TotalEnergyConsumptionJ()
		as.AddDeviceEnergy(joules)
		total += joules
	}
	return total
}

// collectRadioDistributions builds the share (percent of devices) per
// spreading factor and per integer transmission-power level.  Devices
// without a radio status capability contribute to neither distribution.
func collectRadioDistributions(devices map[int]*registeredDevice) (sfDist [NumSF]float64, tpDist [TxPowerBuckets]float64) {
	var sfCount [NumSF]int
	var tpCount [TxPowerBuckets]int

	n := 0
	for _, dev := range devices {
		if dev.radio == nil {
			continue
		}
		n += 1
		sfCount[dev.radio.FinalSpreadingFactor().index()] += 1

		txPower := int(dev.radio.TransmissionPowerDbm())
		if txPower >= 1 && txPower <= TxPowerBuckets {
			tpCount[txPower-1] += 1
		}
	}

	if n == 0 {
		return
	}
	for idx := 0; idx < NumSF; idx++ {
		sfDist[idx] = 100.0 * float64(sfCount[idx]) / float64(n)
	}
	for idx := 0; idx < TxPowerBuckets; idx++ {
		tpDist[idx] = 100.0 * float64(tpCount[idx]) / float64(n)
	}
	return
}
