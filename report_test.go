package sas26

import (
	"math"
	"os"
	"strings"
	"testing"
)

func reportFixture(confirmed bool) (*ExperimentCfg, *AggregateState) {
	cfg := quietCfg()
	cfg.Run = 3
	cfg.Devices = 4
	cfg.PayloadBytes = 51
	cfg.SimSeconds = 1000.0
	cfg.Confirmed = confirmed

	as := CreateAggregateState()
	for i := 0; i < 10; i++ {
		as.NoteSend(IMR)
	}
	for i := 0; i < 10; i++ {
		as.NoteSend(PCC)
	}
	for i := 0; i < 8; i++ {
		as.NoteObserved(-90.0)
		as.NoteDelivery(DeliveryOnTime, IMR, 7, 200.0, -90.0)
	}
	for i := 0; i < 5; i++ {
		as.NoteObserved(-95.0)
		as.NoteDelivery(DeliveryOnTime, PCC, 8, 400.0, -95.0)
	}
	as.NoteObserved(-115.0)
	as.NoteDelivery(DeliveryLate, PCC, 8, 2000.0, -115.0)

	for i := 0; i < 4; i++ {
		as.NoteObserved(-118.0)
		as.NoteLoss(CauseInterference, 9)
	}
	as.NoteObserved(-122.0)
	as.NoteLoss(CauseUnderSensitivity, 12)
	as.NoteObserved(-119.0)
	as.NoteLoss(CauseChannelBusy, 7)

	as.NoteAck(2)
	as.AddDeviceEnergy(1.0)
	as.AddDeviceEnergy(3.0)

	as.WindowSent = 10
	as.WindowReceived = 8
	as.SampleWindow()
	as.WindowSent = 10
	as.WindowReceived = 5
	as.SampleWindow()

	return cfg, as
}

func TestBuildReportKPIs(t *testing.T) {
	cfg, as := reportFixture(true)
	rpt := buildReport(cfg, as, [NumSF]float64{}, [TxPowerBuckets]float64{})

	if !as.Resolved() {
		t.Fatalf("fixture does not resolve")
	}
	if rpt.Sent != 20 || rpt.Received != 13 || rpt.Expired != 1 || rpt.Lost != 6 {
		t.Fatalf("totals: %d/%d/%d/%d", rpt.Sent, rpt.Received, rpt.Expired, rpt.Lost)
	}
	if rpt.PDR != 65.0 {
		t.Fatalf("pdr: got %v want 65", rpt.PDR)
	}
	if rpt.ImrPDR != 80.0 || rpt.PccPDR != 50.0 {
		t.Fatalf("per-class pdr: got %v/%v want 80/50", rpt.ImrPDR, rpt.PccPDR)
	}

	// delay mean divides the all-classified sum by on-time receptions
	wantDelay := (8*200.0 + 5*400.0 + 2000.0) / 13.0
	if math.Abs(rpt.MeanDelayMs-wantDelay) > 1e-9 {
		t.Fatalf("mean delay: got %v want %v", rpt.MeanDelayMs, wantDelay)
	}
	if rpt.MeanImrDelayMs != 200.0 || rpt.MeanPccDelayMs != 400.0 {
		t.Fatalf("per-class delay: got %v/%v", rpt.MeanImrDelayMs, rpt.MeanPccDelayMs)
	}

	if rpt.Observed != 20 {
		t.Fatalf("observed: got %d want 20", rpt.Observed)
	}

	wantTput := 13.0 * 51.0 * 8.0 / 1000.0
	if math.Abs(rpt.ThroughputBps-wantTput) > 1e-9 {
		t.Fatalf("throughput: got %v want %v", rpt.ThroughputBps, wantTput)
	}

	if rpt.TotalEnergyJ != 4.0 || rpt.EnergyPerDeviceJ != 1.0 {
		t.Fatalf("energy: got %v total, %v per device", rpt.TotalEnergyJ, rpt.EnergyPerDeviceJ)
	}
	wantBits := 13.0 * 51.0 * 8.0
	if math.Abs(rpt.BitsPerJoule-wantBits/4.0) > 1e-9 {
		t.Fatalf("bits per joule: got %v", rpt.BitsPerJoule)
	}
	if math.Abs(rpt.ThroughputPerJoule-wantTput/4.0) > 1e-9 {
		t.Fatalf("throughput per joule: got %v", rpt.ThroughputPerJoule)
	}

	// cpsr over on-time receptions
	wantCpsr := 100.0 * 1.0 / 13.0
	if math.Abs(rpt.CPSR-wantCpsr) > 1e-9 {
		t.Fatalf("cpsr: got %v want %v", rpt.CPSR, wantCpsr)
	}

	wantInterf := 100.0 * 4.0 / 6.0
	if math.Abs(rpt.InterferenceShare-wantInterf) > 1e-9 {
		t.Fatalf("interference share: got %v", rpt.InterferenceShare)
	}
	// all interference was on SF9
	if rpt.InterferenceBySF[9-int(MinSF)] != 100.0 {
		t.Fatalf("interference by SF: got %v", rpt.InterferenceBySF)
	}

	if len(rpt.WindowPDRs) != 2 || rpt.WindowPDRs[0] != 80.0 || rpt.WindowPDRs[1] != 50.0 {
		t.Fatalf("window series: got %v", rpt.WindowPDRs)
	}
	if rpt.WindowPDRMean != 65.0 {
		t.Fatalf("window mean: got %v want 65", rpt.WindowPDRMean)
	}
	if rpt.WindowPDRStdDev <= 0.0 {
		t.Fatalf("window std dev: got %v", rpt.WindowPDRStdDev)
	}
	if rpt.EnergyStdDevJ <= 0.0 {
		t.Fatalf("energy std dev: got %v", rpt.EnergyStdDevJ)
	}
}

func TestBuildReportEmptyState(t *testing.T) {
	cfg := quietCfg()
	as := CreateAggregateState()
	rpt := buildReport(cfg, as, [NumSF]float64{}, [TxPowerBuckets]float64{})

	if rpt.PDR != 0.0 || rpt.MeanDelayMs != 0.0 || rpt.ThroughputBps != 0.0 {
		t.Fatalf("empty state produced nonzero KPIs: pdr %v delay %v tput %v",
			rpt.PDR, rpt.MeanDelayMs, rpt.ThroughputBps)
	}
	if rpt.BitsPerJoule != 0.0 || rpt.CPSR != 0.0 || rpt.ExpiredShare != 0.0 {
		t.Fatalf("empty state produced nonzero derived KPIs")
	}
	if rpt.WindowPDRMean != 0.0 || rpt.WindowPDRStdDev != 0.0 {
		t.Fatalf("empty window series produced nonzero summary")
	}
}

func TestReportRowLayouts(t *testing.T) {
	cfg, as := reportFixture(false)
	rpt := buildReport(cfg, as, [NumSF]float64{}, [TxPowerBuckets]float64{})

	// unconfirmed main row: 20 KPI columns, the two all-observed means,
	// and the run tag
	row := strings.TrimSuffix(rpt.mainRow(), "\n")
	if got := len(strings.Split(row, ",")); got != 23 {
		t.Fatalf("unconfirmed main row columns: got %d want 23", got)
	}
	if !strings.HasSuffix(row, ",3") {
		t.Fatalf("main row not tagged with the run number: %s", row)
	}

	cfg.Confirmed = true
	rpt = buildReport(cfg, as, [NumSF]float64{}, [TxPowerBuckets]float64{})
	row = strings.TrimSuffix(rpt.mainRow(), "\n")
	if got := len(strings.Split(row, ",")); got != 26 {
		t.Fatalf("confirmed main row columns: got %d want 26", got)
	}

	row = strings.TrimSuffix(rpt.sfTpRow(), "\n")
	if got := len(strings.Split(row, ",")); got != NumSF+TxPowerBuckets+1 {
		t.Fatalf("sf/tp row columns: got %d", got)
	}

	row = strings.TrimSuffix(rpt.lossRow(), "\n")
	if got := len(strings.Split(row, ",")); got != 11+NumSF+1 {
		t.Fatalf("loss row columns: got %d", got)
	}

	lines := strings.Split(strings.TrimSuffix(rpt.windowRows(), "\n"), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "1,") || !strings.HasPrefix(lines[1], "2,") {
		t.Fatalf("window rows: got %v", lines)
	}
}

func TestWriteRecordFilesAppend(t *testing.T) {
	dir := t.TempDir()
	cfg, as := reportFixture(false)
	rpt := buildReport(cfg, as, [NumSF]float64{}, [TxPowerBuckets]float64{})

	if err := rpt.WriteRecordFiles(dir); err != nil {
		t.Fatalf("writing record files: %v", err)
	}
	if err := rpt.WriteRecordFiles(dir); err != nil {
		t.Fatalf("writing record files again: %v", err)
	}

	bytes, err := os.ReadFile(makeFileName(dir, cfg.Gateways, "data", "csv"))
	if err != nil {
		t.Fatalf("reading data file: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(bytes), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("repeat runs did not append: %d lines", len(lines))
	}

	for _, name := range []string{"sf_tp", "losses", "pdrs_3"} {
		if _, err := os.Stat(makeFileName(dir, cfg.Gateways, name, "csv")); err != nil {
			t.Fatalf("record family %s missing: %v", name, err)
		}
	}
}

func TestReportSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	cfg, as := reportFixture(false)
	rpt := buildReport(cfg, as, [NumSF]float64{}, [TxPowerBuckets]float64{})

	name := dir + "/report.yaml"
	if err := rpt.WriteToFile(name); err != nil {
		t.Fatalf("writing snapshot: %v", err)
	}
	bytes, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if !strings.Contains(string(bytes), "pdr: 65") {
		t.Fatalf("snapshot missing pdr field")
	}
}
