package sas26

// report.go renders the aggregation engine's final state into a Report, a
// read-only snapshot holding every derived KPI, and writes the per-run
// record families.  Rows append to per-family files tagged with the run
// number so repeated runs accumulate rather than overwrite.

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// Report is the end-of-run KPI snapshot handed to formatters
type Report struct {
	Name      string  `json:"name" yaml:"name"`
	Run       int     `json:"run" yaml:"run"`
	Confirmed bool    `json:"confirmed" yaml:"confirmed"`
	Devices   int     `json:"devices" yaml:"devices"`
	Gateways  int     `json:"gateways" yaml:"gateways"`
	Duration  float64 `json:"duration" yaml:"duration"`
	Payload   int     `json:"payload" yaml:"payload"`

	Sent            int `json:"sent" yaml:"sent"`
	Received        int `json:"received" yaml:"received"`
	Expired         int `json:"expired" yaml:"expired"`
	Lost            int `json:"lost" yaml:"lost"`
	Retransmissions int `json:"retransmissions" yaml:"retransmissions"`
	Observed        int `json:"observed" yaml:"observed"`

	ImrSent     int `json:"imrsent" yaml:"imrsent"`
	ImrReceived int `json:"imrreceived" yaml:"imrreceived"`
	PccSent     int `json:"pccsent" yaml:"pccsent"`
	PccReceived int `json:"pccreceived" yaml:"pccreceived"`

	PDR    float64 `json:"pdr" yaml:"pdr"`
	ImrPDR float64 `json:"imrpdr" yaml:"imrpdr"`
	PccPDR float64 `json:"pccpdr" yaml:"pccpdr"`

	MeanDelayMs    float64 `json:"meandelay" yaml:"meandelay"`
	MeanImrDelayMs float64 `json:"meanimrdelay" yaml:"meanimrdelay"`
	MeanPccDelayMs float64 `json:"meanpccdelay" yaml:"meanpccdelay"`

	// delivered-only signal quality
	MeanRxPowerDbm float64 `json:"meanrxpower" yaml:"meanrxpower"`
	MeanSnrDb      float64 `json:"meansnr" yaml:"meansnr"`

	// all-observed signal quality
	MeanAllRxPowerDbm float64 `json:"meanallrxpower" yaml:"meanallrxpower"`
	MeanAllSnrDb      float64 `json:"meanallsnr" yaml:"meanallsnr"`

	TotalEnergyJ     float64 `json:"totalenergy" yaml:"totalenergy"`
	EnergyPerDeviceJ float64 `json:"energyperdevice" yaml:"energyperdevice"`
	EnergyStdDevJ    float64 `json:"energystddev" yaml:"energystddev"`

	ThroughputBps float64 `json:"throughput" yaml:"throughput"`

	// the four energy-efficiency figures: received bits over total and
	// per-device energy, and throughput over the same two denominators
	BitsPerJoule          float64 `json:"bitsperjoule" yaml:"bitsperjoule"`
	BitsPerDeviceJoule    float64 `json:"bitsperdevicejoule" yaml:"bitsperdevicejoule"`
	ThroughputPerDeviceJ  float64 `json:"tputperdevicejoule" yaml:"tputperdevicejoule"`
	ThroughputPerJoule    float64 `json:"tputperjoule" yaml:"tputperjoule"`

	AckAttempts int     `json:"ackattempts" yaml:"ackattempts"`
	AckReceived int     `json:"ackreceived" yaml:"ackreceived"`
	CPSR        float64 `json:"cpsr" yaml:"cpsr"`

	LostInterference     int `json:"lostinterference" yaml:"lostinterference"`
	LostUnderSensitivity int `json:"lostundersensitivity" yaml:"lostundersensitivity"`
	LostNoReceiver       int `json:"lostnoreceiver" yaml:"lostnoreceiver"`
	LostChannelBusy      int `json:"lostchannelbusy" yaml:"lostchannelbusy"`

	InterferenceShare     float64 `json:"interferenceshare" yaml:"interferenceshare"`
	UnderSensitivityShare float64 `json:"undersensitivityshare" yaml:"undersensitivityshare"`
	NoReceiverShare       float64 `json:"noreceivershare" yaml:"noreceivershare"`
	ChannelBusyShare      float64 `json:"channelbusyshare" yaml:"channelbusyshare"`
	ExpiredShare          float64 `json:"expiredshare" yaml:"expiredshare"`

	InterferenceBySF [NumSF]float64 `json:"interferencebysf" yaml:"interferencebysf"`

	SFDistPct [NumSF]float64          `json:"sfdist" yaml:"sfdist"`
	TPDistPct [TxPowerBuckets]float64 `json:"tpdist" yaml:"tpdist"`

	WindowPDRs      []float64 `json:"windowpdrs" yaml:"windowpdrs"`
	WindowPDRMean   float64   `json:"windowpdrmean" yaml:"windowpdrmean"`
	WindowPDRStdDev float64   `json:"windowpdrstddev" yaml:"windowpdrstddev"`
}

// buildReport derives every KPI from the aggregate state.  All zero
// denominators yield zero-valued KPIs rather than errors.
func buildReport(cfg *ExperimentCfg, as *AggregateState,
	sfDist [NumSF]float64, tpDist [TxPowerBuckets]float64) *Report {

	rpt := &Report{
		Name:      cfg.Name,
		Run:       cfg.Run,
		Confirmed: cfg.Confirmed,
		Devices:   cfg.Devices,
		Gateways:  cfg.Gateways,
		Duration:  cfg.SimSeconds,
		Payload:   cfg.PayloadBytes,

		Sent:            as.TotalSent,
		Received:        as.TotalReceived,
		Expired:         as.TotalExpired,
		Lost:            as.TotalLost,
		Retransmissions: as.TotalRetransmissions,
		Observed:        as.TotalObserved,

		ImrSent:     as.SentByClass[IMR],
		ImrReceived: as.ReceivedByClass[IMR],
		PccSent:     as.SentByClass[PCC],
		PccReceived: as.ReceivedByClass[PCC],

		AckAttempts: as.TotalAckAttempts,
		AckReceived: as.TotalAckReceived,

		LostInterference:     as.LostByCause[CauseInterference],
		LostUnderSensitivity: as.LostByCause[CauseUnderSensitivity],
		LostNoReceiver:       as.LostByCause[CauseNoReceiver],
		LostChannelBusy:      as.LostByCause[CauseChannelBusy],

		SFDistPct: sfDist,
		TPDistPct: tpDist,

		TotalEnergyJ: as.TotalEnergyJ,
	}

	rpt.PDR = ratioPct(as.TotalReceived, as.TotalSent)
	rpt.ImrPDR = ratioPct(as.ReceivedByClass[IMR], as.SentByClass[IMR])
	rpt.PccPDR = ratioPct(as.ReceivedByClass[PCC], as.SentByClass[PCC])

	rpt.MeanDelayMs = meanOver(as.SumDelayMs, as.TotalReceived)
	rpt.MeanImrDelayMs = meanOver(as.SumDelayByClassMs[IMR], as.ReceivedByClass[IMR])
	rpt.MeanPccDelayMs = meanOver(as.SumDelayByClassMs[PCC], as.ReceivedByClass[PCC])

	rpt.MeanRxPowerDbm = meanOver(as.SumRxPowerDbm, as.TotalReceived)
	rpt.MeanSnrDb = meanOver(as.SumSnrDb, as.TotalReceived)
	rpt.MeanAllRxPowerDbm = meanOver(as.SumAllRxPowerDbm, as.TotalObserved)
	rpt.MeanAllSnrDb = meanOver(as.SumAllSnrDb, as.TotalObserved)

	rpt.EnergyPerDeviceJ = safeDiv(as.TotalEnergyJ, float64(cfg.Devices))

	receivedBits := float64(as.TotalReceived) * float64(cfg.PayloadBytes) * 8.0
	rpt.ThroughputBps = safeDiv(receivedBits, cfg.SimSeconds)
	rpt.BitsPerJoule = safeDiv(receivedBits, as.TotalEnergyJ)
	rpt.BitsPerDeviceJoule = safeDiv(receivedBits, rpt.EnergyPerDeviceJ)
	rpt.ThroughputPerDeviceJ = safeDiv(rpt.ThroughputBps, rpt.EnergyPerDeviceJ)
	rpt.ThroughputPerJoule = safeDiv(rpt.ThroughputBps, as.TotalEnergyJ)

	if cfg.Confirmed {
		rpt.CPSR = ratioPct(as.TotalAckReceived, as.TotalReceived)
	}

	rpt.InterferenceShare = ratioPct(as.LostByCause[CauseInterference], as.TotalLost)
	rpt.UnderSensitivityShare = ratioPct(as.LostByCause[CauseUnderSensitivity], as.TotalLost)
	rpt.NoReceiverShare = ratioPct(as.LostByCause[CauseNoReceiver], as.TotalLost)
	rpt.ChannelBusyShare = ratioPct(as.LostByCause[CauseChannelBusy], as.TotalLost)
	rpt.ExpiredShare = ratioPct(as.TotalExpired, as.TotalLost)

	for idx := 0; idx < NumSF; idx++ {
		rpt.InterferenceBySF[idx] = ratioPct(as.LossBySF[CauseInterference][idx],
			as.LostByCause[CauseInterference])
	}

	rpt.WindowPDRs = append([]float64{}, as.WindowSamples...)
	if len(rpt.WindowPDRs) > 0 {
		rpt.WindowPDRMean = stat.Mean(rpt.WindowPDRs, nil)
	}
	if len(rpt.WindowPDRs) > 1 {
		rpt.WindowPDRStdDev = stat.StdDev(rpt.WindowPDRs, nil)
	}
	if len(as.DeviceEnergyJ) > 1 {
		rpt.EnergyStdDevJ = stat.StdDev(as.DeviceEnergyJ, nil)
	}

	return rpt
}

// fstr formats a float the way the record files expect
func fstr(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// makeFileName builds a per-family record file name inside dir, prefixed
// with the gateway count the way downstream tooling expects
func makeFileName(dir string, gateways int, name, ext string) string {
	return fmt.Sprintf("%s/%dgw_%s.%s", dir, gateways, name, ext)
}

// appendToFile appends one chunk of delimited text to the named file,
// creating it on first use
func appendToFile(fileName, content string) error {
	f, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(content)
	cerr := f.Close()
	return ReportErrs([]error{werr, cerr})
}

// mainRow renders the main KPI row.  Confirmed runs carry three extra
// columns for the acknowledgment figures.
func (rpt *Report) mainRow() string {
	cols := []string{
		strconv.Itoa(rpt.Sent), strconv.Itoa(rpt.Received), fstr(rpt.PDR),
		strconv.Itoa(rpt.ImrSent), strconv.Itoa(rpt.ImrReceived), fstr(rpt.ImrPDR),
		strconv.Itoa(rpt.PccSent), strconv.Itoa(rpt.PccReceived), fstr(rpt.PccPDR),
		fstr(rpt.MeanDelayMs), fstr(rpt.MeanImrDelayMs), fstr(rpt.MeanPccDelayMs),
		fstr(rpt.MeanRxPowerDbm), fstr(rpt.MeanSnrDb),
		fstr(rpt.EnergyPerDeviceJ), fstr(rpt.ThroughputBps),
		fstr(rpt.BitsPerJoule), fstr(rpt.BitsPerDeviceJoule),
		fstr(rpt.ThroughputPerDeviceJ), fstr(rpt.ThroughputPerJoule),
	}
	if rpt.Confirmed {
		cols = append(cols, strconv.Itoa(rpt.AckAttempts),
			strconv.Itoa(rpt.AckReceived), fstr(rpt.CPSR))
	}
	cols = append(cols, fstr(rpt.MeanAllRxPowerDbm), fstr(rpt.MeanAllSnrDb),
		strconv.Itoa(rpt.Run))
	return strings.Join(cols, ",") + "\n"
}

// sfTpRow renders the spreading-factor and transmission-power shares
func (rpt *Report) sfTpRow() string {
	cols := make([]string, 0, NumSF+TxPowerBuckets+1)
	for _, share := range rpt.SFDistPct {
		cols = append(cols, fstr(share))
	}
	for _, share := range rpt.TPDistPct {
		cols = append(cols, fstr(share))
	}
	cols = append(cols, strconv.Itoa(rpt.Run))
	return strings.Join(cols, ",") + "\n"
}

// lossRow renders the loss breakdown: cause counts, cause shares, and the
// per-SF interference shares
func (rpt *Report) lossRow() string {
	cols := []string{
		strconv.Itoa(rpt.LostInterference), strconv.Itoa(rpt.LostUnderSensitivity),
		strconv.Itoa(rpt.LostNoReceiver), strconv.Itoa(rpt.LostChannelBusy),
		strconv.Itoa(rpt.Expired), strconv.Itoa(rpt.Lost),
		fstr(rpt.InterferenceShare), fstr(rpt.UnderSensitivityShare),
		fstr(rpt.NoReceiverShare), fstr(rpt.ChannelBusyShare), fstr(rpt.ExpiredShare),
	}
	for _, share := range rpt.InterferenceBySF {
		cols = append(cols, fstr(share))
	}
	cols = append(cols, strconv.Itoa(rpt.Run))
	return strings.Join(cols, ",") + "\n"
}

// windowRows renders the per-window delivery-ratio series, one indexed row
// per elapsed window
func (rpt *Report) windowRows() string {
	var sb strings.Builder
	for idx, pdr := range rpt.WindowPDRs {
		sb.WriteString(strconv.Itoa(idx+1) + "," + fstr(pdr) + "\n")
	}
	return sb.String()
}

// WriteRecordFiles appends this run's rows to the record families under
// dir: the main KPI row, the SF/TP distribution, the loss breakdown, and a
// per-run delivery-ratio series
func (rpt *Report) WriteRecordFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	errs := []error{}
	errs = append(errs, appendToFile(makeFileName(dir, rpt.Gateways, "data", "csv"), rpt.mainRow()))
	errs = append(errs, appendToFile(makeFileName(dir, rpt.Gateways, "sf_tp", "csv"), rpt.sfTpRow()))
	errs = append(errs, appendToFile(makeFileName(dir, rpt.Gateways, "losses", "csv"), rpt.lossRow()))

	if len(rpt.WindowPDRs) > 0 {
		name := makeFileName(dir, rpt.Gateways, "pdrs_"+strconv.Itoa(rpt.Run), "csv")
		errs = append(errs, appendToFile(name, rpt.windowRows()))
	}

	err := ReportErrs(errs)
	if err != nil {
		ReportLog.Errorf("writing record files under %s: %v", dir, err)
		return err
	}
	ReportLog.Infof("record files for run %d written under %s", rpt.Run, dir)
	return nil
}

// WriteToFile stores the Report struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of
// this name.
func (rpt *Report) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*rpt)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*rpt, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	f.Close()
	return werr
}
