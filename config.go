package sas26

// config.go holds the serializable description of an experiment and the
// readers/writers that move it between files and run-time structures.
// Serialization to json or yaml is selected by file extension.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutcomeProbs gives the per-transmission outcome frequencies the traffic
// harness draws from.  These are configuration standing in for a radio
// model, which lives outside this module.
type OutcomeProbs struct {
	Delivered        float64 `json:"delivered" yaml:"delivered"`
	Interference     float64 `json:"interference" yaml:"interference"`
	UnderSensitivity float64 `json:"undersensitivity" yaml:"undersensitivity"`
	NoReceiver       float64 `json:"noreceiver" yaml:"noreceiver"`
	ChannelBusy      float64 `json:"channelbusy" yaml:"channelbusy"`
}

// TrafficCfg configures the built-in traffic harness
type TrafficCfg struct {
	// MaxAttempts bounds transmissions per packet in confirmed mode
	MaxAttempts int          `json:"maxattempts" yaml:"maxattempts"`
	Outcomes    OutcomeProbs `json:"outcomes" yaml:"outcomes"`
}

// ExperimentCfg is the top-level description of one experiment run
type ExperimentCfg struct {
	Name         string  `json:"name" yaml:"name"`
	Run          int     `json:"run" yaml:"run"`
	Devices      int     `json:"devices" yaml:"devices"`
	Gateways     int     `json:"gateways" yaml:"gateways"`
	PayloadBytes int     `json:"payload" yaml:"payload"`
	SimSeconds   float64 `json:"simtime" yaml:"simtime"`
	WindowSecs   float64 `json:"window" yaml:"window"`

	// Confirmed selects confirmed (ack) traffic; unconfirmed otherwise
	Confirmed bool `json:"confirmed" yaml:"confirmed"`

	// AdaptiveRate enables the data-rate reduction follow-up on
	// interference losses
	AdaptiveRate bool `json:"adaptiverate" yaml:"adaptiverate"`

	ResultsPath string `json:"resultspath" yaml:"resultspath"`
	LogLevel    string `json:"loglevel" yaml:"loglevel"`

	Traffic TrafficCfg `json:"traffic" yaml:"traffic"`
}

// CreateExperimentCfg returns a configuration carrying the stock scenario:
// 200 devices, one gateway, a 24 h run sampled hourly, 51 byte payloads,
// unconfirmed traffic
func CreateExperimentCfg() *ExperimentCfg {
	cfg := new(ExperimentCfg)
	cfg.setDefaults()
	return cfg
}

func (cfg *ExperimentCfg) setDefaults() {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "sas26"
	}
	if cfg.Run <= 0 {
		cfg.Run = 1
	}
	if cfg.Devices <= 0 {
		cfg.Devices = 200
	}
	if cfg.Gateways <= 0 {
		cfg.Gateways = 1
	}
	if cfg.PayloadBytes <= 0 {
		cfg.PayloadBytes = 51
	}
	if cfg.SimSeconds <= 0.0 {
		cfg.SimSeconds = 24 * 60 * 60
	}
	if cfg.WindowSecs <= 0.0 {
		cfg.WindowSecs = 60 * 60
	}
	if strings.TrimSpace(cfg.ResultsPath) == "" {
		cfg.ResultsPath = "./results"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Traffic.MaxAttempts <= 0 {
		cfg.Traffic.MaxAttempts = 1
		if cfg.Confirmed {
			cfg.Traffic.MaxAttempts = 3
		}
	}
	zero := OutcomeProbs{}
	if cfg.Traffic.Outcomes == zero {
		cfg.Traffic.Outcomes = OutcomeProbs{
			Delivered:        0.85,
			Interference:     0.06,
			UnderSensitivity: 0.04,
			NoReceiver:       0.03,
			ChannelBusy:      0.02,
		}
	}
}

func (cfg *ExperimentCfg) validate() error {
	errs := []error{}
	if cfg.WindowSecs > cfg.SimSeconds {
		errs = append(errs, fmt.Errorf("window %v longer than the run %v", cfg.WindowSecs, cfg.SimSeconds))
	}

	op := cfg.Traffic.Outcomes
	sum := op.Delivered + op.Interference + op.UnderSensitivity + op.NoReceiver + op.ChannelBusy
	if sum < 0.999 || sum > 1.001 {
		errs = append(errs, fmt.Errorf("outcome probabilities sum to %v, want 1", sum))
	}
	for _, p := range []float64{op.Delivered, op.Interference, op.UnderSensitivity, op.NoReceiver, op.ChannelBusy} {
		if p < 0.0 {
			errs = append(errs, fmt.Errorf("negative outcome probability %v", p))
			break
		}
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unsupported log level %q", cfg.LogLevel))
	}

	return ReportErrs(errs)
}

// ReadExperimentCfg deserializes a byte slice holding a representation of an
// ExperimentCfg struct.  If the dict argument is empty the file whose name
// is given is read to acquire the bytes.  Defaults are applied and the
// result validated before return.
func ReadExperimentCfg(filename string, useYAML bool, dict []byte) (*ExperimentCfg, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := ExperimentCfg{}

	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	example.setDefaults()
	verr := example.validate()
	if verr != nil {
		return nil, verr
	}

	return &example, nil
}

// WriteToFile stores the ExperimentCfg struct to the file whose name is
// given.  Serialization to json or to yaml is selected based on the
// extension of this name.
func (cfg *ExperimentCfg) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*cfg)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*cfg, "", "\t")
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

// ReportErrs gathers a list of errors into one, nil if the list held none
func ReportErrs(errs []error) error {
	err_msg := make([]string, 0)
	for _, err := range errs {
		if err != nil {
			err_msg = append(err_msg, err.Error())
		}
	}
	if len(err_msg) == 0 {
		return nil
	}

	return errors.New(strings.Join(err_msg, ","))
}
