package sas26

// logger.go wires up category loggers for the package.  Each major
// component logs through its own logrus entry so runs can be filtered by
// concern.

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

const moduleName = "SAS26"

var (
	initOnce sync.Once

	// MainLog covers run lifecycle: construction, finalization, reset
	MainLog *log.Entry

	// CfgLog covers configuration loading and validation
	CfgLog *log.Entry

	// StatsLog covers the collector and aggregation engine
	StatsLog *log.Entry

	// SamplerLog covers the windowed delivery-ratio sampler
	SamplerLog *log.Entry

	// ReportLog covers report rendering and file output
	ReportLog *log.Entry

	// HarnessLog covers the built-in traffic harness
	HarnessLog *log.Entry
)

// InitLog configures global logrus settings and builds the category
// entries.  The first call wins for formatting; level is re-applied on
// every call.
func InitLog(levelString string) error {
	initOnce.Do(func() {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
		log.SetLevel(log.InfoLevel)

		MainLog = log.WithFields(log.Fields{"module": moduleName, "category": "MAIN"})
		CfgLog = log.WithFields(log.Fields{"module": moduleName, "category": "CFG"})
		StatsLog = log.WithFields(log.Fields{"module": moduleName, "category": "STATS"})
		SamplerLog = log.WithFields(log.Fields{"module": moduleName, "category": "SAMPLER"})
		ReportLog = log.WithFields(log.Fields{"module": moduleName, "category": "REPORT"})
		HarnessLog = log.WithFields(log.Fields{"module": moduleName, "category": "HARNESS"})
	})

	level, err := parseLogLevel(levelString)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return err
	}
	log.SetLevel(level)
	return nil
}

func parseLogLevel(levelString string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelString)) {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level: %s", levelString)
	}
}
