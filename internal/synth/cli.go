package synth

import (
	"fmt"
	"os"

	"github.com/okian/zonetrack/pkg/logger"
)

// SetupLogging initializes the global logger; verbose lowers the level to debug.
func SetupLogging(format string, verbose bool) error {
	if err := logger.InitWithFormat(format); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the synthetic trial tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`zonetrack synthetic trials
==========================

Generates random-walk trials over a rectangular floor, submits them to a
running zonetrack service, waits for the reports and checks them.

Usage:
  go run ./cmd/synth-trials [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -trials int        Number of trials to generate (default 100)
  -frames int        Frames per trial (default 9000)
  -fps float         Frame rate (default 30)
  -width float       Floor width in pixels (default 500)
  -height float      Floor height in pixels (default 500)
  -step float        Mean displacement per frame in pixels (default width/50)
  -drop float        Fraction of frames without a detection (default 0.02)
  -seed uint         Random seed (default 1)
  -workers int       Number of concurrent submitters (default CPU cores * 2)
  -timeout duration  HTTP request timeout (default 30s)
  -wait duration     How long to wait for reports (default 2m)
  -output string     Write the generated trials to this JSON file
  -log-format string Log format: text or json (default "text")
  -verbose           Enable verbose logging
  -help              Show this help message

Examples:
  go run ./cmd/synth-trials -trials 500 -workers 16
  go run ./cmd/synth-trials -frames 1800 -drop 0.1 -output trials.json
`)
}
