package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/zonetrack/internal/synth"
)

// Default configuration constants.
const (
	defaultTrials    = 100
	defaultFrames    = 9000
	defaultFPS       = 30
	defaultSize      = 500
	defaultDropRate  = 0.02
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultTimeout   = 30 * time.Second
	defaultWait      = 2 * time.Minute
	defaultRunBudget = 30 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		trials    = flag.Int("trials", defaultTrials, "Number of trials to generate")
		frames    = flag.Int("frames", defaultFrames, "Frames per trial")
		fps       = flag.Float64("fps", defaultFPS, "Frame rate")
		width     = flag.Float64("width", defaultSize, "Floor width in pixels")
		height    = flag.Float64("height", defaultSize, "Floor height in pixels")
		step      = flag.Float64("step", 0, "Mean displacement per frame in pixels (default width/50)")
		drop      = flag.Float64("drop", defaultDropRate, "Fraction of frames without a detection")
		seed      = flag.Uint64("seed", 1, "Random seed")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait      = flag.Duration("wait", defaultWait, "How long to wait for reports")
		output    = flag.String("output", "", "Write the generated trials to this JSON file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		synth.ShowHelp()
		return
	}

	if err := synth.SetupLogging(*logFormat, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunBudget)
	defer cancel()

	cfg := &synth.Config{
		BaseURL:    *baseURL,
		NumTrials:  *trials,
		Frames:     *frames,
		FrameRate:  *fps,
		Width:      *width,
		Height:     *height,
		Step:       *step,
		DropRate:   *drop,
		Seed:       *seed,
		Workers:    *workers,
		Timeout:    *timeout,
		Wait:       *wait,
		OutputFile: *output,
		Verbose:    *verbose,
	}

	if _, err := synth.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
