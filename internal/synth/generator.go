package synth

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/zonetrack/pkg/logger"
)

// Likelihood ranges for detected and dropped frames.
const (
	minDetectedLikelihood = 0.8
	maxDroppedLikelihood  = 0.2
)

// Generate creates cfg.NumTrials trials. Each trial draws from its own
// stream seeded by (cfg.Seed, index), so the result does not depend on the
// number of workers.
func Generate(ctx context.Context, cfg *Config) ([]Trial, error) {
	if cfg.NumTrials < 1 || cfg.Frames < 1 {
		return nil, fmt.Errorf("need at least one trial and one frame, got %d trials of %d frames", cfg.NumTrials, cfg.Frames)
	}
	if !(cfg.Width > 0) || !(cfg.Height > 0) {
		return nil, fmt.Errorf("arena size must be positive, got %vx%v", cfg.Width, cfg.Height)
	}
	logger.Get().Info(ctx, "generating trials",
		logger.Int("trials", cfg.NumTrials),
		logger.Int("frames", cfg.Frames),
	)

	trials := make([]Trial, cfg.NumTrials)
	workers := max(1, min(cfg.Workers, cfg.NumTrials))
	next := make(chan int, workers*WorkerChannelMultiplier)
	done := make(chan struct{})

	for range workers {
		go func() {
			for i := range next {
				trials[i] = generateTrial(cfg, i)
			}
			done <- struct{}{}
		}()
	}

	var err error
feed:
	for i := range trials {
		select {
		case <-ctx.Done():
			err = fmt.Errorf("context cancelled during trial generation: %w", ctx.Err())
			break feed
		case next <- i:
		}
	}
	close(next)
	for range workers {
		<-done
	}
	if err != nil {
		return nil, err
	}

	logger.Get().Info(ctx, "generated trials", logger.Int("count", len(trials)))
	return trials, nil
}

// generateTrial is a reflected random walk over the floor. Dropped frames
// have null coordinates, or a low likelihood when the tracker still reported
// a guess.
func generateTrial(cfg *Config, index int) Trial {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:8], cfg.Seed)
	binary.LittleEndian.PutUint64(seed[8:16], uint64(index))
	src := rand.NewChaCha8(seed)
	rng := rand.New(src)

	id, err := uuid.NewRandomFromReader(src)
	if err != nil {
		id = uuid.New()
	}

	step := cfg.Step
	if step <= 0 {
		step = math.Min(cfg.Width, cfg.Height) / 50
	}

	t := Trial{
		TrialID:   id.String(),
		Subject:   "subject-" + strconv.Itoa(index%16),
		FrameRate: cfg.FrameRate,
		Labels:    map[string]string{"source": "synth", "seed": strconv.FormatUint(cfg.Seed, 10)},
		Samples:   make([]Sample, cfg.Frames),
	}

	x, y := rng.Float64()*cfg.Width, rng.Float64()*cfg.Height
	heading := rng.Float64() * 2 * math.Pi
	for f := range t.Samples {
		heading += rng.NormFloat64() * 0.5
		d := math.Abs(step + rng.NormFloat64()*step/2)
		x = fold(x+d*math.Cos(heading), cfg.Width)
		y = fold(y+d*math.Sin(heading), cfg.Height)

		s := Sample{Frame: f, Likelihood: minDetectedLikelihood + rng.Float64()*(1-minDetectedLikelihood)}
		switch r := rng.Float64(); {
		case r < cfg.DropRate/2:
			s.Likelihood = 0
		case r < cfg.DropRate:
			s.Likelihood = rng.Float64() * maxDroppedLikelihood
			s.X, s.Y = ptr(x), ptr(y)
		default:
			s.X, s.Y = ptr(x), ptr(y)
		}
		t.Samples[f] = s
	}
	return t
}

// fold reflects v back into [0, limit].
func fold(v, limit float64) float64 {
	period := 2 * limit
	v = math.Mod(v, period)
	if v < 0 {
		v += period
	}
	if v > limit {
		v = period - v
	}
	return v
}

func ptr(v float64) *float64 { return &v }
