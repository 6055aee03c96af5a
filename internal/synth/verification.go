package synth

import (
	"context"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/zonetrack/pkg/logger"
)

// checkReport compares a report against the trial it was computed from.
func checkReport(t Trial, r Report) error {
	if r.TrialID != t.TrialID {
		return fmt.Errorf("report %s answers trial %s", r.TrialID, t.TrialID)
	}
	if r.Frames != len(t.Samples) {
		return fmt.Errorf("trial %s: %d frames reported, %d submitted", t.TrialID, r.Frames, len(t.Samples))
	}
	if r.ValidFrames > r.Frames {
		return fmt.Errorf("trial %s: %d valid frames out of %d", t.TrialID, r.ValidFrames, r.Frames)
	}
	for _, z := range r.Zones {
		if z.Percent < 0 || z.Percent > PercentageMultiplier+percentTolerance {
			return fmt.Errorf("trial %s zone %s: percent %v outside [0,100]", t.TrialID, z.Zone, z.Percent)
		}
		if z.InsideFrames > z.ValidFrames {
			return fmt.Errorf("trial %s zone %s: inside %d of %d valid frames", t.TrialID, z.Zone, z.InsideFrames, z.ValidFrames)
		}
		if z.Exits > z.Entries+1 || z.Entries > z.Exits+1 {
			return fmt.Errorf("trial %s zone %s: %d entries and %d exits", t.TrialID, z.Zone, z.Entries, z.Exits)
		}
	}
	return nil
}

// partitions reports whether the primary zones split every valid frame
// between them, which holds for a floor cut into centre and periphery.
func partitions(r Report, primary []string) bool {
	sum := 0
	for _, z := range r.Zones {
		if slices.Contains(primary, z.Zone) {
			sum += z.InsideFrames
		}
	}
	return sum == r.ValidFrames
}

// summarize logs the mean and spread of time spent in each primary zone.
func summarize(ctx context.Context, reports []Report, arena Arena) {
	log := logger.Get()
	partitioned := 0
	for _, r := range reports {
		if partitions(r, arena.Primary) {
			partitioned++
		}
	}
	log.Info(ctx, "primary zone coverage",
		logger.String("arena", arena.Name),
		logger.Int("reports", len(reports)),
		logger.Int("partitioned", partitioned),
	)

	for _, zone := range arena.Primary {
		var pct []float64
		for _, r := range reports {
			for _, z := range r.Zones {
				if z.Zone == zone && z.ValidFrames > 0 {
					pct = append(pct, z.Percent)
				}
			}
		}
		if len(pct) == 0 {
			continue
		}
		mean, sd := stat.MeanStdDev(pct, nil)
		if len(pct) < 2 {
			sd = 0
		}
		log.Info(ctx, "zone occupancy",
			logger.String("zone", zone),
			logger.Float64("meanPercent", mean),
			logger.Float64("stdDevPercent", sd),
		)
	}
}
