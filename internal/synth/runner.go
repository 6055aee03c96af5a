package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/zonetrack/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// ErrVerification is returned when reports do not match the submitted trials.
var ErrVerification = errors.New("report verification failed")

// Run executes the complete synthetic run and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting synthetic trial run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("trials", cfg.NumTrials),
		logger.Int("frames", cfg.Frames),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Bool("verbose", cfg.Verbose),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	arena, err := checkService(ctx, client)
	if err != nil {
		return stats, fmt.Errorf("service check failed: %w", err)
	}

	trials, err := Generate(ctx, cfg)
	if err != nil {
		return stats, fmt.Errorf("trial generation failed: %w", err)
	}
	stats.TrialsGenerated = len(trials)

	if cfg.OutputFile != "" {
		if err := saveTrials(cfg.OutputFile, trials); err != nil {
			log.Warn(ctx, "failed to save trials to file", logger.Error(err))
		}
	}

	submitTrials(ctx, cfg, client, trials, stats)

	reports, err := awaitReports(ctx, cfg, client, trials, stats)
	if err != nil {
		return stats, err
	}
	summarize(ctx, reports, arena)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.ReportsInvalid > 0 {
		return stats, fmt.Errorf("%w: %d of %d reports", ErrVerification, stats.ReportsInvalid, len(reports))
	}
	log.Info(ctx, "run completed successfully")
	return stats, nil
}

// checkService verifies the service is up and fetches its arena.
func checkService(ctx context.Context, client *HTTPClient) (Arena, error) {
	if status, err := client.Get(ctx, "/healthz", nil); err != nil {
		return Arena{}, fmt.Errorf("failed to connect to service: %w", err)
	} else if status != http.StatusOK {
		return Arena{}, fmt.Errorf("health check answered %d", status)
	}
	var arena Arena
	if status, err := client.Get(ctx, "/arena", &arena); err != nil {
		return Arena{}, err
	} else if status != http.StatusOK {
		return Arena{}, fmt.Errorf("arena request answered %d", status)
	}
	logger.Get().Info(ctx, "service is healthy",
		logger.String("arena", arena.Name),
		logger.Any("primary", arena.Primary),
	)
	return arena, nil
}

// awaitReports polls until every trial has a report or cfg.Wait elapses,
// and checks each report as it arrives.
func awaitReports(ctx context.Context, cfg *Config, client *HTTPClient, trials []Trial, stats *Stats) ([]Report, error) {
	waitCtx, cancel := context.WithTimeout(ctx, cfg.Wait)
	defer cancel()

	pending := make(map[string]Trial, len(trials))
	for _, t := range trials {
		pending[t.TrialID] = t
	}
	reports := make([]Report, 0, len(trials))

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for len(pending) > 0 {
		for id, t := range pending {
			var r Report
			status, err := client.Get(waitCtx, "/trials/"+url.PathEscape(id), &r)
			if err != nil || status != http.StatusOK {
				continue
			}
			delete(pending, id)
			reports = append(reports, r)
			if err := checkReport(t, r); err != nil {
				stats.ReportsInvalid++
				logger.Get().Warn(ctx, "invalid report", logger.Error(err))
			}
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-waitCtx.Done():
			stats.ReportsRetrieved = len(reports)
			return reports, fmt.Errorf("%d reports missing after %s: %w", len(pending), cfg.Wait, waitCtx.Err())
		case <-ticker.C:
		}
	}
	stats.ReportsRetrieved = len(reports)
	return reports, nil
}

// saveTrials writes the generated trials as a JSON array.
func saveTrials(filename string, trials []Trial) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(trials, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trials: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, trialsPerSecond float64
	if stats.TrialsSubmitted > 0 {
		successRate = float64(stats.TrialsAccepted+stats.TrialsDuplicate) / float64(stats.TrialsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		trialsPerSecond = float64(stats.ReportsRetrieved) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("trialsGenerated", stats.TrialsGenerated),
		logger.Int("trialsSubmitted", stats.TrialsSubmitted),
		logger.Int("trialsAccepted", stats.TrialsAccepted),
		logger.Int("trialsDuplicate", stats.TrialsDuplicate),
		logger.Int("trialsFailed", stats.TrialsFailed),
		logger.Int("retries", stats.Retries),
		logger.Int("reportsRetrieved", stats.ReportsRetrieved),
		logger.Int("reportsInvalid", stats.ReportsInvalid),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("trialsPerSecond", trialsPerSecond),
	)
}
