package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/zonetrack/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request and decodes a JSON answer into out when out is
// not nil. It returns the status code.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type submitResult int

const (
	resultAccepted submitResult = iota
	resultDuplicate
	resultFailed
)

// submitTrials posts trials concurrently. A 429 is retried with a linear
// backoff; every other non-2xx answer counts as failed.
func submitTrials(ctx context.Context, cfg *Config, client *HTTPClient, trials []Trial, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting trials", logger.Int("trials", len(trials)), logger.Int("workers", cfg.Workers))

	var accepted, duplicate, failed, submitted, retries atomic.Int64

	next := make(chan Trial, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for range max(1, cfg.Workers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range next {
				res, tries := submitTrial(ctx, client, t)
				submitted.Add(1)
				retries.Add(int64(tries - 1))
				switch res {
				case resultAccepted:
					accepted.Add(1)
				case resultDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "trial submission failed", logger.String("trial_id", t.TrialID))
					}
				}
			}
		}()
	}

feed:
	for _, t := range trials {
		select {
		case <-ctx.Done():
			break feed
		case next <- t:
		}
	}
	close(next)
	wg.Wait()

	stats.TrialsSubmitted = int(submitted.Load())
	stats.TrialsAccepted = int(accepted.Load())
	stats.TrialsDuplicate = int(duplicate.Load())
	stats.TrialsFailed = int(failed.Load())
	stats.Retries = int(retries.Load())

	log.Info(ctx, "trial submission completed",
		logger.Int("accepted", stats.TrialsAccepted),
		logger.Int("duplicate", stats.TrialsDuplicate),
		logger.Int("failed", stats.TrialsFailed),
		logger.Int("retries", stats.Retries),
	)
}

func submitTrial(ctx context.Context, client *HTTPClient, t Trial) (submitResult, int) {
	for attempt := 1; ; attempt++ {
		var ack AckResponse
		status, err := client.Post(ctx, "/trials", t, &ack)
		switch {
		case err != nil:
			return resultFailed, attempt
		case status == http.StatusAccepted:
			return resultAccepted, attempt
		case status == http.StatusOK && ack.Duplicate:
			return resultDuplicate, attempt
		case status == http.StatusTooManyRequests && attempt < MaxSubmitAttempts:
			select {
			case <-ctx.Done():
				return resultFailed, attempt
			case <-time.After(time.Duration(attempt) * RetryBackoff):
			}
		default:
			return resultFailed, attempt
		}
	}
}
