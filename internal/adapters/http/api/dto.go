package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/zonetrack/internal/domain/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 20

// sampleRequest is one tracked frame. Frame defaults to the sample's index.
// x and y are null (or both absent) for a frame without a detection;
// likelihood defaults to 1.
type sampleRequest struct {
	Frame      *int     `json:"frame"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Likelihood *float64 `json:"likelihood"`
}

// trialRequest mirrors the OpenAPI schema for POST /trials.
type trialRequest struct {
	TrialID   string            `json:"trial_id"`
	Subject   string            `json:"subject"`
	FrameRate float64           `json:"frame_rate"`
	Labels    map[string]string `json:"labels"`
	Samples   []sampleRequest   `json:"samples"`
}

type classifyRequest struct {
	Samples []sampleRequest `json:"samples"`
}

type ackResponse struct {
	Status    string `json:"status"`
	TrialID   string `json:"trial_id"`
	Duplicate bool   `json:"duplicate"`
}

func (t trialRequest) toTrial() (model.Trial, error) {
	if !(t.FrameRate > 0) {
		return model.Trial{}, fmt.Errorf("%w: frame_rate must be positive", ErrBadRequest)
	}
	samples, err := toSamples(t.Samples)
	if err != nil {
		return model.Trial{}, err
	}
	return model.Trial{
		ID:        strings.TrimSpace(t.TrialID),
		Subject:   t.Subject,
		FrameRate: t.FrameRate,
		Labels:    t.Labels,
		Samples:   samples,
	}, nil
}

func toSamples(in []sampleRequest) ([]model.Sample, error) {
	out := make([]model.Sample, len(in))
	for i, s := range in {
		frame := i
		if s.Frame != nil {
			frame = *s.Frame
		}
		pos := model.Missing()
		switch {
		case s.X != nil && s.Y != nil:
			pos = model.At(*s.X, *s.Y)
		case s.X != nil || s.Y != nil:
			return nil, fmt.Errorf("%w: sample %d: x and y must both be set or both be null", ErrBadRequest, i)
		}
		likelihood := 1.0
		if s.Likelihood != nil {
			likelihood = *s.Likelihood
			if likelihood < 0 || likelihood > 1 {
				return nil, fmt.Errorf("%w: sample %d: likelihood %v outside [0,1]", ErrBadRequest, i, likelihood)
			}
		}
		out[i] = model.Sample{Frame: frame, Pos: pos, Likelihood: likelihood}
	}
	return out, nil
}

// decode reads a single JSON document of at most maxBodyBytes into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: %w", ErrTooLarge, err)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", ErrBadRequest)
	}
	return nil
}
