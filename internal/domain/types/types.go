// Package types contains plain tabular result rows shared across the
// application and serialized by the API and the report store.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// NeverLabel is how an unreached latency is rendered.
const NeverLabel = "never"

// Latency is the time to a first entry, or never.
type Latency struct {
	seconds float64
	reached bool
}

// Never is the latency of a zone that was never entered.
func Never() Latency { return Latency{} }

// After is a latency of s seconds.
func After(s float64) Latency { return Latency{seconds: s, reached: true} }

// Seconds returns the latency and whether the zone was entered.
func (l Latency) Seconds() (float64, bool) { return l.seconds, l.reached }

// IsNever reports whether the zone was never entered.
func (l Latency) IsNever() bool { return !l.reached }

func (l Latency) String() string {
	if !l.reached {
		return NeverLabel
	}
	return strconv.FormatFloat(l.seconds, 'f', -1, 64)
}

// MarshalJSON renders a number, or the string "never".
func (l Latency) MarshalJSON() ([]byte, error) {
	if !l.reached {
		return json.Marshal(NeverLabel)
	}
	return json.Marshal(l.seconds)
}

// UnmarshalJSON accepts a number or "never".
func (l *Latency) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s != NeverLabel {
			return fmt.Errorf("latency: unexpected %q", s)
		}
		*l = Never()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*l = After(v)
	return nil
}

// DwellRow is one inside interval of a zone.
type DwellRow struct {
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"` // first frame no longer inside, or one past the last frame
	Seconds    float64 `json:"seconds"`
	Initial    bool    `json:"initial,omitempty"`  // subject was placed inside at trial start
	Complete   bool    `json:"complete,omitempty"` // closed by an exit
}

// ZoneRow is the per-zone occupancy summary.
type ZoneRow struct {
	Zone         string     `json:"zone"`
	Name         string     `json:"name"`
	InsideFrames int        `json:"inside_frames"`
	ValidFrames  int        `json:"valid_frames"`
	Seconds      float64    `json:"seconds"`
	Percent      float64    `json:"percent"`
	Entries      int        `json:"entries"`
	Exits        int        `json:"exits"`
	MeanDwell    float64    `json:"mean_dwell_seconds"`
	Latency      Latency    `json:"latency_seconds"`
	Dwells       []DwellRow `json:"dwells,omitempty"`
}

// TransitionRow is one non-zero cell of the transition matrix.
type TransitionRow struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// BinReport is the analysis of one time bin.
type BinReport struct {
	Index       int             `json:"index"`
	Start       float64         `json:"start_seconds"`
	End         float64         `json:"end_seconds"`
	Zones       []ZoneRow       `json:"zones"`
	Transitions []TransitionRow `json:"transitions"`
}

// TrialReport is the complete analysis result of one trial.
type TrialReport struct {
	TrialID     string            `json:"trial_id"`
	Subject     string            `json:"subject,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	FrameRate   float64           `json:"frame_rate"`
	Frames      int               `json:"frames"`
	ValidFrames int               `json:"valid_frames"`
	Duration    float64           `json:"duration_seconds"`
	Zones       []ZoneRow         `json:"zones"`
	States      []string          `json:"states"`
	Transitions []TransitionRow   `json:"transitions"`
	Bins        []BinReport       `json:"bins,omitempty"`
	AnalyzedAt  time.Time         `json:"analyzed_at"`
}

// Zone looks up a zone row by id.
func (r TrialReport) Zone(id string) (ZoneRow, bool) {
	for _, z := range r.Zones {
		if z.Zone == id {
			return z, true
		}
	}
	return ZoneRow{}, false
}

// FrameMembership lists the zones a frame is inside. Valid is false for
// missing positions, in which case Inside is empty.
type FrameMembership struct {
	Frame  int      `json:"frame"`
	Valid  bool     `json:"valid"`
	Inside []string `json:"inside"`
}

// ZoneInfo describes a resolved zone.
type ZoneInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Shape     string     `json:"shape"`
	Bounds    [4]float64 `json:"bounds"` // x_min, y_min, x_max, y_max in physical units
	DependsOn []string   `json:"depends_on,omitempty"`
	Primary   bool       `json:"primary"`
}

// TrialSummary is the list view of a stored report.
type TrialSummary struct {
	TrialID     string    `json:"trial_id"`
	Subject     string    `json:"subject,omitempty"`
	Frames      int       `json:"frames"`
	ValidFrames int       `json:"valid_frames"`
	Duration    float64   `json:"duration_seconds"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
}

// Summary projects the report onto its list view.
func (r TrialReport) Summary() TrialSummary {
	return TrialSummary{
		TrialID:     r.TrialID,
		Subject:     r.Subject,
		Frames:      r.Frames,
		ValidFrames: r.ValidFrames,
		Duration:    r.Duration,
		AnalyzedAt:  r.AnalyzedAt,
	}
}

// Ack is the answer to an asynchronous trial submission.
type Ack struct {
	TrialID   string `json:"trial_id"`
	Duplicate bool   `json:"duplicate"`
}

// ArenaInfo describes the arena trials are analysed against. Units are the
// calibration units, or px for an uncalibrated arena.
type ArenaInfo struct {
	Name    string     `json:"name"`
	Units   string     `json:"units"`
	Primary []string   `json:"primary_zones"`
	Zones   []ZoneInfo `json:"zones"`
}
