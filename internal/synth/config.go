// Package synth generates synthetic tracked trials and drives a running
// service with them: submit, wait for the reports, check them.
package synth

import "time"

// Config holds configuration for a synthetic run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumTrials  int           // Number of trials to generate
	Frames     int           // Frames per trial
	FrameRate  float64       // Frames per second
	Width      float64       // Arena floor width in pixels
	Height     float64       // Arena floor height in pixels
	Step       float64       // Mean per-frame displacement in pixels
	DropRate   float64       // Fraction of frames without a detection
	Seed       uint64        // Random seed; equal seeds give equal trials
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Wait       time.Duration // How long to wait for reports
	OutputFile string        // Optional JSON dump of the generated trials
	Verbose    bool          // Enable verbose logging
}

// Sample is one frame in the wire format of POST /trials.
type Sample struct {
	Frame      int      `json:"frame"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Likelihood float64  `json:"likelihood"`
}

// Trial is the body of POST /trials.
type Trial struct {
	TrialID   string            `json:"trial_id"`
	Subject   string            `json:"subject"`
	FrameRate float64           `json:"frame_rate"`
	Labels    map[string]string `json:"labels,omitempty"`
	Samples   []Sample          `json:"samples"`
}

// AckResponse represents the response from trial submission.
type AckResponse struct {
	Status    string `json:"status"`
	TrialID   string `json:"trial_id"`
	Duplicate bool   `json:"duplicate"`
}

// ZoneRow is the part of a zone report the checks read.
type ZoneRow struct {
	Zone         string  `json:"zone"`
	InsideFrames int     `json:"inside_frames"`
	ValidFrames  int     `json:"valid_frames"`
	Percent      float64 `json:"percent"`
	Entries      int     `json:"entries"`
	Exits        int     `json:"exits"`
}

// Report is the part of a trial report the checks read.
type Report struct {
	TrialID     string    `json:"trial_id"`
	Frames      int       `json:"frames"`
	ValidFrames int       `json:"valid_frames"`
	Zones       []ZoneRow `json:"zones"`
}

// Arena is the part of GET /arena the checks read.
type Arena struct {
	Name    string   `json:"name"`
	Primary []string `json:"primary_zones"`
}

// Stats holds run statistics.
type Stats struct {
	TrialsGenerated  int
	TrialsSubmitted  int
	TrialsAccepted   int
	TrialsDuplicate  int
	TrialsFailed     int
	Retries          int
	ReportsRetrieved int
	ReportsInvalid   int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
