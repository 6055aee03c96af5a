package synth

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PollInterval         = 250 * time.Millisecond
	MaxSubmitAttempts    = 5
	RetryBackoff         = 100 * time.Millisecond
	PercentageMultiplier = 100
	percentTolerance     = 1e-6
)
