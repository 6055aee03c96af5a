// Package repository stores analyzed trial reports.
package repository

import (
	"context"

	"github.com/okian/zonetrack/internal/domain/types"
)

// Store provides read/write access to trial reports.
type Store interface {
	// Save inserts or replaces the report for r.TrialID.
	Save(ctx context.Context, r types.TrialReport) error

	// Get returns the report for a trial. Returns ErrNotFound if unknown.
	Get(ctx context.Context, trialID string) (types.TrialReport, error)

	// List returns up to limit summaries, most recently analyzed first.
	// Returns ErrInvalidLimit for limit < 1.
	List(ctx context.Context, limit int) ([]types.TrialSummary, error)

	// Count returns the number of stored reports.
	Count(ctx context.Context) (int, error)

	Close() error
}
