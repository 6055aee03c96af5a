package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func report(id string, at time.Time) types.TrialReport {
	return types.TrialReport{
		TrialID:     id,
		Subject:     "mouse-" + id,
		FrameRate:   25,
		Frames:      250,
		ValidFrames: 240,
		Duration:    10,
		Zones: []types.ZoneRow{
			{Zone: "center", Name: "Center", InsideFrames: 40, ValidFrames: 240, Entries: 2, Exits: 2, Latency: types.After(0.08)},
			{Zone: "corner", Name: "corner", ValidFrames: 240, Latency: types.Never()},
		},
		States:      []string{"center", "outside", "undefined"},
		Transitions: []types.TransitionRow{{From: "outside", To: "center", Count: 2}},
		AnalyzedAt:  at,
	}
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "reports.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func TestStore_SaveGet(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		if n, _ := s.Count(ctx); n != 0 {
			t.Fatalf("expected empty store, got %d", n)
		}
		if err := s.Save(ctx, report("t1", at)); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := s.Get(ctx, "t1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Subject != "mouse-t1" || got.Frames != 250 || len(got.Zones) != 2 {
			t.Errorf("unexpected report: %+v", got)
		}
		if !got.AnalyzedAt.Equal(at) {
			t.Errorf("analyzed_at = %v, want %v", got.AnalyzedAt, at)
		}
		center, _ := got.Zone("center")
		if l, ok := center.Latency.Seconds(); !ok || l != 0.08 {
			t.Errorf("center latency = %v", center.Latency)
		}
		corner, _ := got.Zone("corner")
		if !corner.Latency.IsNever() {
			t.Errorf("corner latency should stay never, got %v", corner.Latency)
		}

		if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_SaveReplaces(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		at := time.Now().UTC()

		_ = s.Save(ctx, report("t1", at))
		r := report("t1", at.Add(time.Second))
		r.Frames = 500
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}

		if n, _ := s.Count(ctx); n != 1 {
			t.Errorf("expected 1 report after replace, got %d", n)
		}
		got, _ := s.Get(ctx, "t1")
		if got.Frames != 500 {
			t.Errorf("expected replaced report, got frames=%d", got.Frames)
		}
	})
}

func TestStore_List(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			_ = s.Save(ctx, report(fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Minute)))
		}
		// same timestamp as t4 orders by id
		_ = s.Save(ctx, report("a4", base.Add(4*time.Minute)))

		got, err := s.List(ctx, 3)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []string{"a4", "t4", "t3"}
		if len(got) != len(want) {
			t.Fatalf("expected %d summaries, got %d", len(want), len(got))
		}
		for i, id := range want {
			if got[i].TrialID != id {
				t.Errorf("position %d: want %s, got %s", i, id, got[i].TrialID)
			}
		}
		if got[1].ValidFrames != 240 || got[1].Duration != 10 {
			t.Errorf("summary fields not carried: %+v", got[1])
		}

		if _, err := s.List(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("expected ErrInvalidLimit, got %v", err)
		}
		all, _ := s.List(ctx, 100)
		if len(all) != 6 {
			t.Errorf("expected 6 summaries, got %d", len(all))
		}
	})
}

func TestStore_ConcurrentSaves(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.Save(ctx, report(fmt.Sprintf("t%d", i), time.Now())); err != nil {
					t.Errorf("save %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()
		if n, _ := s.Count(ctx); n != 20 {
			t.Errorf("expected 20 reports, got %d", n)
		}
	})
}

func TestStore_Closed(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		_ = s.Close()
		if err := s.Save(context.Background(), report("t1", time.Now())); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reports.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.Save(ctx, report("kept", time.Now()))
	_ = s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if _, err := s.Get(ctx, "kept"); err != nil {
		t.Errorf("report lost across reopen: %v", err)
	}
	v, dirty, err := s.Version()
	if err != nil || dirty || v != 1 {
		t.Errorf("schema version = %d dirty=%v err=%v, want 1 clean", v, dirty, err)
	}
}
