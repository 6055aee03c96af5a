package classify

import (
	"fmt"
	"slices"
)

// Table is the per-frame membership of every zone over one trial.
// Sequences are stored per zone so each zone can be reduced independently.
type Table struct {
	zones  []string
	index  map[string]int
	frames []int
	valid  []bool
	rows   [][]Membership
}

// NewTable builds a table from explicit membership sequences, one per zone,
// each as long as frames. A frame is valid when any zone is defined there.
func NewTable(zones []string, frames []int, seqs map[string][]Membership) (*Table, error) {
	t := &Table{
		zones:  slices.Clone(zones),
		index:  indexOf(zones),
		frames: slices.Clone(frames),
		valid:  make([]bool, len(frames)),
		rows:   make([][]Membership, len(zones)),
	}
	for i := 1; i < len(frames); i++ {
		if frames[i] <= frames[i-1] {
			return nil, fmt.Errorf("%w: frame %d follows %d", ErrFrameOrder, frames[i], frames[i-1])
		}
	}
	for z, id := range zones {
		seq, ok := seqs[id]
		if !ok {
			return nil, fmt.Errorf("%w: no sequence for %q", ErrUnknownZone, id)
		}
		if len(seq) != len(frames) {
			return nil, fmt.Errorf("%w: zone %q has %d frames, want %d", ErrLength, id, len(seq), len(frames))
		}
		t.rows[z] = slices.Clone(seq)
		for i, m := range seq {
			if m != Undefined {
				t.valid[i] = true
			}
		}
	}
	return t, nil
}

// Sequential returns frame indices 0..n-1.
func Sequential(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Zones returns the zone ids.
func (t *Table) Zones() []string { return slices.Clone(t.zones) }

// Len is the number of frames.
func (t *Table) Len() int { return len(t.frames) }

// Frame returns the frame index of row i.
func (t *Table) Frame(i int) int { return t.frames[i] }

// Frames returns all frame indices.
func (t *Table) Frames() []int { return slices.Clone(t.frames) }

// Valid reports whether row i had a position.
func (t *Table) Valid(i int) bool { return t.valid[i] }

// Has reports whether the table carries zone id.
func (t *Table) Has(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Sequence returns the membership sequence of one zone. The slice is shared;
// callers must not modify it.
func (t *Table) Sequence(id string) ([]Membership, bool) {
	z, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.rows[z], true
}

// At returns the membership of zone id at row i.
func (t *Table) At(id string, i int) Membership {
	z, ok := t.index[id]
	if !ok {
		return Undefined
	}
	return t.rows[z][i]
}

// InsideAt lists every zone containing the position at row i.
func (t *Table) InsideAt(i int) []string {
	var out []string
	for z, id := range t.zones {
		if t.rows[z][i] == Inside {
			out = append(out, id)
		}
	}
	return out
}

// Slice returns rows [from, to) as a new table sharing no state with t.
func (t *Table) Slice(from, to int) *Table {
	out := &Table{
		zones:  slices.Clone(t.zones),
		index:  indexOf(t.zones),
		frames: slices.Clone(t.frames[from:to]),
		valid:  slices.Clone(t.valid[from:to]),
		rows:   make([][]Membership, len(t.rows)),
	}
	for z, r := range t.rows {
		out.rows[z] = slices.Clone(r[from:to])
	}
	return out
}
