package occupancy

import (
	"github.com/okian/zonetrack/internal/domain/arena"
	"github.com/okian/zonetrack/internal/domain/classify"
	"github.com/okian/zonetrack/internal/domain/types"
)

// Matrix counts state changes. States are the primary zones in order, then
// outside, then undefined.
type Matrix struct {
	States []string
	Counts [][]int
}

func newMatrix(primary []string) Matrix {
	states := append(append([]string(nil), primary...), arena.StateOutside, arena.StateUndefined)
	counts := make([][]int, len(states))
	for i := range counts {
		counts[i] = make([]int, len(states))
	}
	return Matrix{States: states, Counts: counts}
}

func (m Matrix) index(state string) int {
	for i, s := range m.States {
		if s == state {
			return i
		}
	}
	return -1
}

// Count returns the number of from -> to changes.
func (m Matrix) Count(from, to string) int {
	i, j := m.index(from), m.index(to)
	if i < 0 || j < 0 {
		return 0
	}
	return m.Counts[i][j]
}

// Total is the number of state changes.
func (m Matrix) Total() int {
	n := 0
	for _, r := range m.Counts {
		for _, c := range r {
			n += c
		}
	}
	return n
}

// Rows returns the non-zero cells in state order.
func (m Matrix) Rows() []types.TransitionRow {
	out := []types.TransitionRow{}
	for i, r := range m.Counts {
		for j, c := range r {
			if c > 0 {
				out = append(out, types.TransitionRow{From: m.States[i], To: m.States[j], Count: c})
			}
		}
	}
	return out
}

// transitions builds the matrix from the per-frame dominant state. A frame
// belongs to the first primary zone containing it, else outside, or
// undefined when the position is missing. Zone runs shorter than k frames are
// folded into the preceding state; the opening run and non-zone runs always
// stand. A gap of missing data between two frames in the same zone counts as
// zone -> undefined -> zone.
func transitions(t *classify.Table, primary []string, frames []int, k int) Matrix {
	m := newMatrix(primary)
	outside, undefined := len(primary), len(primary)+1

	state := make([]int, t.Len())
	for i := range state {
		state[i] = outside
		if !t.Valid(i) {
			state[i] = undefined
			continue
		}
		for p, id := range primary {
			if t.At(id, i) == classify.Inside {
				state[i] = p
				break
			}
		}
	}

	type run struct {
		state int
		span
	}
	var runs []run
	for i, s := range state {
		if len(runs) > 0 && runs[len(runs)-1].state == s {
			runs[len(runs)-1].end = i + 1
			continue
		}
		runs = append(runs, run{state: s, span: span{i, i + 1}})
	}

	var kept []run
	for j, r := range runs {
		if j > 0 && r.state < outside && frameLen(r.span, frames) < k {
			continue
		}
		if n := len(kept); n > 0 && kept[n-1].state == r.state {
			kept[n-1].end = r.end
			continue
		}
		kept = append(kept, r)
	}
	for j := 1; j < len(kept); j++ {
		m.Counts[kept[j-1].state][kept[j].state]++
	}
	return m
}
