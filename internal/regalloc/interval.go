// Copyright (c) 2024 The ccgo Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package regalloc

import (
	"math"

	"ccgo/internal/ir"
	"ccgo/internal/util"
)

// Interval is spec.md §4.5's live range: a single [from,to] span per VReg
// (unlike the teacher's lsra.go, which tracks a list of sub-ranges for
// full interval splitting — this allocator never splits, so one span per
// VReg is exact).
type Interval struct {
	VReg     *ir.VReg
	From, To int

	// Uses lists every position that reads this VReg; nextUseAfter scans
	// it to feed the "spill the range whose next use is farthest"
	// tie-break (spec.md §4.5).
	Uses []int
}

func (iv *Interval) nextUseAfter(pos int) int {
	best := math.MaxInt
	for _, u := range iv.Uses {
		if u >= pos && u < best {
			best = u
		}
	}
	return best
}

// buildIntervals computes one Interval per VReg referenced in c, using the
// liveness already computed by computeLiveness plus each op's own
// def/use positions (spec.md §4.5 step 1: "Assign each VReg a live range
// [first-def, last-use] ..., merging ranges across jumps by labeling each
// block's live-in and live-out sets").
func buildIntervals(c *ir.BBContainer, l *linear, nVRegs int) []*Interval {
	ivs := make([]*Interval, nVRegs)
	get := func(v *ir.VReg) *Interval {
		iv := ivs[v.ID]
		if iv == nil {
			iv = &Interval{VReg: v, From: math.MaxInt, To: -1}
			ivs[v.ID] = iv
		}
		return iv
	}
	touch := func(v *ir.VReg, pos int) {
		iv := get(v)
		if pos < iv.From {
			iv.From = pos
		}
		if pos > iv.To {
			iv.To = pos
		}
	}

	for _, p := range c.Params {
		touch(p, 0)
	}
	if c.HiddenRetReg != nil {
		touch(c.HiddenRetReg, 0)
	}

	for pos, op := range l.ops {
		if op.Dst != nil {
			touch(op.Dst, pos)
		}
		forEachUse(op, func(v *ir.VReg) {
			touch(v, pos)
			get(v).Uses = append(get(v).Uses, pos)
		})
	}

	for _, b := range l.order {
		if len(b.Ops) == 0 {
			continue
		}
		start, end := l.blockStart[b], l.blockEnd[b]
		in, out := b.LiveIn.(*util.BitMap), b.LiveOut.(*util.BitMap)
		in.Each(func(id int) {
			if ivs[id] != nil && start < ivs[id].From {
				ivs[id].From = start
			}
		})
		out.Each(func(id int) {
			if ivs[id] != nil && end > ivs[id].To {
				ivs[id].To = end
			}
		})
	}

	result := make([]*Interval, 0, nVRegs)
	for _, iv := range ivs {
		if iv != nil && iv.To >= iv.From {
			result = append(result, iv)
		}
	}
	return result
}
