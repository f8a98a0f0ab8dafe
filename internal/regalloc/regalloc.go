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

// Package regalloc implements spec.md §4.5: linear-scan register
// allocation over the linearized IR, assigning every VReg either a
// physical register or a spill slot and sizing the function's frame.
package regalloc

import (
	"sort"

	"ccgo/internal/ir"
	"ccgo/internal/target"
	"ccgo/internal/util"
)

// classState tracks one register class's (integer or float) free-register
// pool and the currently active intervals, sorted by end position.
type classState struct {
	free   []int // free physical register indices, arbitrary order
	active []*Interval
}

func (cs *classState) popFree(tgt *target.Target, preferCalleeSaved bool, class int) (int, bool) {
	if len(cs.free) == 0 {
		return 0, false
	}
	if preferCalleeSaved {
		for i, r := range cs.free {
			if tgt.IsCalleeSaved(class, r) {
				cs.free = append(cs.free[:i], cs.free[i+1:]...)
				return r, true
			}
		}
	}
	r := cs.free[0]
	cs.free = cs.free[1:]
	return r, true
}

func (cs *classState) insertActive(iv *Interval) {
	i := sort.Search(len(cs.active), func(i int) bool { return cs.active[i].To >= iv.To })
	cs.active = append(cs.active, nil)
	copy(cs.active[i+1:], cs.active[i:])
	cs.active[i] = iv
}

// Allocate runs linear-scan register allocation over c for the given
// target ABI, filling in every referenced VReg's Spilled/PhysReg/
// FrameOffset fields and c.FrameSize/c.UsedCalleeSaved (spec.md §4.5).
func Allocate(c *ir.BBContainer, tgt *target.Target) {
	n := c.Regs.Count()
	if n == 0 {
		c.FrameSize = util.Align16(c.FrameSize)
		return
	}
	computeLiveness(c, n)
	lin := linearize(c)
	intervals := buildIntervals(c, lin, n)

	sort.SliceStable(intervals, func(i, j int) bool {
		if intervals[i].From != intervals[j].From {
			return intervals[i].From < intervals[j].From
		}
		// Tie-break (spec.md §4.5): among equal-start ranges, the
		// longer range is considered first so it gets first pick at a
		// callee-save register.
		return (intervals[i].To - intervals[i].From) > (intervals[j].To - intervals[j].From)
	})

	classes := [2]*classState{
		{free: seq(tgt.IntRegs)},
		{free: seq(tgt.FloatRegs)},
	}

	slotCursor := -c.FrameSize
	freeSlots := map[int][]int{} // width -> free frame offsets
	spilled := []*Interval{}     // spilled-but-still-live, for slot reuse on expiry

	usedCalleeSaved := [2]map[int]bool{{}, {}}

	allocSlot := func(width int) int {
		if list := freeSlots[width]; len(list) > 0 {
			off := list[len(list)-1]
			freeSlots[width] = list[:len(list)-1]
			return off
		}
		slotCursor -= width
		slotCursor = -util.Align(-slotCursor, width)
		return slotCursor
	}

	expireOld := func(pos int) {
		for ci, cs := range classes {
			i := 0
			for i < len(cs.active) {
				a := cs.active[i]
				if a.To < pos {
					cs.free = append(cs.free, a.VReg.PhysReg)
					cs.active = append(cs.active[:i], cs.active[i+1:]...)
				} else {
					i++
				}
			}
			_ = ci
		}
		i := 0
		for i < len(spilled) {
			s := spilled[i]
			if s.To < pos {
				freeSlots[s.VReg.Width] = append(freeSlots[s.VReg.Width], s.VReg.FrameOffset)
				spilled = append(spilled[:i], spilled[i+1:]...)
			} else {
				i++
			}
		}
	}

	spillInterval := func(iv *Interval) {
		iv.VReg.Spilled = true
		iv.VReg.FrameOffset = allocSlot(iv.VReg.Width)
		spilled = append(spilled, iv)
	}

	for _, cur := range intervals {
		expireOld(cur.From)
		class := cur.VReg.Class()
		cs := classes[class]

		if r, ok := cs.popFree(tgt, true, class); ok {
			cur.VReg.PhysReg = r
			cs.insertActive(cur)
			if tgt.IsCalleeSaved(class, r) {
				usedCalleeSaved[class][r] = true
			}
			continue
		}

		// No free register: evict whichever of {cur} ∪ active(class) has
		// the farthest next use from cur.From (spec.md §4.5: "Spill
		// target: the range whose next use is farthest").
		worst := cur
		worstUse := cur.nextUseAfter(cur.From)
		worstIdx := -1
		for i, a := range cs.active {
			u := a.nextUseAfter(cur.From)
			if u > worstUse {
				worst, worstUse, worstIdx = a, u, i
			}
		}

		if worst == cur {
			spillInterval(cur)
			continue
		}

		// Evict `worst`, hand its register to `cur`.
		reg := worst.VReg.PhysReg
		cs.active = append(cs.active[:worstIdx], cs.active[worstIdx+1:]...)
		spillInterval(worst)
		cur.VReg.PhysReg = reg
		cs.insertActive(cur)
		if tgt.IsCalleeSaved(class, reg) {
			usedCalleeSaved[class][reg] = true
		}
	}

	for class := 0; class < 2; class++ {
		for r := range usedCalleeSaved[class] {
			c.UsedCalleeSaved[class] = append(c.UsedCalleeSaved[class], r)
		}
		sort.Ints(c.UsedCalleeSaved[class])
	}

	c.FrameSize = util.Align16(-slotCursor)
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}
