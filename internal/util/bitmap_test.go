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

package util

import "testing"

func TestSetResetIsSet(t *testing.T) {
	bm := NewBitMap(20)
	if bm.Size() != 20 {
		t.Fatalf("Size() = %d, want 20", bm.Size())
	}
	for _, i := range []int{0, 7, 8, 19} {
		if bm.IsSet(i) {
			t.Errorf("bit %d should start clear", i)
		}
		bm.Set(i)
		if !bm.IsSet(i) {
			t.Errorf("bit %d should be set after Set", i)
		}
	}
	bm.Reset(8)
	if bm.IsSet(8) {
		t.Error("bit 8 should be clear after Reset")
	}
	if !bm.IsSet(7) || !bm.IsSet(19) {
		t.Error("Reset(8) should not disturb other bits")
	}
}

func TestUniteUnionsAndReportsChange(t *testing.T) {
	a := NewBitMap(16)
	b := NewBitMap(16)
	a.Set(1)
	b.Set(2)

	changed := a.Unite(b)
	if !changed {
		t.Error("Unite should report a change when new bits are merged in")
	}
	if !a.IsSet(1) || !a.IsSet(2) {
		t.Error("Unite should be the bitwise OR of both maps")
	}

	if a.Unite(b) {
		t.Error("a second identical Unite should report no change")
	}
}

func TestSetFromOverwritesAndReportsChange(t *testing.T) {
	a := NewBitMap(8)
	b := NewBitMap(8)
	a.Set(0)
	b.Set(5)

	if !a.SetFrom(b) {
		t.Error("SetFrom should report a change")
	}
	if a.IsSet(0) {
		t.Error("SetFrom should overwrite, not merge")
	}
	if !a.IsSet(5) {
		t.Error("SetFrom should copy b's bits")
	}
	if a.SetFrom(b) {
		t.Error("SetFrom from an identical map should report no change")
	}
}

func TestRemoveClearsBitsPresentInOther(t *testing.T) {
	a := NewBitMap(8)
	b := NewBitMap(8)
	a.Set(1)
	a.Set(2)
	b.Set(2)

	if !a.Remove(b) {
		t.Error("Remove should report a change")
	}
	if a.IsSet(2) {
		t.Error("Remove should clear bits present in the other map")
	}
	if !a.IsSet(1) {
		t.Error("Remove should not disturb bits absent from the other map")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	a := NewBitMap(8)
	a.Set(3)
	b := a.Copy()
	b.Set(4)
	if a.IsSet(4) {
		t.Error("mutating the copy should not affect the original")
	}
	if !b.IsSet(3) {
		t.Error("Copy should preserve the source's bits")
	}
}

func TestEachVisitsSetBitsAscending(t *testing.T) {
	bm := NewBitMap(10)
	for _, i := range []int{7, 2, 9} {
		bm.Set(i)
	}
	var got []int
	bm.Each(func(i int) { got = append(got, i) })
	want := []int{2, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("Each visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Each order[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
