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

package typesys

import "testing"

func TestSizeofScalars(t *testing.T) {
	cases := []struct {
		ty   *Type
		want int
	}{
		{TChar, 1}, {TUChar, 1},
		{TShort, 2}, {TUShort, 2},
		{TInt, 4}, {TUInt, 4},
		{TLong, 8}, {TULong, 8},
		{TLLong, 8}, {TULLong, 8},
		{TFloat, 4}, {TDouble, 8},
		{TVoidPtr, 8},
	}
	for _, c := range cases {
		got, err := Sizeof(c.ty)
		if err != nil {
			t.Fatalf("Sizeof(%s): %v", c.ty, err)
		}
		if got != c.want {
			t.Errorf("Sizeof(%s) = %d, want %d", c.ty, got, c.want)
		}
	}
}

func TestSizeofArray(t *testing.T) {
	arr := ArrayOf(TInt, 10)
	got, err := Sizeof(arr)
	if err != nil {
		t.Fatal(err)
	}
	if got != 40 {
		t.Errorf("Sizeof(int[10]) = %d, want 40", got)
	}
}

func TestSizeofUnspecifiedArrayIsAnError(t *testing.T) {
	arr := ArrayOf(TInt, -1)
	if _, err := Sizeof(arr); err == nil {
		t.Fatal("expected an error sizing an array of unspecified length")
	}
}

func TestSizeofIncompleteStructIsAnError(t *testing.T) {
	st := NewStructType("incomplete", false)
	if _, err := Sizeof(st); err == nil {
		t.Fatal("expected an error sizing an incomplete struct")
	}
}

// FinishStruct lays out a struct the way spec.md §4.2 requires: each
// member aligned to its own alignment, trailing padding up to the
// struct's own (widest-member) alignment.
func TestFinishStructPadsForAlignment(t *testing.T) {
	st := NewStructType("s", false)
	st.Struct.Members = []Member{
		{Name: "a", Type: TChar},
		{Name: "b", Type: TInt},
		{Name: "c", Type: TChar},
	}
	if err := FinishStruct(st.Struct); err != nil {
		t.Fatal(err)
	}
	want := []int{0, 4, 8}
	for i, m := range st.Struct.Members {
		if m.Offset != want[i] {
			t.Errorf("member %d offset = %d, want %d", i, m.Offset, want[i])
		}
	}
	if st.Struct.Align != 4 {
		t.Errorf("struct align = %d, want 4", st.Struct.Align)
	}
	if st.Struct.Size != 12 {
		t.Errorf("struct size = %d, want 12 (padded to alignment 4)", st.Struct.Size)
	}
}

func TestFinishUnionSizesToWidestMember(t *testing.T) {
	un := NewStructType("u", true)
	un.Struct.Members = []Member{
		{Name: "a", Type: TChar},
		{Name: "b", Type: TDouble},
	}
	if err := FinishStruct(un.Struct); err != nil {
		t.Fatal(err)
	}
	for _, m := range un.Struct.Members {
		if m.Offset != 0 {
			t.Errorf("union member %q offset = %d, want 0", m.Name, m.Offset)
		}
	}
	if un.Struct.Size != 8 {
		t.Errorf("union size = %d, want 8", un.Struct.Size)
	}
	if un.Struct.Align != 8 {
		t.Errorf("union align = %d, want 8", un.Struct.Align)
	}
}

func TestAlignofArrayIsElementAlignment(t *testing.T) {
	got, err := Alignof(ArrayOf(TDouble, 3))
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("Alignof(double[3]) = %d, want 8", got)
	}
}
