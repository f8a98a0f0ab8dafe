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

import "fmt"

const PtrSize = 8 // LP64: x86-64 and AArch64 both use 64-bit pointers

// Sizeof implements type_size (spec.md §4.2). A struct Type with a nil
// StructInfo cannot be sized; the caller surfaces that as a sema
// diagnostic (spec.md invariant: "a struct Type with info=null cannot be
// sized").
func Sizeof(t *Type) (int, error) {
	switch t.Kind {
	case KVoid:
		return 1, nil // gcc-compatible sizeof(void) extension is NOT assumed; callers reject this case earlier
	case KFixnum:
		return t.Fixnum.Size(), nil
	case KFlonum:
		return t.Flonum.Size(), nil
	case KPtr:
		return PtrSize, nil
	case KArray:
		if t.ElemLen < 0 {
			return 0, fmt.Errorf("sizeof applied to array of unknown size")
		}
		elemSize, err := Sizeof(t.Of)
		if err != nil {
			return 0, err
		}
		return elemSize * t.ElemLen, nil
	case KStruct:
		if t.Struct == nil || !t.Struct.sized {
			return 0, fmt.Errorf("sizeof applied to incomplete type '%s'", t)
		}
		return t.Struct.Size, nil
	case KFunc:
		return 0, fmt.Errorf("sizeof applied to function type")
	default:
		panic("unreachable type kind")
	}
}

// Alignof implements align_size (spec.md §4.2).
func Alignof(t *Type) (int, error) {
	switch t.Kind {
	case KArray:
		return Alignof(t.Of)
	case KStruct:
		if t.Struct == nil || !t.Struct.sized {
			return 0, fmt.Errorf("alignof applied to incomplete type '%s'", t)
		}
		return t.Struct.Align, nil
	default:
		return Sizeof(t)
	}
}

// FinishStruct computes member offsets, total size, and alignment for a
// StructInfo being completed (spec.md §4.6 initializer emission and §8.3
// rely on this layout). Members must already carry Name/Type; Offset is
// filled in here. For a union every member starts at offset 0 and the
// size is the widest member, rounded up to its alignment.
func FinishStruct(si *StructInfo) error {
	align := 1
	if si.IsUnion {
		size := 0
		for i := range si.Members {
			m := &si.Members[i]
			msz, err := Sizeof(m.Type)
			if err != nil {
				return err
			}
			malign, err := Alignof(m.Type)
			if err != nil {
				return err
			}
			m.Offset = 0
			if msz > size {
				size = msz
			}
			if malign > align {
				align = malign
			}
		}
		si.Size = alignUp(size, align)
		si.Align = align
		si.sized = true
		return nil
	}

	offset := 0
	for i := range si.Members {
		m := &si.Members[i]
		msz, err := Sizeof(m.Type)
		if err != nil {
			return err
		}
		malign, err := Alignof(m.Type)
		if err != nil {
			return err
		}
		offset = alignUp(offset, malign)
		m.Offset = offset
		offset += msz
		if malign > align {
			align = malign
		}
	}
	si.Size = alignUp(offset, align)
	si.Align = align
	si.sized = true
	return nil
}

func alignUp(n, to int) int {
	if to <= 1 {
		return n
	}
	return (n + to - 1) &^ (to - 1)
}
