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

// CanCast implements can_cast (spec.md §4.2): integer<->integer always;
// integer<->pointer only when explicit; pointer<->pointer compatible when
// same pointee, either side is void*, or the rhs is a null-pointer
// constant (zero==true); array->pointer and function->function-pointer
// decay are handled by the caller (parser) before this is consulted, since
// by this point From has already decayed.
func CanCast(from, to *Type, zero bool, explicit bool) bool {
	from = from.Unqualified()
	to = to.Unqualified()

	if Same(from, to) {
		return true
	}

	switch {
	case from.IsArith() && to.IsArith():
		return true
	case from.IsPtr() && to.IsPtr():
		if zero {
			return true
		}
		if from.Of.Unqualified().IsVoid() || to.Of.Unqualified().IsVoid() {
			return true
		}
		return Same(from.Of.Unqualified(), to.Of.Unqualified())
	case from.IsPtr() && to.IsFixnum():
		return explicit
	case from.IsFixnum() && to.IsPtr():
		return explicit || zero
	case from.IsArray() && to.IsPtr():
		return Same(from.Of.Unqualified(), to.Of.Unqualified()) || to.Of.Unqualified().IsVoid()
	default:
		return false
	}
}

// UsualArith implements the usual arithmetic conversions: the wider rank
// wins, a float/double operand forces the other operand to that flonum
// kind, equal-rank integer conversions prefer unsigned (spec.md §4.3 step
// 3: "inserts implicit casts").
func UsualArith(a, b *Type) *Type {
	if a.IsFlonum() || b.IsFlonum() {
		if a.IsFlonum() && b.IsFlonum() {
			if a.Flonum >= b.Flonum {
				return a
			}
			return b
		}
		if a.IsFlonum() {
			return a
		}
		return b
	}
	pa, pb := promote(a), promote(b)
	if pa.Fixnum == pb.Fixnum {
		if pa.Usize || pb.Usize {
			if pa.Usize {
				return pa
			}
			return pb
		}
		return pa
	}
	if pa.Fixnum > pb.Fixnum {
		return pa
	}
	return pb
}

// promote implements integer promotion: anything narrower than int
// promotes to int (spec.md §4.2).
func promote(t *Type) *Type {
	if t.IsFixnum() && t.Fixnum < FInt {
		return TInt
	}
	return t
}
