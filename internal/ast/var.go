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

package ast

import "ccgo/internal/typesys"

// Storage is the declaration-record storage bitset spec.md §3 lists for
// VarInfo: EXTERN, STATIC, TYPEDEF, ENUM_MEMBER, PARAM.
type Storage uint8

const (
	StorageNone       Storage = 0
	StorageExtern     Storage = 1 << 0
	StorageStatic     Storage = 1 << 1
	StorageTypedef    Storage = 1 << 2
	StorageEnumMember Storage = 1 << 3
	StorageParam      Storage = 1 << 4
)

func (s Storage) Has(bit Storage) bool { return s&bit != 0 }

// Variant selects which of VarInfo's payload fields is meaningful,
// standing in for the tagged union spec.md §3 describes ("variant
// payload: global / local / static-local").
type Variant int

const (
	VarGlobal Variant = iota
	VarLocal
	VarStaticLocal
)

// FrameLoc is the "local: assigned frame-register descriptor" payload: a
// stack-relative byte offset from the frame base, filled in by the IR
// builder/register allocator, never by the parser.
type FrameLoc struct {
	Offset int // byte offset from frame base (negative, growing down)
}

// VarInfo is spec.md §3's declaration record.
type VarInfo struct {
	Name    string
	Type    *typesys.Type
	Storage Storage
	Variant Variant

	// Global payload: the initializer expression, or nil for a tentative
	// (.bss / .comm) definition.
	GlobalInit Initializer

	// Local payload, valid when Variant == VarLocal.
	Frame FrameLoc

	// StaticLocal payload, valid when Variant == VarStaticLocal: back
	// reference to the synthesized global this function-scope `static`
	// variable was materialized as (spec.md §3 invariant: "synthesized
	// name is fresh").
	StaticGlobal *VarInfo
}
