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

package ir

import (
	"fmt"

	"ccgo/internal/ast"
)

// StringEntry is one interned string literal, ready for the emitter to
// render as a .rodata symbol (spec.md §4.6).
type StringEntry struct {
	Label string
	Value []byte
}

// StringTable interns every string literal a translation unit's functions
// and global initializers reference, handing each one a fresh .rodata
// symbol. One StringTable per translation unit, shared across every
// Builder so labels stay unique program-wide (spec.md §4.4/§4.6).
type StringTable struct {
	entries []*StringEntry
	next    int
}

func NewStringTable() *StringTable { return &StringTable{} }

func (t *StringTable) Entries() []*StringEntry { return t.entries }

// Label returns lit's .rodata symbol, assigning and interning a fresh one
// on first use. Literals are not deduplicated by content: each syntactic
// occurrence gets its own symbol, matching the "every StrLit node owns
// exactly one symbol" invariant the rest of the IR relies on.
func (t *StringTable) Label(lit *ast.StrLit) string {
	if lit.Label != "" {
		return lit.Label
	}
	lit.Label = fmt.Sprintf(".LC%d", t.next)
	t.next++
	t.entries = append(t.entries, &StringEntry{Label: lit.Label, Value: lit.Value})
	return lit.Label
}
