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

// Package ast holds spec.md §3's data model above the type system: the
// interned Name, Scope, VarInfo, and the Expr/Stmt/Declaration/Initializer
// node variants produced by the parser (internal/parse) and consumed by
// the IR builder (internal/ir).
package ast

// Name is an interned identifier: equal spellings always yield the same
// *Name, so identity comparison (==) is spec.md §3's "equality by interned
// identity". One Interner per translation unit (spec.md §5: discarded once
// parsing completes).
type Name struct {
	Str string
}

type Interner struct {
	pool map[string]*Name
}

func NewInterner() *Interner {
	return &Interner{pool: make(map[string]*Name)}
}

func (in *Interner) Intern(s string) *Name {
	if n, ok := in.pool[s]; ok {
		return n
	}
	n := &Name{Str: s}
	in.pool[s] = n
	return n
}

func (n *Name) String() string { return n.Str }
