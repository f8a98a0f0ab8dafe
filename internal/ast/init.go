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

// Initializer is spec.md §3's recursive Initializer variant. IK_DOT and
// IK_ARR (designated initializers) are only produced by the parser;
// the parser/sema pass's normalizeInit (internal/parse) resolves them against the
// declared aggregate's layout and rewrites the whole tree into a dense
// positional IK_MULTI before the IR builder ever sees it (spec.md §4.3).
type Initializer interface {
	initNode()
}

type initBase struct{}

func (initBase) initNode() {}

// SingleInit is IK_SINGLE(Expr): a scalar initializer, or (specially
// handled at emission, spec.md §4.3) a string literal initializing a
// char[].
type SingleInit struct {
	initBase
	X Expr
}

// MultiInit is IK_MULTI(Vec<Initializer>): one positional entry per
// member/element, dense after normalization.
type MultiInit struct {
	initBase
	Elems []Initializer
}

// DotInit is a designated struct/union-member initializer IK_DOT(name,
// sub), resolved away by normalizeInit.
type DotInit struct {
	initBase
	Member string
	Sub    Initializer
}

// ArrInit is a designated array-element initializer IK_ARR(index, sub),
// resolved away by normalizeInit. Index must be a constant expression
// (spec.md §4.3: "Constant expressions required by ... array bounds").
type ArrInit struct {
	initBase
	Index int
	Sub   Initializer
}
