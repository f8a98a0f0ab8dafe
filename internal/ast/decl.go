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

// Decl is the closed Declaration interface (spec.md §3): "DEFUN or
// VARDECL".
type Decl interface {
	declNode()
}

type declBase struct{}

func (declBase) declNode() {}

// FuncDecl is DEFUN. Body is nil for a prototype-only declaration.
type FuncDecl struct {
	declBase
	Name       string
	Type       *typesys.Type // KFunc
	ParamNames []string
	Storage    Storage
	Scope      *Scope // the function's top scope (holds params + the hidden return-pointer name, if any)
	Body       *BlockStmt

	// HiddenRetName is the reserved name under which the hidden
	// aggregate-return pointer parameter lives in Scope, set only when
	// Type.Of is a struct/union returned by value (spec.md §4.4).
	HiddenRetName string
}

// VarDecl is VARDECL: a single declared variable, global or local. The
// declared VarInfo is Var; Init (if any) is normalized to a dense
// positional IK_MULTI by sema before the IR builder ever sees it.
type VarDecl struct {
	declBase
	Var  *VarInfo
	Init Initializer
}

// Root is the whole translation unit: the ordered top-level declarations,
// exactly as spec.md §5 requires program order to be preserved through to
// emission ("block emission preserves declaration order").
type Root struct {
	Source string
	Decls  []Decl
}
