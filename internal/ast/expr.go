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

import (
	"fmt"

	"ccgo/internal/typesys"
)

// Expr is the closed Expr node interface (spec.md §3). Every concrete
// expression embeds ExprBase, so GetType/SetType and the exhaustiveness
// switch in the IR builder only needs to type-switch on the concrete
// pointer type.
type Expr interface {
	GetType() *typesys.Type
	SetType(*typesys.Type)
	String() string
}

// ExprBase carries the single invariant spec.md §3 requires of every
// Expr: "Every Expr has a non-null Type."
type ExprBase struct {
	Type *typesys.Type
}

func (e *ExprBase) GetType() *typesys.Type     { return e.Type }
func (e *ExprBase) SetType(t *typesys.Type)    { e.Type = t }

// UnaryOp enumerates spec.md §3's unary Expr kinds.
type UnaryOp int

const (
	UNeg UnaryOp = iota
	ULogNot
	UBitNot
	URef    // &x
	UDeref  // *x
	UPreInc
	UPreDec
	UPostInc
	UPostDec
)

type UnaryExpr struct {
	ExprBase
	Op      UnaryOp
	Operand Expr
}

func (u *UnaryExpr) String() string { return fmt.Sprintf("Unary(%d)", u.Op) }

// CastExpr is always explicit at this layer: both sema-inserted implicit
// conversions and source-level `(T)expr` casts lower to the same node, per
// spec.md §4.2 ("producing explicit CAST nodes whenever a conversion is
// introduced").
type CastExpr struct {
	ExprBase
	Operand  Expr
	Implicit bool // true when sema inserted this cast, not the source
}

func (c *CastExpr) String() string { return fmt.Sprintf("Cast(%s)", c.Type) }

// BinOp enumerates spec.md §3's binary arithmetic/logical/comparison set.
type BinOp int

const (
	BAdd BinOp = iota
	BSub
	BMul
	BDiv
	BMod
	BAnd
	BOr
	BXor
	BShl
	BShr
	BLogAnd
	BLogOr
	BEq
	BNe
	BLt
	BLe
	BGt
	BGe
	// BPtrAdd/BPtrDiff are the pointer-arithmetic rewrites spec.md §4.3
	// step 5 performs: `ptr + int` -> PTRADD scaled by pointee size,
	// `ptr - ptr` -> PTRDIFF divided by pointee size. The scale factor
	// itself is applied by the IR builder (spec.md §4.4), not here.
	BPtrAdd
	BPtrDiff
)

type BinaryExpr struct {
	ExprBase
	Op          BinOp
	Left, Right Expr
	ElemSize    int // PTRADD/PTRDIFF: pointee size used to scale at IR-build time
}

func (b *BinaryExpr) String() string { return fmt.Sprintf("Binary(%d)", b.Op) }

// AssignOp covers plain `=` and every compound assignment operator,
// including the bitwise compound forms SPEC_FULL.md §4 calls out.
type AssignOp int

const (
	AAssign AssignOp = iota
	AAddAssign
	ASubAssign
	AMulAssign
	ADivAssign
	AModAssign
	AAndAssign
	AOrAssign
	AXorAssign
	AShlAssign
	AShrAssign
)

type AssignExpr struct {
	ExprBase
	Op          AssignOp
	Left, Right Expr
}

func (a *AssignExpr) String() string { return fmt.Sprintf("Assign(%d)", a.Op) }

type CommaExpr struct {
	ExprBase
	Left, Right Expr
}

func (c *CommaExpr) String() string { return "Comma" }

type TernaryExpr struct {
	ExprBase
	Cond, Then, Else Expr
}

func (t *TernaryExpr) String() string { return "Ternary" }

// MemberExpr is struct/union member access. Index is resolved by sema
// against the aggregate's StructInfo (spec.md §3: "MEMBER with resolved
// index"); Arrow distinguishes `.`'s implicit deref via `->`.
type MemberExpr struct {
	ExprBase
	Base  Expr
	Name  string
	Index int
	Arrow bool
}

func (m *MemberExpr) String() string { return fmt.Sprintf("Member(.%s)", m.Name) }

type IndexExpr struct {
	ExprBase
	Base, Index Expr
}

func (i *IndexExpr) String() string { return "Index" }

type CallExpr struct {
	ExprBase
	Callee Expr
	Args   []Expr
	// HiddenRet is set by sema when the callee returns an aggregate by
	// value (spec.md §4.4: "return of an aggregate uses a hidden first
	// pointer argument allocated by the caller").
	HiddenRet bool
}

func (c *CallExpr) String() string { return "Call" }

// VarExpr references a name already resolved to its VarInfo and the scope
// it was found in (spec.md §3: "VAR with scope back-pointer").
type VarExpr struct {
	ExprBase
	Name  string
	Var   *VarInfo
	Scope *Scope
}

func (v *VarExpr) String() string { return fmt.Sprintf("Var(%s)", v.Name) }

// Literal expressions.

type IntLit struct {
	ExprBase
	Value int64
}

func (i *IntLit) String() string { return fmt.Sprintf("Int(%d)", i.Value) }

type FloatLit struct {
	ExprBase
	Value float64
}

func (f *FloatLit) String() string { return fmt.Sprintf("Float(%g)", f.Value) }

// StrLit is a string literal; Label is filled in by the IR builder/emitter
// once the literal is assigned a .rodata symbol.
type StrLit struct {
	ExprBase
	Value []byte
	Label string
}

func (s *StrLit) String() string { return fmt.Sprintf("Str(%q)", s.Value) }

// SizeofExpr supports both sizeof(expr) and sizeof(type-name); exactly one
// of OperandExpr/OperandType is set (SPEC_FULL.md §4: sizeof
// disambiguation). The parser does not construct this node:
// parseSizeof folds both forms straight to an IntLit.
type SizeofExpr struct {
	ExprBase
	OperandExpr Expr
	OperandType *typesys.Type
}

func (s *SizeofExpr) String() string { return "Sizeof" }
