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

// Package emit implements spec.md §4.6: the shared initializer lowering
// (construct_initial_value) plus the amd64 and arm64 GNU-assembler-syntax
// backends.
package emit

import (
	"fmt"
	"strconv"
	"strings"

	"ccgo/internal/ast"
	"ccgo/internal/diag"
	"ccgo/internal/typesys"
)

// constructInitialValue appends the directive lines realizing init at
// type t to buf, per spec.md §4.6: scalars as sized directives, arrays as
// the element sequence, strings as .ascii plus the implicit trailing
// NUL, structs honoring member offsets and trailing padding, unions as
// the first member plus padding to the union's size. Returns the number
// of bytes emitted, for the caller's own running offset bookkeeping.
func constructInitialValue(buf *strings.Builder, t *typesys.Type, init ast.Initializer) (int, error) {
	switch {
	case t.IsArray():
		return constructArray(buf, t, init)
	case t.IsStruct():
		return constructStruct(buf, t, init)
	default:
		return constructScalar(buf, t, init)
	}
}

func constructArray(buf *strings.Builder, t *typesys.Type, init ast.Initializer) (int, error) {
	if single, ok := init.(*ast.SingleInit); ok {
		if str, ok := single.X.(*ast.StrLit); ok {
			return emitString(buf, str, t.ElemLen)
		}
	}
	multi, ok := init.(*ast.MultiInit)
	if !ok {
		return 0, diag.New(diag.Emit, diag.Pos{}, "array initializer is not a MultiInit (%T)", init)
	}
	total := 0
	for _, e := range multi.Elems {
		n, err := constructInitialValue(buf, t.Of, e)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func constructStruct(buf *strings.Builder, t *typesys.Type, init ast.Initializer) (int, error) {
	if t.Struct == nil || !t.Struct.Sized() {
		return 0, diag.New(diag.Emit, diag.Pos{}, "incomplete struct %s reached emission", t)
	}
	multi, ok := init.(*ast.MultiInit)
	if !ok {
		return 0, diag.New(diag.Emit, diag.Pos{}, "struct initializer is not a MultiInit (%T)", init)
	}

	if t.Struct.IsUnion {
		cursor := 0
		if len(multi.Elems) == 1 && len(t.Struct.Members) > 0 {
			n, err := constructInitialValue(buf, t.Struct.Members[0].Type, multi.Elems[0])
			if err != nil {
				return 0, err
			}
			cursor = n
		}
		emitZero(buf, t.Struct.Size-cursor)
		return t.Struct.Size, nil
	}

	cursor := 0
	for i, m := range t.Struct.Members {
		if i >= len(multi.Elems) {
			break
		}
		if gap := m.Offset - cursor; gap > 0 {
			emitZero(buf, gap)
			cursor += gap
		}
		n, err := constructInitialValue(buf, m.Type, multi.Elems[i])
		if err != nil {
			return 0, err
		}
		cursor += n
	}
	if tail := t.Struct.Size - cursor; tail > 0 {
		emitZero(buf, tail)
		cursor += tail
	}
	return cursor, nil
}

func constructScalar(buf *strings.Builder, t *typesys.Type, init ast.Initializer) (int, error) {
	single, ok := init.(*ast.SingleInit)
	if !ok {
		return 0, diag.New(diag.Emit, diag.Pos{}, "scalar initializer is not a SingleInit (%T)", init)
	}
	width, err := typesys.Sizeof(t)
	if err != nil {
		return 0, err
	}

	switch x := single.X.(type) {
	case *ast.IntLit:
		buf.WriteString(intDirective(width, fmt.Sprintf("%d", x.Value)))
		return width, nil
	case *ast.FloatLit:
		buf.WriteString(floatDirective(t, x.Value))
		return width, nil
	case *ast.StrLit:
		// A bare (non-array) pointer initialized from a string literal:
		// the pointer itself is the .rodata symbol's address.
		buf.WriteString(intDirective(width, x.Label))
		return width, nil
	default:
		label, offset, ok := evalAddrConst(single.X)
		if !ok {
			return 0, diag.New(diag.Emit, diag.Pos{}, "non-constant global initializer %T", single.X)
		}
		sym := label
		if offset > 0 {
			sym = fmt.Sprintf("%s+%d", label, offset)
		} else if offset < 0 {
			sym = fmt.Sprintf("%s%d", label, offset)
		}
		buf.WriteString(intDirective(width, sym))
		return width, nil
	}
}

func emitString(buf *strings.Builder, str *ast.StrLit, declaredLen int) (int, error) {
	buf.WriteString("\t.ascii \"")
	buf.WriteString(escapeAscii(str.Value))
	buf.WriteString("\"\n")
	buf.WriteString("\t.byte 0\n") // the implicit trailing NUL (Type.ElemLen == len(Value)+1)
	n := len(str.Value) + 1
	if declaredLen > n {
		emitZero(buf, declaredLen-n)
		n = declaredLen
	}
	return n, nil
}

func emitZero(buf *strings.Builder, n int) {
	if n > 0 {
		fmt.Fprintf(buf, "\t.zero %d\n", n)
	}
}

func intDirective(width int, operand string) string {
	switch width {
	case 1:
		return fmt.Sprintf("\t.byte %s\n", operand)
	case 2:
		return fmt.Sprintf("\t.word %s\n", operand)
	case 4:
		return fmt.Sprintf("\t.long %s\n", operand)
	default:
		return fmt.Sprintf("\t.quad %s\n", operand)
	}
}

func floatDirective(t *typesys.Type, v float64) string {
	if t.Flonum == typesys.FFloat {
		return fmt.Sprintf("\t.float %s\n", strconv.FormatFloat(v, 'g', -1, 32))
	}
	return fmt.Sprintf("\t.double %s\n", strconv.FormatFloat(v, 'g', -1, 64))
}

func escapeAscii(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch c {
		case '"':
			sb.WriteString("\\\"")
		case '\\':
			sb.WriteString("\\\\")
		case '\n':
			sb.WriteString("\\n")
		case '\t':
			sb.WriteString("\\t")
		case 0:
			sb.WriteString("\\000")
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&sb, "\\%03o", c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

// evalAddrConst resolves a global-scope address constant: `&global`,
// `global` (array/function decay), a string literal, `&global[k]`/pointer
// arithmetic folded by the parser into BPtrAdd over such a base, or any
// of these wrapped in a no-op pointer CastExpr (spec.md §4.6: "scalars
// ... with either a literal or label [+ offset]").
func evalAddrConst(e ast.Expr) (label string, offset int64, ok bool) {
	switch x := e.(type) {
	case *ast.VarExpr:
		return symbolName(x.Var), 0, true
	case *ast.StrLit:
		return x.Label, 0, true
	case *ast.UnaryExpr:
		if x.Op == ast.URef {
			return evalAddrConst(x.Operand)
		}
	case *ast.CastExpr:
		return evalAddrConst(x.Operand)
	case *ast.BinaryExpr:
		if x.Op == ast.BPtrAdd {
			if lbl, off, ok := evalAddrConst(x.Left); ok {
				if lit, ok2 := x.Right.(*ast.IntLit); ok2 {
					return lbl, off + lit.Value*int64(x.ElemSize), true
				}
			}
		}
	case *ast.MemberExpr:
		if !x.Arrow {
			if lbl, off, ok := evalAddrConst(x.Base); ok && x.Base.GetType().Struct != nil {
				return lbl, off + int64(x.Base.GetType().Struct.Members[x.Index].Offset), true
			}
		}
	case *ast.IndexExpr:
		if bt := x.Base.GetType(); bt.IsArray() {
			if lbl, off, ok := evalAddrConst(x.Base); ok {
				if lit, ok2 := x.Index.(*ast.IntLit); ok2 {
					elemSize, err := typesys.Sizeof(bt.Of)
					if err == nil {
						return lbl, off + lit.Value*int64(elemSize), true
					}
				}
			}
		}
	}
	return "", 0, false
}

func symbolName(v *ast.VarInfo) string {
	if v.Variant == ast.VarStaticLocal {
		return v.StaticGlobal.Name
	}
	return v.Name
}
