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

package emit

import (
	"fmt"
	"log"
	"strings"

	"github.com/klauspost/asmfmt"
	"golang.org/x/sys/cpu"

	"ccgo/internal/ast"
	"ccgo/internal/diag"
	"ccgo/internal/ir"
	"ccgo/internal/regalloc"
	"ccgo/internal/target"
	"ccgo/internal/typesys"
)

// Unit drives the whole pipeline spec.md §4.4-§4.6 describe for a single
// translation unit: lower every function body to IR, register-allocate
// it, translate it to assembler text, then lay out every global (data,
// bss, rodata) and the pooled string-literal table.
type Unit struct {
	Ctx    *typesys.Context
	Target *target.Target

	// Debug, if non-nil, receives a dump of each function's BBContainer
	// after register allocation (spec.md's IR/regalloc stages), the way
	// the teacher's compile/compiler.go DebugPrint* toggles dump its own
	// HIR/LIR. Left nil in normal operation; the CLI's -debug flag wires
	// one to stderr.
	Debug *log.Logger

	strings *ir.StringTable
	floats  *ir.FloatTable
}

// NewUnit wires the target ABI selected by the CLI (spec.md §4.6/the
// `-target` flag) to a fresh string-literal and float/double-constant
// pool shared across every function and global initializer in root.
func NewUnit(ctx *typesys.Context, tgt *target.Target) *Unit {
	return &Unit{Ctx: ctx, Target: tgt, strings: ir.NewStringTable(), floats: ir.NewFloatTable()}
}

// Emit lowers root to complete GNU-assembler-syntax text.
func (u *Unit) Emit(root *ast.Root) (string, error) {
	if u.Target.Arch == target.AMD64 && !cpu.X86.HasSSE2 {
		// Every scalar float op this subset emits is SSE2 (movsd/addsd/
		// ...); without it there is no correct amd64 lowering to fall
		// back to, so refuse outright rather than emit bad code.
		return "", diag.New(diag.Emit, diag.Pos{}, "amd64 target requires SSE2, which this host does not report")
	}

	var body, data, rodata, bss strings.Builder
	body.WriteString(fmt.Sprintf("%s generated by ccgo for %s\n", u.Target.AsmCommentChar, u.Target.Name))
	body.WriteString("\t.text\n")

	for _, decl := range root.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Body == nil {
				continue
			}
			if err := u.emitFunc(&body, d); err != nil {
				return "", err
			}
		case *ast.VarDecl:
			if err := u.emitGlobal(&data, &rodata, &bss, d); err != nil {
				return "", err
			}
		}
	}

	u.emitStringPool(&rodata)
	u.emitFloatPool(&rodata)

	var out strings.Builder
	out.WriteString(body.String())
	if rodata.Len() > 0 {
		out.WriteString("\t.section .rodata\n")
		out.WriteString(rodata.String())
	}
	if data.Len() > 0 {
		out.WriteString("\t.data\n")
		out.WriteString(data.String())
	}
	out.WriteString(bss.String())

	return u.columnAlign(out.String()), nil
}

func (u *Unit) emitFunc(w *strings.Builder, fn *ast.FuncDecl) error {
	c, err := ir.Build(u.Ctx, fn, u.strings, u.floats)
	if err != nil {
		return err
	}
	regalloc.Allocate(c, u.Target)
	if u.Debug != nil {
		u.Debug.Printf("function %s after register allocation:\n%s", fn.Name, c.String())
	}
	switch u.Target.Arch {
	case target.AMD64:
		return emitAMD64Func(w, u.Target, c)
	default:
		return emitARM64Func(w, u.Target, c)
	}
}

func (u *Unit) emitGlobal(data, rodata, bss *strings.Builder, d *ast.VarDecl) error {
	v := d.Var
	name := u.Target.Mangle(v.Name)
	size, err := typesys.Sizeof(v.Type)
	if err != nil {
		return err
	}
	align, err := typesys.Alignof(v.Type)
	if err != nil {
		return err
	}

	if v.Storage.Has(ast.StorageExtern) && v.GlobalInit == nil {
		return nil // a plain `extern` declaration defines nothing to emit
	}

	if v.GlobalInit == nil {
		fmt.Fprintf(bss, "\t.comm %s,%d,%d\n", name, size, align)
		return nil
	}

	dest := data
	if v.Type.IsConst() {
		dest = rodata
	}
	if !v.Storage.Has(ast.StorageStatic) {
		fmt.Fprintf(dest, ".globl %s\n", name)
	}
	fmt.Fprintf(dest, "\t.align %d\n", align)
	fmt.Fprintf(dest, "%s:\n", name)
	if _, err := constructInitialValue(dest, v.Type, d.Init); err != nil {
		return err
	}
	return nil
}

func (u *Unit) emitStringPool(rodata *strings.Builder) {
	for _, e := range u.strings.Entries() {
		fmt.Fprintf(rodata, "%s:\n", e.Label)
		rodata.WriteString("\t.ascii \"")
		rodata.WriteString(escapeAscii(e.Value))
		rodata.WriteString("\"\n\t.byte 0\n")
	}
}

// emitFloatPool lays out every float/double literal a function body
// evaluated as an r-value (ir.OpMovImm's float case), since neither
// target ISA this package emits for can move an arbitrary float/double
// immediate straight into a register.
func (u *Unit) emitFloatPool(rodata *strings.Builder) {
	for _, e := range u.floats.Entries() {
		t := typesys.TFloat
		align := 4
		if e.Double {
			t = typesys.TDouble
			align = 8
		}
		fmt.Fprintf(rodata, "\t.align %d\n", align)
		fmt.Fprintf(rodata, "%s:\n", e.Label)
		rodata.WriteString(floatDirective(t, e.Value))
	}
}

// columnAlign applies asmfmt's column/comma/label alignment pass to the
// assembled text. asmfmt targets Go's plan9 assembler dialect, so it is
// asked only to tidy whitespace around the mnemonic/operand columns it
// already recognizes (tabs and `//`-comments). If asmfmt rejects the
// text (GNU-specific directives, amd64's `#` comments), the whole text is
// returned unformatted, since a failed cosmetic pass must never block
// emission of otherwise-correct assembly.
func (u *Unit) columnAlign(text string) string {
	out, err := asmfmt.Format(strings.NewReader(text))
	if err != nil {
		return text
	}
	return string(out)
}
