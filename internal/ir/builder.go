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
	"ccgo/internal/diag"
	"ccgo/internal/typesys"
)

// Builder walks one function body and produces its BBContainer, following
// spec.md §4.4's lowering rules. One Builder per function; discarded once
// that function's IR is emitted (spec.md §3 lifecycle).
type Builder struct {
	ctx       *typesys.Context
	container *BBContainer
	cur       *BasicBlock
	strings   *StringTable
	floats    *FloatTable

	frameOffsets map[*ast.VarInfo]int
	frameCursor  int // next (negative-growing) frame offset to hand out

	breakTargets    []*BasicBlock
	continueTargets []*BasicBlock

	labels map[string]*BasicBlock

	labelCounter int
}

// Build lowers fn's body to a BBContainer. fn.Body must be non-nil (a
// prototype has nothing to lower). strings/floats intern the string and
// float/double literals fn's body references; callers share one
// StringTable and one FloatTable across every function of a translation
// unit so labels stay unique program-wide.
func Build(ctx *typesys.Context, fn *ast.FuncDecl, strings *StringTable, floats *FloatTable) (*BBContainer, error) {
	b := &Builder{
		ctx:          ctx,
		container:    NewBBContainer(fn.Name),
		strings:      strings,
		floats:       floats,
		frameOffsets: make(map[*ast.VarInfo]int),
		labels:       make(map[string]*BasicBlock),
	}
	b.container.VaArgs = fn.Type.VaArgs

	entry := b.container.NewBlock("entry")
	b.cur = entry

	// Hidden aggregate-return pointer (spec.md §4.4): materialized as a
	// frame slot like any other parameter when the function returns a
	// struct/union by value.
	if fn.Type.Of.IsStruct() {
		hiddenArg := b.container.Regs.New(typesys.PtrSize, false, false)
		b.container.Params = append(b.container.Params, hiddenArg)
		b.container.HiddenRetReg = hiddenArg
		if hv, _ := fn.Scope.LookupLocal(fn.HiddenRetName); hv != nil {
			slot := b.allocLocal(hv)
			b.storeFrame(slot, typesys.PtrOf(typesys.TVoid), Reg(hiddenArg))
		}
	}

	for i, pname := range fn.ParamNames {
		pv, _ := fn.Scope.LookupLocal(pname)
		if pv == nil {
			continue
		}
		_ = i
		width, err := typesys.Sizeof(pv.Type)
		if err != nil {
			return nil, diag.New(diag.IR, diag.Pos{}, "parameter %q: %v", pname, err)
		}
		isFloat := pv.Type.IsFlonum()
		isDouble := isFloat && pv.Type.Flonum == typesys.FDouble
		argReg := b.container.Regs.New(width, isFloat, isDouble)
		b.container.Params = append(b.container.Params, argReg)
		slot := b.allocLocal(pv)
		b.storeFrame(slot, pv.Type, Reg(argReg))
	}

	if err := b.lowerBlock(fn.Body); err != nil {
		return nil, err
	}
	if !b.cur.Terminated() {
		// Falling off the end of a non-void function is an undefined
		// value in C; we still need a well-formed terminator.
		b.cur.Emit(&Op{Op: OpRet})
	}

	b.container.FrameSize = -b.frameCursor
	return b.container, nil
}

// --- frame slot allocation -------------------------------------------------

func (b *Builder) allocLocal(v *ast.VarInfo) int {
	if off, ok := b.frameOffsets[v]; ok {
		return off
	}
	size, err := typesys.Sizeof(v.Type)
	if err != nil {
		size = typesys.PtrSize
	}
	align, err := typesys.Alignof(v.Type)
	if err != nil {
		align = typesys.PtrSize
	}
	b.frameCursor -= size
	b.frameCursor = -alignUpNeg(-b.frameCursor, align)
	off := b.frameCursor
	b.frameOffsets[v] = off
	v.Variant = ast.VarLocal
	v.Frame = ast.FrameLoc{Offset: off}
	return off
}

func alignUpNeg(n, to int) int {
	if to <= 1 {
		return n
	}
	return (n + to - 1) &^ (to - 1)
}

func (b *Builder) storeFrame(offset int, t *typesys.Type, val Operand) {
	width, _ := typesys.Sizeof(t)
	b.cur.Emit(&Op{
		Op:    OpStore,
		Src1:  Operand{}, // frame-relative: no base register
		Src2:  val,
		Width: width,
		Float: t.IsFlonum(),
		Extra: Extra{IsFrame: true, Offset: offset},
	})
}

// --- statements --------------------------------------------------------------

func (b *Builder) lowerBlock(s *ast.BlockStmt) error {
	for _, st := range s.Stmts {
		if err := b.lowerStmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) lowerStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.ExprStmt:
		_, err := b.lowerExpr(n.X)
		return err
	case *ast.DeclStmt:
		return b.lowerVarDecl(n.Decl)
	case *ast.BlockStmt:
		return b.lowerBlock(n)
	case *ast.IfStmt:
		return b.lowerIf(n)
	case *ast.WhileStmt:
		return b.lowerWhile(n)
	case *ast.DoWhileStmt:
		return b.lowerDoWhile(n)
	case *ast.ForStmt:
		return b.lowerFor(n)
	case *ast.SwitchStmt:
		return b.lowerSwitch(n)
	case *ast.BreakStmt:
		if len(b.breakTargets) == 0 {
			return diag.New(diag.IR, diag.Pos{}, "break outside loop/switch")
		}
		b.jump(b.breakTargets[len(b.breakTargets)-1])
		return nil
	case *ast.ContinueStmt:
		if len(b.continueTargets) == 0 {
			return diag.New(diag.IR, diag.Pos{}, "continue outside loop")
		}
		b.jump(b.continueTargets[len(b.continueTargets)-1])
		return nil
	case *ast.ReturnStmt:
		return b.lowerReturn(n)
	case *ast.GotoStmt:
		b.jump(b.labelBlock(n.Label))
		return nil
	case *ast.LabelStmt:
		target := b.labelBlock(n.Label)
		if !b.cur.Terminated() {
			b.cur.AddSucc(target)
			b.cur.Emit(&Op{Op: OpJmp, Extra: Extra{Target: target}})
		}
		b.cur = target
		return b.lowerStmt(n.Stmt)
	case *ast.AsmStmt:
		b.cur.Emit(&Op{Op: OpAsm, Extra: Extra{Text: n.Text}})
		return nil
	default:
		return diag.New(diag.IR, diag.Pos{}, "unhandled statement node %T", s)
	}
}

func (b *Builder) labelBlock(name string) *BasicBlock {
	if blk, ok := b.labels[name]; ok {
		return blk
	}
	blk := b.container.NewBlock("L_" + name)
	b.labels[name] = blk
	return blk
}

func (b *Builder) lowerVarDecl(d *ast.VarDecl) error {
	v := d.Var
	if v.Storage.Has(ast.StorageStatic) {
		// Materialized as a global by sema (spec.md §4.4: "Static local
		// variables are materialized as globals at parse time"); nothing
		// to lower here beyond recording that reads target the global.
		return nil
	}
	off := b.allocLocal(v)
	if d.Init == nil {
		return nil
	}
	return b.lowerInitializer(off, v.Type, d.Init)
}

func (b *Builder) lowerInitializer(frameOffset int, t *typesys.Type, init ast.Initializer) error {
	switch in := init.(type) {
	case *ast.SingleInit:
		if t.IsStruct() || t.IsArray() {
			src, err := b.lowerLvalue(in.X)
			if err != nil {
				return err
			}
			return b.copyAggregate(b.leaFrame(frameOffset), src, t)
		}
		val, err := b.lowerExpr(in.X)
		if err != nil {
			return err
		}
		b.storeFrame(frameOffset, t, val)
		return nil
	case *ast.MultiInit:
		if t.IsArray() {
			elemSize, _ := typesys.Sizeof(t.Of)
			for i, e := range in.Elems {
				if err := b.lowerInitializer(frameOffset+i*elemSize, t.Of, e); err != nil {
					return err
				}
			}
			return nil
		}
		if t.IsStruct() && t.Struct != nil {
			for i, e := range in.Elems {
				if i >= len(t.Struct.Members) {
					break
				}
				m := t.Struct.Members[i]
				if err := b.lowerInitializer(frameOffset+m.Offset, m.Type, e); err != nil {
					return err
				}
			}
			return nil
		}
		return diag.New(diag.IR, diag.Pos{}, "aggregate initializer on non-aggregate type %s", t)
	default:
		return diag.New(diag.IR, diag.Pos{}, "unresolved initializer node %T reached the IR builder", init)
	}
}

func (b *Builder) lowerIf(n *ast.IfStmt) error {
	thenBlk := b.container.NewBlock(b.freshLabel("if_then"))
	elseBlk := b.container.NewBlock(b.freshLabel("if_else"))
	joinBlk := b.container.NewBlock(b.freshLabel("if_join"))

	if err := b.lowerCond(n.Cond, thenBlk, elseBlk); err != nil {
		return err
	}

	b.cur = thenBlk
	if err := b.lowerStmt(n.Then); err != nil {
		return err
	}
	b.jump(joinBlk)

	b.cur = elseBlk
	if n.Else != nil {
		if err := b.lowerStmt(n.Else); err != nil {
			return err
		}
	}
	b.jump(joinBlk)

	b.cur = joinBlk
	return nil
}

func (b *Builder) lowerWhile(n *ast.WhileStmt) error {
	head := b.container.NewBlock(b.freshLabel("while_head"))
	body := b.container.NewBlock(b.freshLabel("while_body"))
	exit := b.container.NewBlock(b.freshLabel("while_exit"))

	b.jump(head)
	b.cur = head
	if err := b.lowerCond(n.Cond, body, exit); err != nil {
		return err
	}

	b.breakTargets = append(b.breakTargets, exit)
	b.continueTargets = append(b.continueTargets, head)
	b.cur = body
	if err := b.lowerStmt(n.Body); err != nil {
		return err
	}
	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]

	b.jump(head)
	b.cur = exit
	return nil
}

func (b *Builder) lowerDoWhile(n *ast.DoWhileStmt) error {
	body := b.container.NewBlock(b.freshLabel("do_body"))
	cond := b.container.NewBlock(b.freshLabel("do_cond"))
	exit := b.container.NewBlock(b.freshLabel("do_exit"))

	b.jump(body)

	b.breakTargets = append(b.breakTargets, exit)
	b.continueTargets = append(b.continueTargets, cond)
	b.cur = body
	if err := b.lowerStmt(n.Body); err != nil {
		return err
	}
	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]

	b.jump(cond)
	b.cur = cond
	if err := b.lowerCond(n.Cond, body, exit); err != nil {
		return err
	}

	b.cur = exit
	return nil
}

func (b *Builder) lowerFor(n *ast.ForStmt) error {
	if n.Init != nil {
		if err := b.lowerStmt(n.Init); err != nil {
			return err
		}
	}
	head := b.container.NewBlock(b.freshLabel("for_head"))
	body := b.container.NewBlock(b.freshLabel("for_body"))
	post := b.container.NewBlock(b.freshLabel("for_post"))
	exit := b.container.NewBlock(b.freshLabel("for_exit"))

	b.jump(head)
	b.cur = head
	if n.Cond != nil {
		if err := b.lowerCond(n.Cond, body, exit); err != nil {
			return err
		}
	} else {
		b.jump(body)
	}

	b.breakTargets = append(b.breakTargets, exit)
	b.continueTargets = append(b.continueTargets, post)
	b.cur = body
	if err := b.lowerStmt(n.Body); err != nil {
		return err
	}
	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]

	b.jump(post)
	b.cur = post
	if n.Post != nil {
		if _, err := b.lowerExpr(n.Post); err != nil {
			return err
		}
	}
	b.jump(head)

	b.cur = exit
	return nil
}

// lowerSwitch compiles cases into a chain of compares followed by jumps,
// with default as the fallthrough tail, exactly as spec.md §4.4 specifies.
func (b *Builder) lowerSwitch(n *ast.SwitchStmt) error {
	tagVal, err := b.lowerExpr(n.Tag)
	if err != nil {
		return err
	}
	exit := b.container.NewBlock(b.freshLabel("switch_exit"))
	tagWidth, _ := typesys.Sizeof(n.Tag.GetType())

	var defaultCase *ast.SwitchCase
	bodies := make([]*BasicBlock, len(n.Cases))
	for i, c := range n.Cases {
		bodies[i] = b.container.NewBlock(b.freshLabel("case"))
		if c.IsDefault {
			defaultCase = c
		}
	}

	for i, c := range n.Cases {
		if c.IsDefault {
			continue
		}
		nextCheck := b.container.NewBlock(b.freshLabel("case_check"))
		eqReg := b.container.Regs.New(4, false, false)
		b.cur.Emit(&Op{Op: OpCmpSet, Dst: eqReg, Src1: tagVal, Src2: Imm(c.Value), Width: tagWidth, Extra: Extra{Cond: CondEQ, Unsigned: n.Tag.GetType().IsUnsigned()}})
		b.cur.AddSucc(bodies[i])
		b.cur.AddSucc(nextCheck)
		b.cur.Emit(&Op{Op: OpJcc, Src1: Reg(eqReg), Extra: Extra{Target: bodies[i]}})
		b.cur.Emit(&Op{Op: OpJmp, Extra: Extra{Target: nextCheck}})
		b.cur = nextCheck
	}
	if defaultCase != nil {
		b.jump(bodies[indexOfCase(n.Cases, defaultCase)])
	} else {
		b.jump(exit)
	}

	b.breakTargets = append(b.breakTargets, exit)
	for i, c := range n.Cases {
		b.cur = bodies[i]
		for _, st := range c.Body {
			if err := b.lowerStmt(st); err != nil {
				return err
			}
		}
		// fallthrough to the next case block unless already terminated.
		if i+1 < len(bodies) {
			b.jump(bodies[i+1])
		} else {
			b.jump(exit)
		}
	}
	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]

	b.cur = exit
	return nil
}

func indexOfCase(cases []*ast.SwitchCase, target *ast.SwitchCase) int {
	for i, c := range cases {
		if c == target {
			return i
		}
	}
	return 0
}

func (b *Builder) lowerReturn(n *ast.ReturnStmt) error {
	if n.X == nil {
		b.cur.Emit(&Op{Op: OpRet})
		return nil
	}
	if b.container.HiddenRetReg != nil {
		// Aggregate return: copy the result through the hidden pointer
		// and hand that pointer back in the return register (spec.md
		// §4.4/§4.6).
		srcAddr, err := b.lowerLvalue(n.X)
		if err != nil {
			return err
		}
		if err := b.copyAggregate(Reg(b.container.HiddenRetReg), srcAddr, n.X.GetType()); err != nil {
			return err
		}
		b.cur.Emit(&Op{Op: OpRet, Src1: Reg(b.container.HiddenRetReg)})
		return nil
	}
	val, err := b.lowerExpr(n.X)
	if err != nil {
		return err
	}
	b.cur.Emit(&Op{Op: OpRet, Src1: val, Width: typeWidth(n.X.GetType()), Float: n.X.GetType().IsFlonum()})
	return nil
}

func (b *Builder) jump(target *BasicBlock) {
	if b.cur.Terminated() {
		return
	}
	b.cur.AddSucc(target)
	b.cur.Emit(&Op{Op: OpJmp, Extra: Extra{Target: target}})
}

func (b *Builder) freshLabel(prefix string) string {
	b.labelCounter++
	return fmt.Sprintf("%s_%d", prefix, b.labelCounter)
}

func typeWidth(t *typesys.Type) int {
	w, err := typesys.Sizeof(t)
	if err != nil {
		return typesys.PtrSize
	}
	return w
}
