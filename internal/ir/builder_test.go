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
	"strings"
	"testing"

	"ccgo/internal/ast"
	"ccgo/internal/parse"
	"ccgo/internal/typesys"
)

// buildFunc parses src (expected to declare exactly one defined function)
// and lowers its body to a BBContainer.
func buildFunc(t *testing.T, src string) *BBContainer {
	t.Helper()
	ctx := typesys.NewContext()
	root, err := parse.Parse(ctx, "t.c", strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var fn *ast.FuncDecl
	for _, d := range root.Decls {
		if f, ok := d.(*ast.FuncDecl); ok && f.Body != nil {
			fn = f
		}
	}
	if fn == nil {
		t.Fatal("no defined function in source")
	}
	c, err := Build(ctx, fn, NewStringTable(), NewFloatTable())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c
}

func TestBuildConstantReturnLowersToImmediateRet(t *testing.T) {
	c := buildFunc(t, `int answer(void) { return 42; }`)
	if len(c.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(c.Blocks))
	}
	entry := c.Blocks[0]
	if entry.Label != "entry" {
		t.Errorf("entry label = %q, want entry", entry.Label)
	}
	if len(entry.Ops) != 1 || entry.Ops[0].Op != OpRet {
		t.Fatalf("expected a single OpRet, got %v", entry.Ops)
	}
	ret := entry.Ops[0]
	if !ret.Src1.IsImm || ret.Src1.Imm != 42 {
		t.Errorf("OpRet operand = %+v, want an immediate 42", ret.Src1)
	}
	if c.Regs.Count() != 0 {
		t.Errorf("a function with no locals/params should allocate no VRegs, got %d", c.Regs.Count())
	}
}

func TestBuildParamsAreSpilledToFrameSlots(t *testing.T) {
	c := buildFunc(t, `int add(int a, int b) { return a + b; }`)
	if len(c.Params) != 2 {
		t.Fatalf("got %d params, want 2", len(c.Params))
	}
	if c.FrameSize <= 0 {
		t.Errorf("FrameSize = %d, want > 0 once two params are stored to the frame", c.FrameSize)
	}
	var stores int
	for _, b := range c.Blocks {
		for _, op := range b.Ops {
			if op.Op == OpStore {
				stores++
			}
		}
	}
	if stores < 2 {
		t.Errorf("got %d OpStore ops, want at least 2 (one per param)", stores)
	}
}

func TestBuildIfElseProducesTwoTargetBlocks(t *testing.T) {
	c := buildFunc(t, `int sign(int x) { if (x < 0) return -1; else return 1; }`)
	var jcc int
	for _, b := range c.Blocks {
		for _, op := range b.Ops {
			if op.Op == OpJcc {
				jcc++
			}
		}
	}
	if jcc == 0 {
		t.Error("an if/else should lower to at least one OpJcc")
	}
	if len(c.Blocks) < 3 {
		t.Errorf("if/else should split into at least 3 blocks (cond, then, else), got %d", len(c.Blocks))
	}
}

func TestBuildFallsOffEndGetsAnImplicitRet(t *testing.T) {
	c := buildFunc(t, `int f(void) { int x = 1; }`)
	last := c.Blocks[len(c.Blocks)-1]
	if !last.Terminated() {
		t.Fatal("the last block should be terminated")
	}
	if last.Ops[len(last.Ops)-1].Op != OpRet {
		t.Errorf("falling off the end of a function should append an OpRet, got %v", last.Ops[len(last.Ops)-1].Op)
	}
}

func TestVRegAllocatorAssignsIncreasingIDs(t *testing.T) {
	var a VRegAllocator
	v0 := a.New(4, false, false)
	v1 := a.New(8, true, true)
	if v0.ID != 0 || v1.ID != 1 {
		t.Errorf("IDs = %d, %d, want 0, 1", v0.ID, v1.ID)
	}
	if v0.Class() != 0 {
		t.Errorf("an integer VReg should be Class 0, got %d", v0.Class())
	}
	if v1.Class() != 1 {
		t.Errorf("a float VReg should be Class 1, got %d", v1.Class())
	}
}

func TestBasicBlockTerminatedTracksLastOp(t *testing.T) {
	b := &BasicBlock{Label: "b"}
	if b.Terminated() {
		t.Error("an empty block should not be reported as terminated")
	}
	b.Emit(&Op{Op: OpMovImm})
	if b.Terminated() {
		t.Error("a non-control-transfer op should not terminate a block")
	}
	b.Emit(&Op{Op: OpRet})
	if !b.Terminated() {
		t.Error("a block ending in OpRet should be terminated")
	}
}
