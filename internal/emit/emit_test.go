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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ccgo/internal/parse"
	"ccgo/internal/target"
	"ccgo/internal/typesys"
)

// normalizedLines strips the column/indentation whitespace asmfmt's
// cosmetic pass may rewrite, keeping the test's golden comparison
// insensitive to that formatting while still catching any change to the
// instructions themselves or their order.
func normalizedLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func compile(t *testing.T, src string, tgt *target.Target) string {
	t.Helper()
	ctx := typesys.NewContext()
	root, err := parse.Parse(ctx, "t.c", strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	text, err := NewUnit(ctx, tgt).Emit(root)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	return text
}

func TestEmitAddFunctionAMD64(t *testing.T) {
	text := compile(t, `int add(int a, int b) { return a + b; }`, target.AMD64SysV())
	if !strings.Contains(text, ".globl add") {
		t.Errorf("missing function symbol:\n%s", text)
	}
	if !strings.Contains(text, "add:") {
		t.Errorf("missing function label:\n%s", text)
	}
	if !strings.Contains(text, "ret") {
		t.Errorf("missing ret instruction:\n%s", text)
	}
}

func TestEmitAddFunctionARM64(t *testing.T) {
	text := compile(t, `int add(int a, int b) { return a + b; }`, target.ARM64())
	if !strings.Contains(text, ".globl add") {
		t.Errorf("missing function symbol:\n%s", text)
	}
	if !strings.Contains(text, "stp x29, x30") {
		t.Errorf("missing AAPCS64 frame-record prologue:\n%s", text)
	}
}

func TestEmitGlobalWithInitializerGoesToData(t *testing.T) {
	text := compile(t, `int counter = 7;`, target.AMD64SysV())
	if !strings.Contains(text, "\t.data\n") {
		t.Errorf("initialized non-const global should land in .data:\n%s", text)
	}
	if !strings.Contains(text, "counter:") {
		t.Errorf("missing global label:\n%s", text)
	}
}

func TestEmitUninitializedGlobalIsCommon(t *testing.T) {
	text := compile(t, `int table[4];`, target.AMD64SysV())
	if !strings.Contains(text, ".comm table,16,4") {
		t.Errorf("tentative global should emit a .comm directive sized 4*4 bytes:\n%s", text)
	}
}

func TestEmitConstGlobalGoesToRodata(t *testing.T) {
	text := compile(t, `const int answer = 42;`, target.AMD64SysV())
	if !strings.Contains(text, ".section .rodata") {
		t.Errorf("a const global should land in .rodata:\n%s", text)
	}
}

func TestEmitStringLiteralPoolsIntoRodata(t *testing.T) {
	text := compile(t, `const char *greeting(void) { return "hi"; }`, target.AMD64SysV())
	if !strings.Contains(text, ".LC0:") {
		t.Errorf("missing pooled string label:\n%s", text)
	}
	if !strings.Contains(text, `.ascii "hi"`) {
		t.Errorf("missing pooled string bytes:\n%s", text)
	}
}

func TestEmitFloatLiteralInExecutableCodeLoadsFromPooledConstant(t *testing.T) {
	text := compile(t, `double f(double x) { return x + 1.5; }`, target.AMD64SysV())
	if !strings.Contains(text, ".LCD0:") {
		t.Errorf("missing pooled float constant label:\n%s", text)
	}
	if !strings.Contains(text, "\t.double 1.5\n") {
		t.Errorf("missing pooled float constant value:\n%s", text)
	}
	if !strings.Contains(text, "movsd .LCD0(%rip)") {
		t.Errorf("the float literal should be loaded from its pooled constant, not left uninitialized:\n%s", text)
	}
}

func TestEmitFloatLiteralInExecutableCodeARM64(t *testing.T) {
	text := compile(t, `double f(double x) { return x + 1.5; }`, target.ARM64())
	if !strings.Contains(text, ".LCD0:") {
		t.Errorf("missing pooled float constant label:\n%s", text)
	}
	if !strings.Contains(text, "adrp") || !strings.Contains(text, "ldr") {
		t.Errorf("the float literal should be address-loaded via adrp/ldr, not left uninitialized:\n%s", text)
	}
}

func TestEmitUnsignedDivisionUsesUnsignedInstructions(t *testing.T) {
	text := compile(t, `unsigned div_u(unsigned a, unsigned b) { return a / b; }`, target.AMD64SysV())
	if !strings.Contains(text, "\tdiv ") && !strings.Contains(text, "\tdivl ") {
		t.Errorf("unsigned division should emit div, not idiv:\n%s", text)
	}
	if strings.Contains(text, "idiv") {
		t.Errorf("unsigned division should never emit idiv:\n%s", text)
	}
}

func TestEmitUnsignedRightShiftUsesShr(t *testing.T) {
	text := compile(t, `unsigned shr_u(unsigned a) { return a >> 1; }`, target.AMD64SysV())
	if !strings.Contains(text, "shr") {
		t.Errorf("unsigned right shift should emit shr:\n%s", text)
	}
	if strings.Contains(text, "sar") {
		t.Errorf("unsigned right shift should never emit sar:\n%s", text)
	}
}

func TestEmitUnsignedComparisonUsesUnsignedSetcc(t *testing.T) {
	text := compile(t, `int lt_u(unsigned a, unsigned b) { return a < b; }`, target.AMD64SysV())
	if !strings.Contains(text, "setb") {
		t.Errorf("unsigned < should lower to setb, not the signed setl:\n%s", text)
	}
	if strings.Contains(text, "setl") {
		t.Errorf("unsigned comparison should never pick the signed setcc table:\n%s", text)
	}
}

func TestEmitSwitchOnLongComparesFullWidth(t *testing.T) {
	text := compile(t, `
long f(long x) {
	switch (x) {
	case 0: return 1;
	default: return 2;
	}
}
`, target.AMD64SysV())
	if !strings.Contains(text, "cmpq") {
		t.Errorf("a switch over a long tag should compare the full 8-byte width, not truncate to 32 bits:\n%s", text)
	}
}

func TestEmitPrototypeOnlyDeclEmitsNothing(t *testing.T) {
	text := compile(t, `int decl_only(int x);`, target.AMD64SysV())
	if strings.Contains(text, "decl_only:") {
		t.Errorf("a prototype with no body should not emit a function label:\n%s", text)
	}
}

func TestEmitIfElseProducesConditionalBranch(t *testing.T) {
	text := compile(t, `int sign(int x) { if (x < 0) return -1; else return 1; }`, target.AMD64SysV())
	if !strings.Contains(text, "jne") && !strings.Contains(text, "jmp") {
		t.Errorf("an if/else should lower to at least one branch:\n%s", text)
	}
}

// TestEmitConstantReturnGoldenAMD64 pins down the exact instruction
// sequence for the simplest possible function body: a register allocator
// with nothing to spill and no callee-saved register in use should
// produce exactly this prologue/body/epilogue, no more and no less.
func TestEmitConstantReturnGoldenAMD64(t *testing.T) {
	text := compile(t, `int answer(void) { return 42; }`, target.AMD64SysV())
	want := []string{
		"# generated by ccgo for amd64-sysv",
		".text",
		".globl answer",
		"answer:",
		"push %rbp",
		"mov %rsp, %rbp",
		"entry:",
		"mov $42, %rax",
		"leave",
		"ret",
	}
	got := normalizedLines(text)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("emitted instruction sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitCallMarshalsArguments(t *testing.T) {
	src := `
int add(int a, int b) { return a + b; }
int caller(void) { return add(1, 2); }
`
	text := compile(t, src, target.AMD64SysV())
	if !strings.Contains(text, "call add") {
		t.Errorf("missing direct call to add:\n%s", text)
	}
}
