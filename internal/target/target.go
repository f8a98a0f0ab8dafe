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

// Package target describes the ABI surface spec.md §4.6 requires the
// emitter to honor: per-class register files, argument-passing order,
// caller/callee-save partitions, stack alignment, and symbol mangling.
// internal/regalloc consults the register files; internal/emit consults
// everything else.
package target

// Arch names the instruction set a Target emits.
type Arch int

const (
	AMD64 Arch = iota
	ARM64
)

// Target is one (arch, ABI) pair: spec.md §4.6's "x86-64 SysV/Darwin" and
// "AArch64 AAPCS".
type Target struct {
	Name string
	Arch Arch

	// IntRegs/FloatRegs are the allocatable physical register counts per
	// class (class 0 = integer, class 1 = float/double); VReg.PhysReg
	// indexes into whichever of these two files VReg.Class() selects.
	IntRegs   int
	FloatRegs int

	// IntArgRegs/FloatArgRegs list, in ABI order, the physical register
	// indices (into IntRegs/FloatRegs) used for the first N
	// integer/float call arguments (spec.md §4.6).
	IntArgRegs   []int
	FloatArgRegs []int

	// CalleeSavedInt/CalleeSavedFloat list the physical register indices
	// a callee must preserve; everything else in that class is
	// caller-saved (spec.md §4.5 step 3).
	CalleeSavedInt   []int
	CalleeSavedFloat []int

	// IntRegName/FloatRegName render a physical register index and byte
	// width to its assembler mnemonic.
	IntRegName   func(phys, width int) string
	FloatRegName func(phys int, double bool) string

	// StackAlign is the byte alignment required at a call site (spec.md
	// §4.6: "stack realigned to 16 bytes before the call").
	StackAlign int

	// PointerSize is the byte width of a pointer/address on this target.
	PointerSize int

	// UnderscorePrefix mangles every external symbol with a leading `_`
	// (Darwin's Mach-O convention; spec.md §4.6).
	UnderscorePrefix bool

	// VaIntShadow/VaFloatShadow are the byte sizes of the register-args
	// shadow save area a variadic function's prologue spills into
	// (spec.md §4.6: "6×8 = 48 bytes of ints followed by 8×16 = 128
	// bytes of floats" on x86-64; AArch64 has no variadic shadow area in
	// this subset, so both are zero there).
	VaIntShadow   int
	VaFloatShadow int

	AsmCommentChar string

	// ScratchInt/ScratchFloat name two registers per class held back from
	// IntRegs/FloatRegs entirely (never handed out by regalloc). The
	// emitter uses them to reload a spilled operand or stage a spilled
	// result around a single instruction, since a non-optimizing emitter
	// can't otherwise guarantee a free register at every op.
	ScratchInt   [2]string
	ScratchFloat [2]string
}

// Mangle applies the platform's symbol-naming convention.
func (t *Target) Mangle(name string) string {
	if t.UnderscorePrefix {
		return "_" + name
	}
	return name
}

// amd64PhysToArch maps an allocatable integer-file index to its
// architectural register number, skipping R10/R11 (logical indices 8,9
// land on R12/R13 instead) so regalloc never hands out the two registers
// the emitter reserves as reload/spill scratch.
func amd64PhysToArch(phys int) int {
	if phys >= 8 {
		return phys + 2
	}
	return phys
}

func amd64IntName(phys, width int) string {
	names64 := []string{"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	names32 := []string{"eax", "ebx", "ecx", "edx", "esi", "edi", "r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d"}
	names16 := []string{"ax", "bx", "cx", "dx", "si", "di", "r8w", "r9w", "r10w", "r11w", "r12w", "r13w", "r14w", "r15w"}
	names8 := []string{"al", "bl", "cl", "dl", "sil", "dil", "r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b"}
	n := amd64PhysToArch(phys)
	switch width {
	case 1:
		return names8[n]
	case 2:
		return names16[n]
	case 4:
		return names32[n]
	default:
		return names64[n]
	}
}

func amd64FloatName(phys int, double bool) string {
	_ = double // SSE2 uses the same xmm name for scalar single/double ops
	return "xmm" + itoa(phys)
}

// amd64 integer register file: architectural RAX=0 .. R15=13 (matching the
// teacher's register_x86.go ordering), minus RBP/RSP (the frame, never in
// this file) and minus R10/R11 (held back as ScratchInt). Logical indices
// 0-7 map straight to RAX-R9; logical 8-11 map to R12-R15.
// Caller-saved is whatever's not in CalleeSavedInt.
var amd64CalleeSavedInt = []int{1, 8, 9, 10, 11} // rbx,r12,r13,r14,r15

func newAMD64(name string, darwin bool) *Target {
	return &Target{
		Name:             name,
		Arch:             AMD64,
		IntRegs:          12,
		FloatRegs:        14,
		IntArgRegs:       []int{5, 4, 3, 2, 6, 7}, // rdi,rsi,rdx,rcx,r8,r9
		FloatArgRegs:     []int{0, 1, 2, 3, 4, 5, 6, 7},
		CalleeSavedInt:   amd64CalleeSavedInt,
		CalleeSavedFloat: nil, // SysV/Darwin: every XMM register is caller-saved
		IntRegName:       amd64IntName,
		FloatRegName:     amd64FloatName,
		StackAlign:       16,
		PointerSize:      8,
		UnderscorePrefix: darwin,
		VaIntShadow:      48,
		VaFloatShadow:    128,
		AsmCommentChar:   "#",
		ScratchInt:       [2]string{"r10", "r11"},
		ScratchFloat:     [2]string{"xmm14", "xmm15"},
	}
}

func AMD64SysV() *Target   { return newAMD64("amd64-sysv", false) }
func AMD64Darwin() *Target { return newAMD64("amd64-darwin", true) }

// arm64PhysToArch maps an allocatable integer-file index to its
// architectural register number, skipping X16-X18: X16/X17 are the AAPCS
// intra-procedure-call scratch registers (IP0/IP1), reused here as the
// emitter's reload/spill scratch, and X18 is the reserved platform
// register. So regalloc's [0,IntRegs) never hands out any of the three.
func arm64PhysToArch(phys int) int {
	if phys >= 16 {
		return phys + 3
	}
	return phys
}

func arm64IntName(phys, width int) string {
	n := arm64PhysToArch(phys)
	if width == 8 {
		return "x" + itoa(n)
	}
	return "w" + itoa(n) // sub-word widths still address the 32-bit view; ldrb/ldrh/strb/strh pick the access size
}

func arm64FloatName(phys int, double bool) string {
	if double {
		return "d" + itoa(phys)
	}
	return "s" + itoa(phys)
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

// AArch64 AAPCS: X0-X15 caller-saved, X16/X17/X18 excluded (IP0/IP1
// scratch and the reserved platform register), X19-X28 callee-saved;
// X29/X30/SP are the frame pointer, link register and stack pointer and
// never appear in the allocatable file. D30/D31 are held back as float
// scratch; D0-D7 args, D8-D15 callee-saved, D16-D29 caller-saved.
func ARM64() *Target {
	intArg := []int{0, 1, 2, 3, 4, 5, 6, 7}
	floatArg := []int{0, 1, 2, 3, 4, 5, 6, 7}
	var calleeInt []int
	for i := 16; i <= 25; i++ { // logical 16-25 => architectural X19-X28
		calleeInt = append(calleeInt, i)
	}
	var calleeFloat []int
	for i := 8; i <= 15; i++ {
		calleeFloat = append(calleeFloat, i)
	}
	return &Target{
		Name:             "arm64",
		Arch:             ARM64,
		IntRegs:          26, // allocatable logical indices 0-25 => architectural X0-X15,X19-X28
		FloatRegs:        30, // allocatable D0-D29; D30/D31 reserved as ScratchFloat
		IntArgRegs:       intArg,
		FloatArgRegs:     floatArg,
		CalleeSavedInt:   calleeInt,
		CalleeSavedFloat: calleeFloat,
		IntRegName:       arm64IntName,
		FloatRegName:     arm64FloatName,
		StackAlign:       16,
		PointerSize:      8,
		UnderscorePrefix: false,
		VaIntShadow:      0,
		VaFloatShadow:    0,
		AsmCommentChar:   "//",
		ScratchInt:       [2]string{"x16", "x17"},
		ScratchFloat:     [2]string{"d30", "d31"},
	}
}

// IsCalleeSaved reports whether the given allocatable physical register
// (class 0 = integer, class 1 = float) is callee-saved under this ABI.
func (t *Target) IsCalleeSaved(class, phys int) bool {
	list := t.CalleeSavedInt
	if class == 1 {
		list = t.CalleeSavedFloat
	}
	for _, r := range list {
		if r == phys {
			return true
		}
	}
	return false
}

// ByName resolves the `-target` flag's triples to a Target (spec.md
// §4.6/the CLI's ambient surface).
func ByName(name string) (*Target, bool) {
	switch name {
	case "amd64-sysv", "amd64", "":
		return AMD64SysV(), true
	case "amd64-darwin":
		return AMD64Darwin(), true
	case "arm64", "arm64-sysv", "arm64-aapcs":
		return ARM64(), true
	default:
		return nil, false
	}
}
