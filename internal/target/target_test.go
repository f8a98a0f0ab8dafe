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

package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"amd64-sysv", "amd64", "", "amd64-darwin", "arm64", "arm64-sysv"} {
		_, ok := ByName(name)
		assert.Truef(t, ok, "ByName(%q) should resolve", name)
	}
	_, ok := ByName("mips")
	assert.False(t, ok)
}

func TestAMD64ScratchExcludedFromAllocatableFile(t *testing.T) {
	tgt := AMD64SysV()
	for phys := 0; phys < tgt.IntRegs; phys++ {
		name := tgt.IntRegName(phys, 8)
		assert.NotEqual(t, "r10", name)
		assert.NotEqual(t, "r11", name)
	}
}

func TestAMD64DarwinMangles(t *testing.T) {
	tgt := AMD64Darwin()
	assert.Equal(t, "_main", tgt.Mangle("main"))
	assert.Equal(t, "main", AMD64SysV().Mangle("main"))
}

func TestAMD64CalleeSavedNamesAreRbxAndR12ThroughR15(t *testing.T) {
	tgt := AMD64SysV()
	var names []string
	for _, r := range tgt.CalleeSavedInt {
		names = append(names, tgt.IntRegName(r, 8))
	}
	assert.ElementsMatch(t, []string{"rbx", "r12", "r13", "r14", "r15"}, names)
}

func TestARM64SkipsReservedAndScratchRegisters(t *testing.T) {
	tgt := ARM64()
	seen := map[string]bool{}
	for phys := 0; phys < tgt.IntRegs; phys++ {
		name := tgt.IntRegName(phys, 8)
		require.False(t, seen[name], "duplicate register name %s", name)
		seen[name] = true
		assert.NotEqual(t, "x16", name)
		assert.NotEqual(t, "x17", name)
		assert.NotEqual(t, "x18", name)
	}
}

func TestIsCalleeSaved(t *testing.T) {
	tgt := AMD64SysV()
	assert.True(t, tgt.IsCalleeSaved(0, tgt.CalleeSavedInt[0]))
	assert.False(t, tgt.IsCalleeSaved(0, 0)) // rax is never callee-saved
}
