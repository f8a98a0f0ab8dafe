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

import "testing"

func TestLookupWalksParentChainInnermostWins(t *testing.T) {
	file := NewScope(nil)
	outer := &VarInfo{Name: "x"}
	file.Declare(outer)

	block := NewScope(file)
	inner := &VarInfo{Name: "x"}
	block.Declare(inner)

	got, sc := block.Lookup("x")
	if got != inner {
		t.Errorf("Lookup(x) from the inner scope should find the shadowing declaration")
	}
	if sc != block {
		t.Errorf("Lookup should report the scope the match was found in")
	}

	got, _ = file.Lookup("x")
	if got != outer {
		t.Errorf("Lookup(x) from file scope should only see the outer declaration")
	}

	if _, ok := file.Lookup("nope"); ok != nil {
		t.Errorf("Lookup of an undeclared name should return nil")
	}
}

func TestLookupLocalDoesNotWalkParents(t *testing.T) {
	file := NewScope(nil)
	file.Declare(&VarInfo{Name: "x"})
	block := NewScope(file)

	if _, ok := block.LookupLocal("x"); ok {
		t.Error("LookupLocal must not see a parent scope's declarations")
	}
	block.Declare(&VarInfo{Name: "y"})
	v, ok := block.LookupLocal("y")
	if !ok || v.Name != "y" {
		t.Error("LookupLocal should find a declaration in its own scope")
	}
}

func TestFuncScopeInheritsEnclosingFunction(t *testing.T) {
	file := NewScope(nil)
	if !file.IsFileScope() {
		t.Error("a scope with no parent is file scope")
	}
	fn := &FuncDecl{Name: "main"}
	body := NewFuncScope(file, fn)
	if body.Func != fn {
		t.Error("NewFuncScope should record the enclosing function")
	}
	nested := NewScope(body)
	if nested.Func != fn {
		t.Error("a nested block scope should inherit the enclosing function from its parent")
	}
	if nested.IsFileScope() {
		t.Error("a scope with a parent is never file scope")
	}
}

func TestDeclareAppendsInInsertionOrder(t *testing.T) {
	s := NewScope(nil)
	s.Declare(&VarInfo{Name: "a"})
	s.Declare(&VarInfo{Name: "b"})
	s.Declare(&VarInfo{Name: "c"})
	if len(s.Vars) != 3 {
		t.Fatalf("len(Vars) = %d, want 3", len(s.Vars))
	}
	for i, want := range []string{"a", "b", "c"} {
		if s.Vars[i].Name != want {
			t.Errorf("Vars[%d] = %q, want %q", i, s.Vars[i].Name, want)
		}
	}
}
