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

// Scope is spec.md §3's scope tree node: a parent pointer, an ordered
// vector of VarInfo (insertion order matters for frame layout), and the
// enclosing function (nil at file scope). Scopes are long-lived and
// referenced by AST nodes (VarExpr.Scope), so they are never freed
// individually (spec.md §5 resource model).
type Scope struct {
	Parent *Scope
	Vars   []*VarInfo
	Func   *FuncDecl // nil for file scope
}

func NewScope(parent *Scope) *Scope {
	fn := (*FuncDecl)(nil)
	if parent != nil {
		fn = parent.Func
	}
	return &Scope{Parent: parent, Func: fn}
}

// NewFuncScope opens a new scope for fn's body, so nested block scopes can
// still reach the enclosing function (needed for `return`'s hidden
// aggregate-return pointer, spec.md §4.4).
func NewFuncScope(parent *Scope, fn *FuncDecl) *Scope {
	return &Scope{Parent: parent, Func: fn}
}

// Declare appends v to this scope. Spec.md §3: "insertion appends" — no
// sorting, no dedup; redeclaration-in-scope checks are sema's job, not
// the scope's.
func (s *Scope) Declare(v *VarInfo) {
	s.Vars = append(s.Vars, v)
}

// Lookup walks the parent chain outward, spec.md §3: "Lookup walks parent
// chain". The innermost matching VarInfo wins.
func (s *Scope) Lookup(name string) (*VarInfo, *Scope) {
	for sc := s; sc != nil; sc = sc.Parent {
		for i := len(sc.Vars) - 1; i >= 0; i-- {
			if sc.Vars[i].Name == name {
				return sc.Vars[i], sc
			}
		}
	}
	return nil, nil
}

// LookupLocal checks only this scope, the way a redeclaration check does.
func (s *Scope) LookupLocal(name string) (*VarInfo, bool) {
	for _, v := range s.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

func (s *Scope) IsFileScope() bool { return s.Parent == nil }
