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

package parse

import (
	"strings"
	"testing"

	"ccgo/internal/ast"
	"ccgo/internal/typesys"
)

func parseSrc(t *testing.T, src string) *ast.Root {
	t.Helper()
	root, err := Parse(typesys.NewContext(), "t.c", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return root
}

func TestParseFuncDeclRecordsSignature(t *testing.T) {
	root := parseSrc(t, `int add(int a, int b) { return a + b; }`)
	if len(root.Decls) != 1 {
		t.Fatalf("got %d decls, want 1", len(root.Decls))
	}
	fn, ok := root.Decls[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("decl is %T, want *ast.FuncDecl", root.Decls[0])
	}
	if fn.Name != "add" {
		t.Errorf("Name = %q, want add", fn.Name)
	}
	if !fn.Type.Of.IsFixnum() {
		t.Errorf("return type = %v, want a fixnum", fn.Type.Of)
	}
	if len(fn.Type.Params) != 2 {
		t.Fatalf("got %d params, want 2", len(fn.Type.Params))
	}
	if fn.Body == nil {
		t.Fatal("Body is nil for a defined function")
	}
}

func TestParsePrototypeHasNilBody(t *testing.T) {
	root := parseSrc(t, `int decl_only(int x);`)
	fn := root.Decls[0].(*ast.FuncDecl)
	if fn.Body != nil {
		t.Error("a prototype-only declaration should have a nil Body")
	}
}

func TestParseReturnFoldsBinaryAddIntoASTNode(t *testing.T) {
	root := parseSrc(t, `int add(int a, int b) { return a + b; }`)
	fn := root.Decls[0].(*ast.FuncDecl)
	block := fn.Body
	if len(block.Stmts) != 1 {
		t.Fatalf("got %d statements in body, want 1", len(block.Stmts))
	}
	ret, ok := block.Stmts[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("stmt is %T, want *ast.ReturnStmt", block.Stmts[0])
	}
	bin, ok := ret.X.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("return value is %T, want *ast.BinaryExpr", ret.X)
	}
	if bin.Op != ast.BAdd {
		t.Errorf("Op = %v, want BAdd", bin.Op)
	}
}

func TestParseIntLiteralConstantFolds(t *testing.T) {
	root := parseSrc(t, `int answer(void) { return 6 * 7; }`)
	fn := root.Decls[0].(*ast.FuncDecl)
	block := fn.Body
	ret := block.Stmts[0].(*ast.ReturnStmt)
	lit, ok := ret.X.(*ast.IntLit)
	if !ok {
		t.Fatalf("constant-folded return value is %T, want *ast.IntLit", ret.X)
	}
	if lit.Value != 42 {
		t.Errorf("folded value = %d, want 42", lit.Value)
	}
}

func TestParseImplicitCastInsertedOnAssignToWiderType(t *testing.T) {
	root := parseSrc(t, `
double widen(void) {
	int x = 3;
	double d = x;
	return d;
}
`)
	fn := root.Decls[0].(*ast.FuncDecl)
	block := fn.Body
	var decl *ast.DeclStmt
	for _, s := range block.Stmts {
		if d, ok := s.(*ast.DeclStmt); ok && d.Decl.Var.Name == "d" {
			decl = d
		}
	}
	if decl == nil {
		t.Fatal("could not find the declaration of d")
	}
	single, ok := decl.Decl.Init.(*ast.SingleInit)
	if !ok {
		t.Fatalf("init is %T, want *ast.SingleInit", decl.Decl.Init)
	}
	if _, ok := single.X.(*ast.CastExpr); !ok {
		t.Errorf("assigning int to double should insert a CastExpr, got %T", single.X)
	}
}

func TestParseIfElseProducesIfStmt(t *testing.T) {
	root := parseSrc(t, `int sign(int x) { if (x < 0) return -1; else return 1; }`)
	fn := root.Decls[0].(*ast.FuncDecl)
	block := fn.Body
	ifs, ok := block.Stmts[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("stmt is %T, want *ast.IfStmt", block.Stmts[0])
	}
	if ifs.Else == nil {
		t.Error("Else branch should be populated")
	}
}

func TestParseDuplicateCaseValueIsAnError(t *testing.T) {
	_, err := Parse(typesys.NewContext(), "t.c", strings.NewReader(`
int f(int x) {
	switch (x) {
	case 1: return 1;
	case 1: return 2;
	}
	return 0;
}
`))
	if err == nil {
		t.Fatal("a repeated case constant should fail to parse")
	}
	if !strings.Contains(err.Error(), "duplicate case value") {
		t.Errorf("error = %q, want it to mention the duplicate case value", err.Error())
	}
}

func TestParseUndeclaredIdentifierIsAnError(t *testing.T) {
	_, err := Parse(typesys.NewContext(), "t.c", strings.NewReader(`int f(void) { return y; }`))
	if err == nil {
		t.Fatal("referencing an undeclared identifier should fail to parse")
	}
}

func TestParseMismatchedBraceIsAnError(t *testing.T) {
	_, err := Parse(typesys.NewContext(), "t.c", strings.NewReader(`int f(void) { return 1; `))
	if err == nil {
		t.Fatal("an unterminated function body should fail to parse")
	}
}

func TestParseGlobalVarDeclWithInitializer(t *testing.T) {
	root := parseSrc(t, `int counter = 7;`)
	v, ok := root.Decls[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("decl is %T, want *ast.VarDecl", root.Decls[0])
	}
	if v.Var.Name != "counter" {
		t.Errorf("Name = %q, want counter", v.Var.Name)
	}
	if v.Init == nil {
		t.Error("Init should be populated for `int counter = 7;`")
	}
}
