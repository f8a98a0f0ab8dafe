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

package lex

import (
	"strings"
	"testing"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	lx := New("t.c", strings.NewReader(src))
	var toks []Token
	for {
		tok, err := lx.FetchToken()
		if err != nil {
			t.Fatalf("FetchToken: %v", err)
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func kinds(toks []Token) []Kind {
	ks := make([]Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestPunctuationAndOperators(t *testing.T) {
	toks := scanAll(t, "(){}[],;:?~...")
	got := kinds(toks)
	want := []Kind{LPAREN, RPAREN, LBRACE, RBRACE, LBRACKET, RBRACKET, COMMA, SEMI, COLON, QUESTION, TILDE, ELLIPSIS, EOF}
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d\ngot: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMultiCharOperatorsPreferTheLongestMatch(t *testing.T) {
	cases := []struct {
		src  string
		want []Kind
	}{
		{"+= ++ + ->", []Kind{PLUS_ASSIGN, INC, PLUS, ARROW, EOF}},
		{"-= -- -", []Kind{MINUS_ASSIGN, DEC, MINUS, EOF}},
		{"&& &= &", []Kind{ANDAND, AMP_ASSIGN, AMP, EOF}},
		{"|| |= |", []Kind{OROR, PIPE_ASSIGN, PIPE, EOF}},
		{"== = !=", []Kind{EQ, ASSIGN, NE, EOF}},
		{"<<= << <= <", []Kind{SHL_ASSIGN, SHL, LE, LT, EOF}},
		{">>= >> >= >", []Kind{SHR_ASSIGN, SHR, GE, GT, EOF}},
		{"^= ^", []Kind{CARET_ASSIGN, CARET, EOF}},
	}
	for _, c := range cases {
		got := kinds(scanAll(t, c.src))
		if len(got) != len(c.want) {
			t.Fatalf("%q: token count = %d, want %d\ngot: %v", c.src, len(got), len(c.want), got)
		}
		for i := range c.want {
			if got[i] != c.want[i] {
				t.Errorf("%q: token %d = %v, want %v", c.src, i, got[i], c.want[i])
			}
		}
	}
}

func TestKeywordsVsIdentifiers(t *testing.T) {
	toks := scanAll(t, "int x_1 struct foo")
	if toks[0].Kind != KW_INT {
		t.Errorf("expected KW_INT, got %v", toks[0].Kind)
	}
	if toks[1].Kind != IDENT || toks[1].Name != "x_1" {
		t.Errorf("expected IDENT x_1, got %v %q", toks[1].Kind, toks[1].Name)
	}
	if toks[2].Kind != KW_STRUCT {
		t.Errorf("expected KW_STRUCT, got %v", toks[2].Kind)
	}
	if toks[3].Kind != IDENT || toks[3].Name != "foo" {
		t.Errorf("expected IDENT foo, got %v %q", toks[3].Kind, toks[3].Name)
	}
}

func TestIntegerLiteralBasesAndSuffixes(t *testing.T) {
	cases := []struct {
		src  string
		val  int64
		unsg bool
		long int
	}{
		{"42", 42, false, 0},
		{"0x2A", 42, false, 0},
		{"052", 42, false, 0},
		{"42u", 42, true, 0},
		{"42UL", 42, true, 1},
		{"42ull", 42, true, 2},
	}
	for _, c := range cases {
		toks := scanAll(t, c.src)
		tok := toks[0]
		if tok.Kind != INTLIT {
			t.Fatalf("%q: expected INTLIT, got %v", c.src, tok.Kind)
		}
		if tok.IntVal != c.val {
			t.Errorf("%q: value = %d, want %d", c.src, tok.IntVal, c.val)
		}
		if tok.Suffix.Unsigned != c.unsg || tok.Suffix.LongCount != c.long {
			t.Errorf("%q: suffix = %+v, want unsigned=%v long=%d", c.src, tok.Suffix, c.unsg, c.long)
		}
	}
}

func TestFloatLiteral(t *testing.T) {
	toks := scanAll(t, "3.14 2.5e-3f")
	if toks[0].Kind != FLOATLIT || toks[0].FloatVal != 3.14 || toks[0].IsFloat {
		t.Errorf("3.14 parsed wrong: %+v", toks[0])
	}
	if toks[1].Kind != FLOATLIT || !toks[1].IsFloat {
		t.Errorf("2.5e-3f parsed wrong: %+v", toks[1])
	}
}

func TestCharAndStringEscapes(t *testing.T) {
	toks := scanAll(t, `'\n' "a\tb\x41\0"`)
	if toks[0].Kind != CHARLIT || toks[0].IntVal != int64('\n') {
		t.Errorf("char literal: %+v", toks[0])
	}
	want := "a\tbA\x00"
	if toks[1].Kind != STRLIT || string(toks[1].StrVal) != want {
		t.Errorf("string literal = %q, want %q", toks[1].StrVal, want)
	}
}

func TestLineCommentsAndBlockComments(t *testing.T) {
	toks := scanAll(t, "int // trailing comment\nx /* inline */ = 1;")
	got := kinds(toks)
	want := []Kind{KW_INT, IDENT, ASSIGN, INTLIT, SEMI, EOF}
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestUnterminatedCommentIsAnError(t *testing.T) {
	lx := New("t.c", strings.NewReader("/* never closed"))
	_, err := lx.FetchToken()
	if err == nil {
		t.Fatal("expected an error for an unterminated block comment")
	}
}

func TestPreprocessorLineIsSkipped(t *testing.T) {
	toks := scanAll(t, "#include <stdio.h>\nint main;")
	got := kinds(toks)
	want := []Kind{KW_INT, IDENT, SEMI, EOF}
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d", len(got), len(want))
	}
}

func TestUngetTokenRoundTrips(t *testing.T) {
	lx := New("t.c", strings.NewReader("x y"))
	first, err := lx.FetchToken()
	if err != nil {
		t.Fatal(err)
	}
	lx.UngetToken(first)
	again, err := lx.FetchToken()
	if err != nil {
		t.Fatal(err)
	}
	if again.Name != first.Name {
		t.Errorf("unget round trip: got %q, want %q", again.Name, first.Name)
	}
	second, err := lx.FetchToken()
	if err != nil {
		t.Fatal(err)
	}
	if second.Name != "y" {
		t.Errorf("expected y after the unget round trip, got %q", second.Name)
	}
}

func TestConsumeMatchesAndPutsBackOnMismatch(t *testing.T) {
	lx := New("t.c", strings.NewReader("int x"))
	if _, ok, err := lx.Consume(KW_VOID); err != nil || ok {
		t.Fatalf("Consume(KW_VOID) on `int` should not match: ok=%v err=%v", ok, err)
	}
	tok, ok, err := lx.Consume(KW_INT)
	if err != nil || !ok || tok.Kind != KW_INT {
		t.Fatalf("Consume(KW_INT) should match: tok=%+v ok=%v err=%v", tok, ok, err)
	}
}
