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

import "ccgo/internal/diag"

// Kind tags a Token's variant, mirroring the ~60-kind tagged union
// spec.md §3 describes for punctuation, operators, keywords and literals.
type Kind int

const (
	EOF Kind = iota
	IDENT
	INTLIT
	FLOATLIT
	CHARLIT
	STRLIT

	// Punctuation / operators
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	COMMA
	SEMI
	COLON
	QUESTION
	DOT
	ARROW
	ELLIPSIS

	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	AMP
	PIPE
	CARET
	TILDE
	BANG
	ANDAND
	OROR
	SHL
	SHR
	LT
	GT
	LE
	GE
	EQ
	NE

	ASSIGN
	PLUS_ASSIGN
	MINUS_ASSIGN
	STAR_ASSIGN
	SLASH_ASSIGN
	PERCENT_ASSIGN
	AMP_ASSIGN
	PIPE_ASSIGN
	CARET_ASSIGN
	SHL_ASSIGN
	SHR_ASSIGN

	INC
	DEC

	// Keywords
	KW_VOID
	KW_CHAR
	KW_SHORT
	KW_INT
	KW_LONG
	KW_FLOAT
	KW_DOUBLE
	KW_SIGNED
	KW_UNSIGNED
	KW_STRUCT
	KW_UNION
	KW_ENUM
	KW_TYPEDEF
	KW_STATIC
	KW_EXTERN
	KW_CONST
	KW_SIZEOF
	KW_IF
	KW_ELSE
	KW_WHILE
	KW_FOR
	KW_DO
	KW_SWITCH
	KW_CASE
	KW_DEFAULT
	KW_BREAK
	KW_CONTINUE
	KW_RETURN
	KW_GOTO
	KW_ASM
)

var keywords = map[string]Kind{
	"void":     KW_VOID,
	"char":     KW_CHAR,
	"short":    KW_SHORT,
	"int":      KW_INT,
	"long":     KW_LONG,
	"float":    KW_FLOAT,
	"double":   KW_DOUBLE,
	"signed":   KW_SIGNED,
	"unsigned": KW_UNSIGNED,
	"struct":   KW_STRUCT,
	"union":    KW_UNION,
	"enum":     KW_ENUM,
	"typedef":  KW_TYPEDEF,
	"static":   KW_STATIC,
	"extern":   KW_EXTERN,
	"const":    KW_CONST,
	"sizeof":   KW_SIZEOF,
	"if":       KW_IF,
	"else":     KW_ELSE,
	"while":    KW_WHILE,
	"for":      KW_FOR,
	"do":       KW_DO,
	"switch":   KW_SWITCH,
	"case":     KW_CASE,
	"default":  KW_DEFAULT,
	"break":    KW_BREAK,
	"continue": KW_CONTINUE,
	"return":   KW_RETURN,
	"goto":     KW_GOTO,
	"__asm__":  KW_ASM,
	"asm":      KW_ASM,
}

// IntSuffix records which of u/l/ll qualifiers followed an integer literal;
// the parser uses it to pick the literal's Type (spec.md §4.1).
type IntSuffix struct {
	Unsigned  bool
	LongCount int // 0, 1 (l) or 2 (ll)
}

// Token is the lexer's single output variant. Payload fields are only
// meaningful for the Kind that produces them; Name is set for IDENT (and
// carries the interned spelling so equality is by identity at the ast
// layer), IntVal/FloatVal/StrVal/Suffix for the literal kinds.
type Token struct {
	Kind Kind
	Pos  diag.Pos

	Name string // raw spelling for IDENT, keywords, and punctuation (for diagnostics)

	IntVal   int64
	FloatVal float64
	StrVal   []byte // decoded bytes for CHARLIT/STRLIT (escapes already resolved)
	Suffix   IntSuffix
	IsFloat  bool // FLOATLIT: 'f'/'F' suffix => float, else double
}

func (t Token) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Kind.describe()
}

func (k Kind) describe() string {
	switch k {
	case EOF:
		return "<eof>"
	case IDENT:
		return "<identifier>"
	case INTLIT:
		return "<integer>"
	case FLOATLIT:
		return "<float>"
	case CHARLIT:
		return "<char>"
	case STRLIT:
		return "<string>"
	default:
		return "<token>"
	}
}
