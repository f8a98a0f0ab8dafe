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

// Package diag implements the single fatal-diagnostic error model
// described in spec.md §7: every stage error aborts the translation unit
// with one formatted message, never a recovered list.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies which stage raised the error, per spec.md §7.
type Kind int

const (
	Lex Kind = iota
	Parse
	Sema
	ConstEval
	IR
	Emit
)

func (k Kind) String() string {
	switch k {
	case Lex:
		return "lex"
	case Parse:
		return "parse"
	case Sema:
		return "sema"
	case ConstEval:
		return "const-eval"
	case IR:
		return "ir"
	case Emit:
		return "emit"
	default:
		return "error"
	}
}

// Pos is the source coordinate a diagnostic anchors to: spec.md's Line
// triple plus a column into that line's text.
type Pos struct {
	File string
	Line int
	Col  int
	Text string // the line's text as read so far (up to Col), for the caret rendering; text past Col is not included
}

// Error is the single error type every stage returns. Wrapping an inner
// cause with github.com/pkg/errors preserves the original failure (e.g. a
// strconv error during literal parsing) while the outer message keeps the
// "filename:line:col: error: <message>" shape spec.md §6 mandates.
type Error struct {
	Kind Kind
	Pos  Pos
	Msg  string
	// Cause is the underlying error, if any, wrapped with pkg/errors so
	// %+v prints a stack trace during development builds.
	Cause error
}

func New(kind Kind, pos Pos, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new diagnostic, the way an emitter failure might
// wrap an io.Writer error encountered while flushing assembly text.
func Wrap(cause error, kind Kind, pos Pos, format string, args ...interface{}) *Error {
	return &Error{
		Kind:  kind,
		Pos:   pos,
		Msg:   fmt.Sprintf(format, args...),
		Cause: errors.Wrap(cause, kind.String()),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: error: %s", e.Pos.File, e.Pos.Line, e.Pos.Col, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Format renders the diagnostic spec.md §6 requires as three lines: the
// message line, the source line text held in Pos.Text, and a caret under
// the span start.
func (e *Error) Format() string {
	caret := ""
	for i := 1; i < e.Pos.Col; i++ {
		caret += " "
	}
	caret += "^"
	return fmt.Sprintf("%s\n%s\n%s", e.Error(), e.Pos.Text, caret)
}

// Cause unwraps to the innermost error via pkg/errors, for callers (the
// driver) that want the root cause rather than the formatted diagnostic.
func Cause(err error) error {
	return errors.Cause(err)
}
