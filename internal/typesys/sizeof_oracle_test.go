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

package typesys

import (
	"testing"

	"modernc.org/cc/v4"
)

// fixtureSource exercises the same struct layout TestFinishStructPadsForAlignment
// lays out by hand: a trailing-padded char/int/char struct.
const fixtureSource = `
struct s { char a; int b; char c; };
union u { char a; double b; };
int arr[10];
struct s global_s;
union u global_u;
`

// TestFixtureSourceIsValidC99 parses the same declarations Sizeof/FinishStruct
// are exercised against through a real C99 front end (modernc.org/cc/v4), the
// pack's only independent C parser. It does not re-derive sizes from cc's own
// type system (cc/v4's internal Type/Declarator API is its own, separate
// surface); it confirms the fixtures this package's layout tests assume are
// themselves well-formed C99, rather than accidentally testing an ill-formed
// program against hand-written layout logic.
func TestFixtureSourceIsValidC99(t *testing.T) {
	cfg, err := cc.NewConfig("linux", "amd64")
	if err != nil {
		t.Fatalf("cc.NewConfig: %v", err)
	}
	_, err = cc.Parse(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: "fixture.c", Value: fixtureSource},
	})
	if err != nil {
		t.Fatalf("cc.Parse rejected the layout-test fixture as invalid C99: %v", err)
	}
}
