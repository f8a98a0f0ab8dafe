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

// Command ccgo compiles a single C99-subset translation unit to
// GNU-assembler-syntax text (spec.md §4, the whole lexer→...→emitter
// pipeline).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"ccgo/internal/diag"
	"ccgo/internal/emit"
	"ccgo/internal/parse"
	"ccgo/internal/target"
	"ccgo/internal/typesys"
)

var (
	targetName string
	outPath    string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:          "ccgo <file.c>",
		Short:        "Compile a C99-subset translation unit to assembler text",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}
	root.Flags().StringVar(&targetName, "target", "amd64-sysv", "amd64-sysv|amd64-darwin|arm64")
	root.Flags().StringVarP(&outPath, "output", "o", "", "output file (default: stdout)")
	root.Flags().BoolVar(&debug, "debug", false, "dump each function's IR after register allocation to stderr")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	tgt, ok := target.ByName(targetName)
	if !ok {
		return fmt.Errorf("unknown -target %q", targetName)
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := typesys.NewContext()
	root, err := parse.Parse(ctx, path, f)
	if err != nil {
		printDiag(err)
		return err
	}

	u := emit.NewUnit(ctx, tgt)
	if debug {
		u.Debug = log.New(os.Stderr, "ccgo: ", 0)
	}
	text, err := u.Emit(root)
	if err != nil {
		printDiag(err)
		return err
	}

	if outPath == "" {
		_, err = fmt.Print(text)
		return err
	}
	return os.WriteFile(outPath, []byte(text), 0o644)
}

func printDiag(err error) {
	if e, ok := err.(*diag.Error); ok {
		fmt.Fprintln(os.Stderr, e.Format())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}
