// SPDX-License-Identifier: Apache-2.0

// Command ifthenctl is a batch runner: it loads a ruletable file, wires a
// logging handler onto every declared `call` target, runs a configurable
// number of ticks, and prints each firing. Grounded on the teacher's
// cmd/kanso-cli/main.go shape (flag-free os.Args parsing, fatih/color
// pass/fail banners, friendly positional error reporting).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"

	"ifthen"
	"ifthen/dispatch"
	"ifthen/keys"
	"ifthen/ruletable"
	"ifthen/status"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: ifthenctl <file.rt> [ticks]")
		os.Exit(1)
	}
	path := os.Args[1]

	ticks := 1
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n < 0 {
			color.Red("bad tick count %q", os.Args[2])
			os.Exit(1)
		}
		ticks = n
	}

	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("failed to read file: %s", err)
		os.Exit(1)
	}

	tbl, err := ruletable.Parse(path, string(source))
	if err != nil {
		color.Red("❌ %s", err)
		os.Exit(1)
	}

	engine := ifthen.New(8, 64, 64, 64)
	calls := make(map[string]dispatch.HandlerFunc)
	for _, name := range ruletable.CallTargets(tbl) {
		calls[name] = loggingHandler(name)
	}

	if err := ruletable.Build(tbl, engine, calls); err != nil {
		color.Red("❌ %s", err)
		os.Exit(1)
	}

	for i := 0; i < ticks; i++ {
		engine.Tick()
	}

	color.Green("✅ ran %d tick(s) over %d chunk(s) from %s", ticks, len(tbl.Chunks), path)
}

// loggingHandler returns a HandlerFunc that prints the (now, last)
// transition it was called with under callName — the default behavior a
// batch run gives every declared `call` target that doesn't do anything
// else.
func loggingHandler(callName string) dispatch.HandlerFunc {
	return func(expr keys.ExpressionKey, now, last status.Tri) {
		fmt.Printf("%s: expr=%d now=%s last=%s\n", callName, expr, now, last)
	}
}
