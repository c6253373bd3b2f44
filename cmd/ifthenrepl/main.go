// SPDX-License-Identifier: Apache-2.0

// Command ifthenrepl is a thin wrapper around repl.Start, configuring
// commonlog exactly as cmd/kanso-lsp did for the teacher's LSP binary.
package main

import (
	"fmt"
	"os"

	"ifthen/internal/enginelog"
	"ifthen/repl"
)

func main() {
	enginelog.Configure(1)
	fmt.Println("ifthenrepl — type `quit` to exit")
	repl.Start(os.Stdin)
}
