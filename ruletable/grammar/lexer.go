package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes a ruletable source file. Grounded on the teacher's
// grammar/lexer.go: one "Root" state, ordered rules, regex-only — the DSL
// has no nested lexer states (no string interpolation, no raw blocks) so a
// single state suffices.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"String", `"[^"]*"`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Float", `-?[0-9]+\.[0-9]+`, nil},
		{"Int", `-?[0-9]+`, nil},
		{"Operator", `(==|!=|<=|>=|<|>|=|\|)`, nil},
		{"Punct", `[{}():,]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
