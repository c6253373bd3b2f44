// Package grammar is the ruletable DSL's lexer and grammar: a
// participle/v2-driven parser over the text form
//
//	chunk "combat" {
//	    status  hp      : u8   = 100
//	    status  hp_low  : bool = false
//
//	    expr  low_hp = and { hp < 20 }
//	    expr  dying  = or  { sub dying expect=false, hp == 0 }
//
//	    handler low_hp on (last=false, now=true) priority 0 call "OnLowHP"
//	}
//
// Grounded on the teacher's grammar/grammar.go struct-tag style (Program,
// Module, Struct, ...), repointed at this DSL's chunk/status/expr/handler
// shape instead of Kanso's module/struct/function shape.
package grammar

import "github.com/alecthomas/participle/v2/lexer"

// Table is the whole parsed file: a sequence of chunk declarations.
type Table struct {
	Chunks []*ChunkDecl `@@*`
}

// ChunkDecl is one `chunk "name" { ... }` block. Its body is an unordered
// mix of status/expr/handler declarations, matching the DSL example above
// (expr and handler lines interleave with status lines).
type ChunkDecl struct {
	Pos   lexer.Position
	Name  string  `"chunk" @String "{"`
	Items []*Item `@@*`
	Close string  `"}"`
}

// Item is one declaration inside a chunk body.
type Item struct {
	Status  *StatusDecl  `  @@`
	Expr    *ExprDecl    `| @@`
	Handler *HandlerDecl `| @@`
}

// StatusDecl is `status <name> : <type> = <literal>`.
type StatusDecl struct {
	Pos   lexer.Position
	Name  string   `"status" @Ident ":"`
	Type  string   `@Ident`
	Value *Literal `"=" @@`
}

// ExprDecl is `expr <name> = and|or { <term>, <term>, ... }`.
type ExprDecl struct {
	Pos   lexer.Position
	Name  string  `"expr" @Ident "="`
	Logic string  `@("and" | "or")`
	Terms []*Term `"{" @@ { "," @@ } "}"`
}

// Term is one element of an expression's term list — exactly one of its
// fields is populated, distinguished by leading keyword (sub/transition) or,
// absent either, a plain comparison.
type Term struct {
	Pos        lexer.Position
	Sub        *SubTerm        `(  @@`
	Transition *TransitionTerm ` | @@`
	Comparison *ComparisonTerm ` | @@ )`
}

// SubTerm is `sub <expr-name> expect=true|false`.
type SubTerm struct {
	Name   string `"sub" @Ident`
	Expect string `"expect" "=" @("true" | "false")`
}

// TransitionTerm is `transition <status-name>`.
type TransitionTerm struct {
	Name string `"transition" @Ident`
}

// ComparisonTerm is `<status-name> <op> <rhs>`.
type ComparisonTerm struct {
	Left string `@Ident`
	Op   string `@("==" | "!=" | "<=" | ">=" | "<" | ">")`
	RHS  *RHS   `@@`
}

// RHS is a comparison's right-hand side: a literal value, or another
// status's name. BoolLit/NumLit are tried before the bare-Ident fallback so
// the literal keywords "true"/"false" don't get swallowed as status
// references.
type RHS struct {
	BoolLit *string `(  @("true" | "false")`
	NumLit  *string ` | @(Float | Int)`
	Key     *string ` | @Ident )`
}

// HandlerDecl is `handler <expr-name> on (last=<mask>, now=<mask>) priority <n> call "<name>"`.
type HandlerDecl struct {
	Pos      lexer.Position
	Expr     string    `"handler" @Ident`
	On       *OnClause `"on" "(" @@ ")"`
	Priority string    `"priority" @(Int)`
	Call     string    `"call" @String`
}

// OnClause is a handler's (last=..., now=...) condition, each side a
// pipe-separated set of "null"/"false"/"true".
type OnClause struct {
	Last []string `"last" "=" @("null" | "false" | "true") { "|" @("null" | "false" | "true") } ","`
	Now  []string `"now" "=" @("null" | "false" | "true") { "|" @("null" | "false" | "true") }`
}

// Literal is a status's declared initial value: a bool keyword, or a
// number (interpreted against the status's declared type by the builder).
type Literal struct {
	Pos  lexer.Position
	Bool *string `(  @("true" | "false")`
	Num  *string ` | @(Float | Int) )`
}
