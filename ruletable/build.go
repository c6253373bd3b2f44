package ruletable

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"ifthen"
	"ifthen/dispatch"
	"ifthen/evaluator"
	"ifthen/ruletable/grammar"
	"ifthen/ruletable/token"
	"ifthen/status"
)

// Build walks a parsed Table and registers every chunk it declares onto
// engine, via Engine.ExtendChunk (spec.md §6). calls resolves a handler's
// `call "name"` target to the function the host actually wants run — the
// DSL itself carries no code (SPEC_FULL.md §6). Build stops at the first
// error; a caller that wants partial chunks removed should RemoveChunk the
// offending chunk's key itself (ExtendChunk already leaves prior chunks
// untouched on a later chunk's failure).
func Build(tbl *Table, engine *ifthen.Engine, calls map[string]dispatch.HandlerFunc) error {
	for _, chunk := range tbl.Chunks {
		if err := buildChunk(chunk, engine, calls); err != nil {
			return err
		}
	}
	return nil
}

func buildChunk(chunk *grammar.ChunkDecl, engine *ifthen.Engine, calls map[string]dispatch.HandlerFunc) error {
	name := unquote(chunk.Name)
	sc := newScope(name)
	chunkKey := chunkKeyFor(name)

	var statuses []ifthen.StatusRecord
	var expressions []ifthen.ExpressionRecord
	var handlers []ifthen.HandlerRecord

	// Pass 1: every status, so expression terms (processed in pass 2, in
	// file order) can reference a status declared anywhere in the chunk.
	for _, item := range chunk.Items {
		if item.Status == nil {
			continue
		}
		rec, err := buildStatus(sc, item.Status)
		if err != nil {
			return err
		}
		statuses = append(statuses, rec)
	}

	// Pass 2: expressions and handlers, in file order — a sub-expression
	// term may only reference an expression already resolved this pass
	// (Evaluator.RegisterExpression enforces the same rule), and a handler
	// may only reference an expression already resolved.
	for _, item := range chunk.Items {
		switch {
		case item.Expr != nil:
			rec, err := buildExpr(sc, item.Expr)
			if err != nil {
				return err
			}
			expressions = append(expressions, rec)
		case item.Handler != nil:
			rec, err := buildHandler(sc, item.Handler, calls)
			if err != nil {
				return err
			}
			handlers = append(handlers, rec)
		}
	}

	sCount, eCount, hCount := engine.ExtendChunk(chunkKey, statuses, expressions, handlers)
	if sCount != len(statuses) || eCount != len(expressions) || hCount != len(handlers) {
		b := newError(codeEngineRejected,
			"engine rejected a registration the builder thought was valid", posOf(chunk.Pos))
		if cause := engine.LastError(); cause != nil {
			b = b.withNote(cause.Error())
		}
		return b.build()
	}
	return nil
}

func buildStatus(sc *scope, decl *grammar.StatusDecl) (ifthen.StatusRecord, error) {
	pos := posOf(decl.Pos)
	valueKind, width, ok := parseType(decl.Type)
	if !ok {
		return ifthen.StatusRecord{}, newError(codeUnknownType,
			"unknown status type '"+decl.Type+"'", pos).
			withSuggestion("use bool, u8..u64, i8..i64, or f64").build()
	}
	init, ok := valueFromLiteral(decl.Value, valueKind, width)
	if !ok {
		return ifthen.StatusRecord{}, newError(codeBadLiteral,
			"initial value does not match declared type '"+decl.Type+"'", pos).build()
	}
	key, ok := sc.defineStatus(decl.Name, valueKind, init.Width())
	if !ok {
		return ifthen.StatusRecord{}, newError(codeDuplicateStatus,
			"status '"+decl.Name+"' already declared in this chunk", pos).build()
	}
	return ifthen.StatusRecord{Key: key, Init: init, Width: 0}, nil
}

func buildExpr(sc *scope, decl *grammar.ExprDecl) (ifthen.ExpressionRecord, error) {
	pos := posOf(decl.Pos)
	logic := evaluator.And
	if decl.Logic == "or" {
		logic = evaluator.Or
	}

	var comparisons []evaluator.Comparison
	var transitions []evaluator.Transition
	var subs []evaluator.SubExpression
	kind := evaluator.KindComparison
	kindSet := false

	for _, term := range decl.Terms {
		switch {
		case term.Sub != nil:
			if kindSet && kind != evaluator.KindSubExpression {
				return ifthen.ExpressionRecord{}, mixedKindErr(pos, decl.Name)
			}
			kind, kindSet = evaluator.KindSubExpression, true
			target, ok := sc.lookupExpr(term.Sub.Name)
			if !ok {
				return ifthen.ExpressionRecord{}, newError(codeUndeclaredRef,
					"sub-expression '"+term.Sub.Name+"' is not declared earlier in this chunk", pos).build()
			}
			subs = append(subs, evaluator.SubExpression{Expression: target, Expect: term.Sub.Expect == "true"})

		case term.Transition != nil:
			if kindSet && kind != evaluator.KindTransition {
				return ifthen.ExpressionRecord{}, mixedKindErr(pos, decl.Name)
			}
			kind, kindSet = evaluator.KindTransition, true
			statusSym, ok := sc.lookupStatus(term.Transition.Name)
			if !ok {
				return ifthen.ExpressionRecord{}, newError(codeUndeclaredRef,
					"status '"+term.Transition.Name+"' is not declared in this chunk", pos).build()
			}
			transitions = append(transitions, evaluator.Transition{Key: statusSym.statusKey})

		case term.Comparison != nil:
			if kindSet && kind != evaluator.KindComparison {
				return ifthen.ExpressionRecord{}, mixedKindErr(pos, decl.Name)
			}
			kind, kindSet = evaluator.KindComparison, true
			cmp, err := buildComparison(sc, term.Comparison, pos)
			if err != nil {
				return ifthen.ExpressionRecord{}, err
			}
			comparisons = append(comparisons, cmp)
		}
	}

	key, ok := sc.defineExpr(decl.Name)
	if !ok {
		return ifthen.ExpressionRecord{}, newError(codeDuplicateExpr,
			"expression '"+decl.Name+"' already declared in this chunk", pos).build()
	}

	return ifthen.ExpressionRecord{
		Key: key, Logic: logic, Kind: kind,
		Comparisons: comparisons, Transitions: transitions, Subs: subs,
	}, nil
}

func mixedKindErr(pos token.Position, exprName string) error {
	return newError(codeMixedTermKinds,
		"expression '"+exprName+"' mixes term kinds — an expression's terms must be all comparisons, all transitions, or all sub-expressions", pos).build()
}

func buildComparison(sc *scope, c *grammar.ComparisonTerm, pos token.Position) (evaluator.Comparison, error) {
	leftSym, ok := sc.lookupStatus(c.Left)
	if !ok {
		return evaluator.Comparison{}, newError(codeUndeclaredRef,
			"status '"+c.Left+"' is not declared in this chunk", pos).build()
	}
	op, ok := parseCompareOp(c.Op)
	if !ok {
		return evaluator.Comparison{}, newError(codeBadLiteral, "unknown comparison operator '"+c.Op+"'", pos).build()
	}

	cmp := evaluator.Comparison{Key: leftSym.statusKey, Op: op}
	switch {
	case c.RHS.Key != nil:
		rightSym, ok := sc.lookupStatus(*c.RHS.Key)
		if !ok {
			return evaluator.Comparison{}, newError(codeUndeclaredRef,
				"status '"+*c.RHS.Key+"' is not declared in this chunk", pos).build()
		}
		cmp.RightKey, cmp.UseRight = rightSym.statusKey, true
	default:
		right, ok := valueFromRHS(c.RHS, leftSym.valueKind, leftSym.width)
		if !ok {
			return evaluator.Comparison{}, newError(codeBadLiteral,
				"comparison value does not match the type of '"+c.Left+"'", pos).build()
		}
		cmp.Right = right
	}
	return cmp, nil
}

func buildHandler(sc *scope, decl *grammar.HandlerDecl, calls map[string]dispatch.HandlerFunc) (ifthen.HandlerRecord, error) {
	pos := posOf(decl.Pos)
	exprKey, ok := sc.lookupExpr(decl.Expr)
	if !ok {
		return ifthen.HandlerRecord{}, newError(codeUndeclaredRef,
			"expression '"+decl.Expr+"' is not declared in this chunk", pos).build()
	}

	nowMask, ok := maskFrom(decl.On.Now)
	if !ok {
		return ifthen.HandlerRecord{}, newError(codeBadCondition, "bad 'now' mask on handler for '"+decl.Expr+"'", pos).build()
	}
	lastMask, ok := maskFrom(decl.On.Last)
	if !ok {
		return ifthen.HandlerRecord{}, newError(codeBadCondition, "bad 'last' mask on handler for '"+decl.Expr+"'", pos).build()
	}
	condition, ok := dispatch.MakeCondition(nowMask, lastMask)
	if !ok {
		return ifthen.HandlerRecord{}, newError(codeBadCondition,
			"condition on handler for '"+decl.Expr+"' can never fire (stationary-only)", pos).
			withNote("last=X, now=X with nothing else set never reports a transition").build()
	}

	priority, err := strconv.ParseInt(decl.Priority, 10, 64)
	if err != nil {
		return ifthen.HandlerRecord{}, newError(codeBadLiteral, "bad priority '"+decl.Priority+"'", pos).build()
	}

	callName := unquote(decl.Call)
	fn, ok := calls[callName]
	if !ok {
		return ifthen.HandlerRecord{}, newError(codeUnknownCall,
			"no handler function registered for call target '"+callName+"'", pos).
			withSuggestion("pass it in the calls map given to ruletable.Build").build()
	}

	return ifthen.HandlerRecord{
		Expression: exprKey, Condition: condition, FuncID: dispatch.FuncID(callName),
		Priority: priority, Func: fn,
	}, nil
}

func maskFrom(alts []string) (dispatch.UnitMask, bool) {
	var mask dispatch.UnitMask
	for _, a := range alts {
		switch a {
		case "null":
			mask |= dispatch.Null
		case "false":
			mask |= dispatch.False
		case "true":
			mask |= dispatch.True
		default:
			return 0, false
		}
	}
	return mask, mask != 0
}

func parseType(typ string) (status.Kind, uint8, bool) {
	if typ == "bool" {
		return status.KindBool, 0, true
	}
	if typ == "f64" {
		return status.KindFloat, 0, true
	}
	if len(typ) < 2 {
		return 0, 0, false
	}
	w, err := strconv.ParseUint(typ[1:], 10, 8)
	if err != nil || w == 0 {
		return 0, 0, false
	}
	switch typ[0] {
	case 'u':
		return status.KindUnsigned, uint8(w), true
	case 'i':
		return status.KindSigned, uint8(w), true
	default:
		return 0, 0, false
	}
}

func parseCompareOp(op string) (status.CompareOp, bool) {
	switch op {
	case "==":
		return status.Eq, true
	case "!=":
		return status.Ne, true
	case "<":
		return status.Lt, true
	case "<=":
		return status.Le, true
	case ">":
		return status.Gt, true
	case ">=":
		return status.Ge, true
	default:
		return 0, false
	}
}

func valueFromLiteral(lit *grammar.Literal, kind status.Kind, width uint8) (status.Value, bool) {
	if lit.Bool != nil {
		if kind != status.KindBool {
			return status.Value{}, false
		}
		return status.Bool(*lit.Bool == "true"), true
	}
	if lit.Num != nil {
		return valueFromNum(*lit.Num, kind, width)
	}
	return status.Value{}, false
}

func valueFromRHS(rhs *grammar.RHS, kind status.Kind, width uint8) (status.Value, bool) {
	if rhs.BoolLit != nil {
		if kind != status.KindBool {
			return status.Value{}, false
		}
		return status.Bool(*rhs.BoolLit == "true"), true
	}
	if rhs.NumLit != nil {
		return valueFromNum(*rhs.NumLit, kind, width)
	}
	return status.Value{}, false
}

func valueFromNum(numStr string, kind status.Kind, width uint8) (status.Value, bool) {
	switch kind {
	case status.KindUnsigned:
		n, err := strconv.ParseUint(numStr, 10, 64)
		if err != nil {
			return status.Value{}, false
		}
		return status.Unsigned(n, width)
	case status.KindSigned:
		n, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return status.Value{}, false
		}
		return status.Signed(n, width)
	case status.KindFloat:
		f, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return status.Value{}, false
		}
		return status.Float(f), true
	default:
		return status.Value{}, false
	}
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

func posOf(pos lexer.Position) token.Position {
	return token.Position{Filename: pos.Filename, Line: pos.Line, Column: pos.Column}
}
