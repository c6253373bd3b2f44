package ruletable

import (
	"ifthen/keys"
	"ifthen/status"
)

type symbolKind int8

const (
	symStatus symbolKind = iota
	symExpr
)

type symbol struct {
	kind      symbolKind
	statusKey keys.StatusKey
	valueKind status.Kind
	width     uint8
	exprKey   keys.ExpressionKey
}

// scope is one chunk's symbol table: status and expression names declared
// so far in that chunk, resolved in file order. Grounded on the teacher's
// internal/semantic/symbols.go SymbolTable (Define/Lookup), trimmed to the
// two symbol kinds ruletable needs and without the parent-scope chain —
// chunks here don't nest or share names the way Kanso's blocks do.
type scope struct {
	chunkName string
	names     map[string]symbol
}

func newScope(chunkName string) *scope {
	return &scope{chunkName: chunkName, names: make(map[string]symbol)}
}

func (s *scope) defineStatus(name string, valueKind status.Kind, width uint8) (keys.StatusKey, bool) {
	if _, exists := s.names[name]; exists {
		return 0, false
	}
	key := keys.StatusKey(hashName(s.chunkName, name))
	s.names[name] = symbol{kind: symStatus, statusKey: key, valueKind: valueKind, width: width}
	return key, true
}

func (s *scope) defineExpr(name string) (keys.ExpressionKey, bool) {
	if _, exists := s.names[name]; exists {
		return 0, false
	}
	key := keys.ExpressionKey(hashName(s.chunkName, name))
	s.names[name] = symbol{kind: symExpr, exprKey: key}
	return key, true
}

func (s *scope) lookupStatus(name string) (symbol, bool) {
	sym, ok := s.names[name]
	if !ok || sym.kind != symStatus {
		return symbol{}, false
	}
	return sym, true
}

func (s *scope) lookupExpr(name string) (keys.ExpressionKey, bool) {
	sym, ok := s.names[name]
	if !ok || sym.kind != symExpr {
		return 0, false
	}
	return sym.exprKey, true
}
