// Package repl is an interactive console driving the engine (grounded on
// the teacher's repl/repl.go bufio.NewScanner read loop and ">> " prompt,
// repointed at ifthen/ruletable instead of the Kanso parser):
//
//	load <file>
//	assign <status> <op> <value> [delay]
//	tick
//	status <status>
//	handlers <expr>
//	quit
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ifthen"
	"ifthen/dispatch"
	"ifthen/keys"
	"ifthen/queue"
	"ifthen/ruletable"
	"ifthen/status"
)

// PROMPT is printed before reading each command.
const PROMPT = ">> "

// declaredHandler is one `handler <expr> ... call "<name>"` line from the
// most recently loaded file, kept so `handlers <expr>` has something to
// enumerate (the engine itself only answers FindHandler(expr, id), not
// "list handlers for expr" — see Session.handlers).
type declaredHandler struct {
	exprName string
	funcID   dispatch.FuncID
}

// Session is one REPL's live state: the engine being driven, the last
// loaded ruletable's chunk/status/expr names (so commands can take names
// instead of raw uint64 keys), and the call table a loaded file's `call`
// targets resolve against.
type Session struct {
	Engine *ifthen.Engine
	Calls  map[string]dispatch.HandlerFunc
	Out    io.Writer

	chunkOf  map[string]string // status or expr name -> owning chunk name
	handlers []declaredHandler
}

// NewSession returns a Session ready to `load` a file into, writing command
// output to out.
func NewSession(calls map[string]dispatch.HandlerFunc, out io.Writer) *Session {
	return &Session{
		Engine:  ifthen.New(8, 64, 64, 64),
		Calls:   calls,
		Out:     out,
		chunkOf: make(map[string]string),
	}
}

// Start runs the read-eval-print loop against in with a fresh Session
// writing to stdout and no pre-registered call targets — a host that wants
// `call` targets to actually do something should build its own Session with
// NewSession and call StartSession instead.
func Start(in io.Reader) {
	StartSession(NewSession(map[string]dispatch.HandlerFunc{}, os.Stdout), in)
}

// StartSession runs the read loop against an existing Session, so a caller
// can pre-register call targets and inspect state afterward.
func StartSession(s *Session, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.Out, PROMPT)
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !s.eval(line) {
			return
		}
	}
}

func (s *Session) eval(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return false
	case "load":
		s.cmdLoad(args)
	case "assign":
		s.cmdAssign(args)
	case "tick":
		s.Engine.Tick()
		fmt.Fprintln(s.Out, "ticked")
	case "status":
		s.cmdStatus(args)
	case "handlers":
		s.cmdHandlers(args)
	default:
		fmt.Fprintf(s.Out, "unknown command %q\n", cmd)
	}
	return true
}

func (s *Session) cmdLoad(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.Out, "usage: load <file>")
		return
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(s.Out, "error: %s\n", err)
		return
	}
	tbl, err := ruletable.Parse(args[0], string(src))
	if err != nil {
		fmt.Fprintf(s.Out, "parse error: %s\n", err)
		return
	}
	if err := ruletable.Build(tbl, s.Engine, s.Calls); err != nil {
		fmt.Fprintf(s.Out, "build error: %s\n", err)
		return
	}
	s.indexTable(tbl)
	fmt.Fprintf(s.Out, "loaded %d chunk(s) from %s\n", len(tbl.Chunks), args[0])
}

// indexTable records which chunk each declared status/expression name
// belongs to, and every handler's (expr name, call target) pair, purely so
// later commands can take the DSL's own names.
func (s *Session) indexTable(tbl *ruletable.Table) {
	for _, chunk := range tbl.Chunks {
		chunkName := strings.Trim(chunk.Name, `"`)
		for _, item := range chunk.Items {
			switch {
			case item.Status != nil:
				s.chunkOf[item.Status.Name] = chunkName
			case item.Expr != nil:
				s.chunkOf[item.Expr.Name] = chunkName
			case item.Handler != nil:
				s.handlers = append(s.handlers, declaredHandler{
					exprName: item.Handler.Expr,
					funcID:   dispatch.FuncID(strings.Trim(item.Handler.Call, `"`)),
				})
			}
		}
	}
}

func (s *Session) statusKey(name string) (keys.StatusKey, bool) {
	chunk, ok := s.chunkOf[name]
	if !ok {
		return 0, false
	}
	return ruletable.StatusKey(chunk, name), true
}

func (s *Session) exprKey(name string) (keys.ExpressionKey, bool) {
	chunk, ok := s.chunkOf[name]
	if !ok {
		return 0, false
	}
	return ruletable.ExpressionKey(chunk, name), true
}

func (s *Session) cmdAssign(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.Out, "usage: assign <status> <op> <value> [delay]")
		return
	}
	key, ok := s.statusKey(args[0])
	if !ok {
		fmt.Fprintf(s.Out, "unknown status %q (load a file first)\n", args[0])
		return
	}
	op, ok := parseAssignOp(args[1])
	if !ok {
		fmt.Fprintf(s.Out, "unknown op %q\n", args[1])
		return
	}
	current := s.Engine.FindStatus(key)
	value, ok := parseValue(args[2], current.Kind(), current.Width())
	if !ok {
		fmt.Fprintf(s.Out, "value %q does not match status %q's type\n", args[2], args[0])
		return
	}
	delay := queue.Follow
	if len(args) > 3 {
		delay, ok = parseDelay(args[3])
		if !ok {
			fmt.Fprintf(s.Out, "unknown delay %q\n", args[3])
			return
		}
	}
	s.Engine.AccumulatorMut().Enqueue(queue.StatusAssignment{Key: key, Op: op, Value: value}, delay)
	fmt.Fprintln(s.Out, "enqueued")
}

func (s *Session) cmdStatus(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.Out, "usage: status <status>")
		return
	}
	key, ok := s.statusKey(args[0])
	if !ok {
		fmt.Fprintf(s.Out, "unknown status %q\n", args[0])
		return
	}
	fmt.Fprintln(s.Out, formatValue(s.Engine.FindStatus(key)))
}

func (s *Session) cmdHandlers(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.Out, "usage: handlers <expr>")
		return
	}
	exprKey, ok := s.exprKey(args[0])
	if !ok {
		fmt.Fprintf(s.Out, "unknown expression %q\n", args[0])
		return
	}
	found := false
	for _, h := range s.handlers {
		if h.exprName != args[0] {
			continue
		}
		info, ok := s.Engine.FindHandler(exprKey, h.funcID)
		if !ok {
			continue
		}
		found = true
		fmt.Fprintf(s.Out, "%s: priority=%d condition=%d\n", h.funcID, info.Priority, info.Condition)
	}
	if !found {
		fmt.Fprintln(s.Out, "(none)")
	}
}

func parseAssignOp(s string) (status.AssignOp, bool) {
	switch s {
	case "copy":
		return status.Copy, true
	case "add":
		return status.Add, true
	case "sub":
		return status.Sub, true
	case "mul":
		return status.Mul, true
	case "mod":
		return status.Mod, true
	case "or":
		return status.Or, true
	case "xor":
		return status.Xor, true
	case "and":
		return status.And, true
	case "div":
		return status.Div, true
	default:
		return 0, false
	}
}

func parseDelay(s string) (queue.Delay, bool) {
	switch s {
	case "follow":
		return queue.Follow, true
	case "yield":
		return queue.Yield, true
	case "block":
		return queue.Block, true
	case "nonblock":
		return queue.Nonblock, true
	default:
		return 0, false
	}
}

func parseValue(s string, kind status.Kind, width uint8) (status.Value, bool) {
	switch kind {
	case status.KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return status.Value{}, false
		}
		return status.Bool(b), true
	case status.KindUnsigned:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return status.Value{}, false
		}
		return status.Unsigned(n, width)
	case status.KindSigned:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return status.Value{}, false
		}
		return status.Signed(n, width)
	case status.KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return status.Value{}, false
		}
		return status.Float(f), true
	default:
		return status.Value{}, false
	}
}

func formatValue(v status.Value) string {
	switch v.Kind() {
	case status.KindBool:
		b, _ := v.BoolValue()
		return strconv.FormatBool(b)
	case status.KindUnsigned:
		n, _ := v.UnsignedValue()
		return strconv.FormatUint(n, 10)
	case status.KindSigned:
		n, _ := v.SignedValue()
		return strconv.FormatInt(n, 10)
	case status.KindFloat:
		f, _ := v.FloatValue()
		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		return "<empty>"
	}
}
