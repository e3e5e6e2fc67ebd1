// Package script runs thread scenarios: small line-based programs that drive
// a scheduler, and golden archives that pin down their output.
//
// A scenario is a list of procedures. Each procedure is a list of statements
// that a thread runs in order:
//
//	proc main
//	    sem s 0
//	    spawn a worker
//	    print started
//	    signal s
//	    join a
//
//	proc worker
//	    wait s
//	    repeat 2 print working
//
// The procedure named main, or the first one if there is none, runs in the
// root thread. Lines are split into words like a shell would; text after a #
// at the start of a word is a comment.
package script

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// ParseError is a syntax or semantic error in a scenario.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Program is a parsed scenario.
type Program struct {
	File string

	// All procedures, in the order they were declared.
	Procs []*Proc

	// Root procedure, run by the first thread.
	Root *Proc

	byName map[string]*Proc
}

// Proc is a single procedure.
type Proc struct {
	Name string
	Line int
	Body []*Stmt
}

// Stmt is a single statement. Repeat statements have Count and Body set.
type Stmt struct {
	Line  int
	Op    string
	Args  []string
	Count int
	Body  *Stmt
}

func (st *Stmt) String() string {
	if st.Op == "repeat" {
		return fmt.Sprintf("repeat %d %v", st.Count, st.Body)
	}
	return strings.TrimSpace(st.Op + " " + strings.Join(st.Args, " "))
}

// Lookup returns the procedure with the given name, or nil.
func (p *Program) Lookup(name string) *Proc {
	return p.byName[name]
}

// Number of arguments for every statement. -1 means one or more words.
var arity = map[string]int{
	"spawn":   2,
	"yield":   0,
	"join":    1,
	"joinall": 0,
	"exit":    0,
	"sem":     2,
	"wait":    1,
	"signal":  1,
	"destroy": 1,
	"lock":    1,
	"unlock":  1,
	"print":   -1,
}

// ParseFile reads and parses the scenario at path.
func ParseFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse parses a scenario. The file name is only used in errors.
func Parse(file string, data []byte) (*Program, error) {
	return parse(file, data, 0)
}

// parse parses a scenario that starts after the given number of lines of
// file.
func parse(file string, data []byte, lineOffset int) (*Program, error) {
	p := &Program{
		File:   file,
		byName: make(map[string]*Proc),
	}
	type spawnRef struct {
		line int
		name string
	}
	var spawns []spawnRef

	for i, line := range bytes.Split(data, []byte("\n")) {
		lineno := lineOffset + i + 1
		errorf := func(format string, args ...any) error {
			return &ParseError{File: file, Line: lineno, Msg: fmt.Sprintf(format, args...)}
		}
		words, err := shlex.Split(string(line))
		if err != nil {
			return nil, errorf("%v", err)
		}
		if len(words) == 0 {
			continue
		}

		if words[0] == "proc" {
			if len(words) != 2 {
				return nil, errorf("proc takes exactly one name")
			}
			name := words[1]
			if prev := p.byName[name]; prev != nil {
				return nil, errorf("proc %s already declared on line %d", name, prev.Line)
			}
			proc := &Proc{Name: name, Line: lineno}
			p.Procs = append(p.Procs, proc)
			p.byName[name] = proc
			continue
		}

		if len(p.Procs) == 0 {
			return nil, errorf("statement %q outside of a proc", words[0])
		}
		st, err := parseStmt(words, lineno)
		if err != nil {
			return nil, errorf("%v", err)
		}
		for s := st; s != nil; s = s.Body {
			if s.Op == "spawn" {
				spawns = append(spawns, spawnRef{lineno, s.Args[1]})
			}
		}
		proc := p.Procs[len(p.Procs)-1]
		proc.Body = append(proc.Body, st)
	}

	if len(p.Procs) == 0 {
		return nil, &ParseError{File: file, Line: lineOffset + 1, Msg: "no procs declared"}
	}
	for _, ref := range spawns {
		if p.byName[ref.name] == nil {
			return nil, &ParseError{File: file, Line: ref.line, Msg: fmt.Sprintf("spawn of undeclared proc %s", ref.name)}
		}
	}
	p.Root = p.byName["main"]
	if p.Root == nil {
		p.Root = p.Procs[0]
	}
	return p, nil
}

func parseStmt(words []string, line int) (*Stmt, error) {
	op, args := words[0], words[1:]
	if op == "repeat" {
		if len(args) < 2 {
			return nil, fmt.Errorf("repeat needs a count and a statement")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid repeat count %q", args[0])
		}
		body, err := parseStmt(args[1:], line)
		if err != nil {
			return nil, err
		}
		return &Stmt{Line: line, Op: op, Count: n, Body: body}, nil
	}

	n, ok := arity[op]
	if !ok {
		return nil, fmt.Errorf("unknown statement %q", op)
	}
	switch {
	case n < 0 && len(args) == 0:
		return nil, fmt.Errorf("%s needs at least one argument", op)
	case n >= 0 && len(args) != n:
		return nil, fmt.Errorf("%s takes %d arguments, got %d", op, n, len(args))
	}
	if op == "sem" {
		if _, err := strconv.Atoi(args[1]); err != nil {
			return nil, fmt.Errorf("invalid initial value %q", args[1])
		}
	}
	return &Stmt{Line: line, Op: op, Args: args}, nil
}
