package script

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinygo-org/gthread/scheduler"
)

func TestCases(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no test cases found")
	}
	for _, path := range paths {
		path := path
		t.Run(strings.TrimSuffix(filepath.Base(path), ".txtar"), func(t *testing.T) {
			c, err := LoadCase(path)
			if err != nil {
				t.Fatalf("LoadCase returned %v", err)
			}
			if err := c.Check(scheduler.Config{}); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		src  string
		line int
		msg  string
	}{
		{"", 1, "no procs declared"},
		{"yield\n", 1, `statement "yield" outside of a proc`},
		{"proc a\nproc a\n", 2, "proc a already declared on line 1"},
		{"proc\n", 1, "proc takes exactly one name"},
		{"proc a\n\tjump\n", 2, `unknown statement "jump"`},
		{"proc a\n\tjoin\n", 2, "join takes 1 arguments, got 0"},
		{"proc a\n\tprint\n", 2, "print needs at least one argument"},
		{"proc a\n\tsem s x\n", 2, `invalid initial value "x"`},
		{"proc a\n\trepeat -1 yield\n", 2, `invalid repeat count "-1"`},
		{"proc a\n\trepeat 2\n", 2, "repeat needs a count and a statement"},
		{"proc a\n\trepeat 2 repeat 2 spawn x b\n", 2, "spawn of undeclared proc b"},
		{"proc a\n\tprint \"open\n", 2, "EOF found when expecting closing quote"},
	} {
		_, err := Parse("test.gth", []byte(tc.src))
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q) returned %v, want a *ParseError", tc.src, err)
			continue
		}
		if perr.File != "test.gth" || perr.Line != tc.line || !strings.Contains(perr.Msg, tc.msg) {
			t.Errorf("Parse(%q) returned %q, want line %d and %q", tc.src, err, tc.line, tc.msg)
		}
	}
}

func TestParseRoot(t *testing.T) {
	p, err := Parse("", []byte("proc worker\n\tyield\nproc main\n\tspawn w worker\n\trepeat 3 print a b\n"))
	if err != nil {
		t.Fatalf("Parse returned %v", err)
	}
	if p.Root.Name != "main" {
		t.Errorf("root is %s, want main", p.Root.Name)
	}
	if len(p.Procs) != 2 || p.Lookup("worker") != p.Procs[0] {
		t.Errorf("unexpected procs %v", p.Procs)
	}
	if got := p.Root.Body[1].String(); got != "repeat 3 print a b" {
		t.Errorf("statement is %q", got)
	}
}

func TestRunFatal(t *testing.T) {
	p, err := Parse("fatal.gth", []byte("proc main\n\tprint start\n\trepeat 3 spawn w worker\n\tprint unreachable\nproc worker\n\tprint worker\n"))
	if err != nil {
		t.Fatalf("Parse returned %v", err)
	}
	var msgs []string
	out := &bytes.Buffer{}
	err = p.Run(scheduler.Config{
		MaxThreads: 3,
		Fatal: func(msg string) {
			msgs = append(msgs, msg)
		},
	}, out)
	var fe *scheduler.FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("Run returned %v, want a *FatalError", err)
	}
	want := "t1: start\nfatal: t1: could not allocate thread: limit of 3 threads reached\n"
	if out.String() != want {
		t.Errorf("output is %q, want %q", out.String(), want)
	}
	if len(msgs) != 1 {
		t.Errorf("Fatal hook called with %q", msgs)
	}
}

func TestCaseParseErrorPosition(t *testing.T) {
	archive := "comment\n-- output --\nt1: x\n-- scenario --\nproc main\n\tbogus\n"
	_, err := ParseCase("case.txtar", []byte(archive))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("ParseCase returned %v, want a *ParseError", err)
	}
	if perr.Line != 6 {
		t.Errorf("error is on line %d, want 6", perr.Line)
	}
}

func TestCaseMismatch(t *testing.T) {
	archive := "-- scenario --\nproc main\n\tprint a\n\tprint b\n-- output --\nt1: a\nt1: c\n"
	c, err := ParseCase("case.txtar", []byte(archive))
	if err != nil {
		t.Fatalf("ParseCase returned %v", err)
	}
	err = c.Check(scheduler.Config{})
	var merr *MismatchError
	if !errors.As(err, &merr) {
		t.Fatalf("Check returned %v, want a *MismatchError", err)
	}
	want := []string{"@@ line 2", "-t1: c", "+t1: b"}
	if merr.File != "output" || strings.Join(merr.Diff, "\n") != strings.Join(want, "\n") {
		t.Errorf("mismatch in %s: %q, want %q", merr.File, merr.Diff, want)
	}

	if _, err := ParseCase("x.txtar", []byte("-- output --\n")); err == nil {
		t.Errorf("ParseCase accepted an archive without a scenario")
	}
	if _, err := ParseCase("x.txtar", []byte("-- scenario --\nproc main\n-- extra --\n")); err == nil {
		t.Errorf("ParseCase accepted an unknown file")
	}
}

func TestDiffLines(t *testing.T) {
	for _, tc := range []struct {
		want, got string
		diff      []string
	}{
		{"a\nb\n", "a\nb\n", nil},
		{"a\nb\nc\n", "a\nc\n", []string{"@@ line 2", "-b"}},
		{"a\n", "a\nb\n", []string{"@@ line 2", "+b"}},
		{"a\nb\n", "x\nb\ny\n", []string{"@@ line 1", "-a", "+x", "@@ line 3", "+y"}},
		{"a\nb\nc\nd\n", "a\nB\nC\nd\n", []string{"@@ line 2", "-b", "-c", "+B", "+C"}},
		{"a\n", "", []string{"@@ line 1", "-a"}},
		{"a", "a\n", []string{"@@ missing newline at end of file"}},
	} {
		diff := diffLines([]byte(tc.want), []byte(tc.got))
		if strings.Join(diff, "|") != strings.Join(tc.diff, "|") || (diff == nil) != (tc.diff == nil) {
			t.Errorf("diffLines(%q, %q) = %q, want %q", tc.want, tc.got, diff, tc.diff)
		}
	}
}
