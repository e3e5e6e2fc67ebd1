package script

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/tools/txtar"

	"github.com/tinygo-org/gthread/scheduler"
)

// Files of a golden archive.
const (
	scenarioFile = "scenario"
	outputFile   = "output"
	traceFile    = "trace"
)

// Case is a golden archive: a scenario together with its expected output and,
// optionally, its expected trace.
type Case struct {
	Path    string
	Program *Program
	Output  []byte

	// Nil if the archive doesn't pin down the trace.
	Trace []byte
}

// MismatchError is returned by Check when a scenario doesn't behave as its
// archive expects.
type MismatchError struct {
	Path string

	// Name of the archive file that didn't match.
	File string

	// Differing lines, prefixed with "-" for expected lines and "+" for
	// actual lines.
	Diff []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %s mismatch:\n%s", e.Path, e.File, strings.Join(e.Diff, "\n"))
}

// LoadCase reads the golden archive at path.
func LoadCase(path string) (*Case, error) {
	a, err := txtar.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return newCase(path, a)
}

// ParseCase parses a golden archive. The path is only used in errors.
func ParseCase(path string, data []byte) (*Case, error) {
	return newCase(path, txtar.Parse(data))
}

func newCase(path string, a *txtar.Archive) (*Case, error) {
	c := &Case{Path: path}
	// Line numbers in parse errors refer to the archive itself.
	line := bytes.Count(a.Comment, []byte("\n"))
	for _, f := range a.Files {
		line++
		switch f.Name {
		case scenarioFile:
			prog, err := parse(path, f.Data, line)
			if err != nil {
				return nil, err
			}
			c.Program = prog
		case outputFile:
			c.Output = f.Data
		case traceFile:
			c.Trace = f.Data
		default:
			return nil, fmt.Errorf("%s: unexpected file %q in archive", path, f.Name)
		}
		line += bytes.Count(f.Data, []byte("\n"))
	}
	if c.Program == nil {
		return nil, fmt.Errorf("%s: archive has no %s file", path, scenarioFile)
	}
	if c.Output == nil {
		return nil, fmt.Errorf("%s: archive has no %s file", path, outputFile)
	}
	return c, nil
}

// Run runs the scenario of the archive and returns its output and its trace.
// The error of the session, if any, is already part of the output.
func (c *Case) Run(cfg scheduler.Config) (output, trace []byte) {
	var out, tr bytes.Buffer
	tracer := cfg.Tracer
	cfg.Tracer = func(e scheduler.Event) {
		fmt.Fprintln(&tr, e)
		if tracer != nil {
			tracer(e)
		}
	}
	c.Program.Run(cfg, &out)
	return out.Bytes(), tr.Bytes()
}

// Check runs the scenario and compares the result with the archive. It
// returns a *MismatchError for the first file that differs.
func (c *Case) Check(cfg scheduler.Config) error {
	output, trace := c.Run(cfg)
	if diff := diffLines(c.Output, output); diff != nil {
		return &MismatchError{Path: c.Path, File: outputFile, Diff: diff}
	}
	if c.Trace != nil {
		if diff := diffLines(c.Trace, trace); diff != nil {
			return &MismatchError{Path: c.Path, File: traceFile, Diff: diff}
		}
	}
	return nil
}

// diffLines returns a line diff between want and got, or nil if they are
// equal. Common lines are left out; each hunk starts with its line number in
// want.
func diffLines(want, got []byte) []string {
	if bytes.Equal(want, got) {
		return nil
	}
	a := splitLines(want)
	b := splitLines(got)

	var diff []string
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		diff = append(diff, fmt.Sprintf("@@ line %d", op.I1+1))
		if op.Tag == 'r' || op.Tag == 'd' {
			for _, line := range a[op.I1:op.I2] {
				diff = append(diff, "-"+line)
			}
		}
		if op.Tag == 'r' || op.Tag == 'i' {
			for _, line := range b[op.J1:op.J2] {
				diff = append(diff, "+"+line)
			}
		}
	}
	if diff == nil {
		// Only the trailing newline differs.
		diff = []string{"@@ missing newline at end of file"}
	}
	return diff
}

func splitLines(data []byte) []string {
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
