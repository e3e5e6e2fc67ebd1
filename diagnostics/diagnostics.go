// Package diagnostics formats scheduler, scenario and configuration errors and
// prints them in a consistent way.
package diagnostics

import (
	"errors"
	"fmt"
	"go/token"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/tinygo-org/gthread/scheduler"
	"github.com/tinygo-org/gthread/script"
)

// FileError groups the errors that belong to a single scenario, archive or
// configuration file.
type FileError struct {
	Path string
	Errs []error
}

func (e *FileError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return e.Path + ": " + strings.Join(msgs, "; ")
}

func (e *FileError) Unwrap() []error {
	return e.Errs
}

// A single diagnostic.
type Diagnostic struct {
	Pos token.Position
	Msg string
}

// One or multiple errors of a particular file. It can also represent errors
// that can't be connected to a single file, in which case Path is empty.
type FileDiagnostic struct {
	Path        string
	Diagnostics []Diagnostic
}

// Diagnostics of a whole run. This can include errors belonging to multiple
// files, or just a single file.
type RunDiagnostic []FileDiagnostic

// CreateDiagnostics reads the underlying errors in the error object and creates
// a set of diagnostics that's sorted and can be readily printed.
func CreateDiagnostics(err error) RunDiagnostic {
	if err == nil {
		return nil
	}
	var runDiag RunDiagnostic
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if _, isFile := err.(*FileError); !isFile {
			for _, err := range joined.Unwrap() {
				runDiag = append(runDiag, CreateDiagnostics(err)...)
			}
			return runDiag
		}
	}
	return RunDiagnostic{createFileDiagnostic(err)}
}

// Create diagnostics for a single file.
func createFileDiagnostic(err error) FileDiagnostic {
	var fileDiag FileDiagnostic
	switch err := err.(type) {
	case *FileError:
		fileDiag.Path = err.Path
		for _, e := range err.Errs {
			fileDiag.Diagnostics = append(fileDiag.Diagnostics, createDiagnostics(e, err.Path)...)
		}
	case *script.MismatchError:
		fileDiag.Path = err.Path
		fileDiag.Diagnostics = createDiagnostics(err, "")
	default:
		fileDiag.Diagnostics = createDiagnostics(err, "")
	}

	// Sort these diagnostics by file/line/column.
	sort.SliceStable(fileDiag.Diagnostics, func(i, j int) bool {
		posI := fileDiag.Diagnostics[i].Pos
		posJ := fileDiag.Diagnostics[j].Pos
		if posI.Filename != posJ.Filename {
			return posI.Filename < posJ.Filename
		}
		if posI.Line != posJ.Line {
			return posI.Line < posJ.Line
		}
		return posI.Column < posJ.Column
	})

	return fileDiag
}

// Extract diagnostics from the given error message and return them as a slice
// of errors (which in many cases will just be a single diagnostic). The path
// is the file the error belongs to, if known.
func createDiagnostics(err error, path string) []Diagnostic {
	var (
		parseErr    *script.ParseError
		mismatchErr *script.MismatchError
		deadlockErr *scheduler.DeadlockError
		fatalErr    *scheduler.FatalError
		typeErr     *yaml.TypeError
	)
	switch {
	case errors.As(err, &parseErr):
		return []Diagnostic{
			{
				Pos: token.Position{Filename: parseErr.File, Line: parseErr.Line},
				Msg: parseErr.Msg,
			},
		}
	case errors.As(err, &mismatchErr):
		buf := &strings.Builder{}
		fmt.Fprintf(buf, "%s mismatch:", mismatchErr.File)
		for _, line := range mismatchErr.Diff {
			fmt.Fprintf(buf, "\n\t%s", line)
		}
		return []Diagnostic{{Msg: buf.String()}}
	case errors.As(err, &deadlockErr):
		var diags []Diagnostic
		for _, t := range deadlockErr.Threads {
			diags = append(diags, Diagnostic{Msg: "deadlock: " + t.String()})
		}
		return diags
	case errors.As(err, &fatalErr):
		return []Diagnostic{{Msg: fatalErr.Error()}}
	case errors.As(err, &typeErr):
		var diags []Diagnostic
		for _, msg := range typeErr.Errors {
			diags = append(diags, yamlDiagnostic(msg, path))
		}
		return diags
	default:
		return []Diagnostic{{Msg: err.Error()}}
	}
}

// yamlDiagnostic converts a message like "line 3: field x not found" into a
// diagnostic with a position.
func yamlDiagnostic(msg, path string) Diagnostic {
	rest, ok := strings.CutPrefix(msg, "line ")
	if !ok || path == "" {
		return Diagnostic{Msg: msg}
	}
	num, text, ok := strings.Cut(rest, ": ")
	line, err := strconv.Atoi(num)
	if !ok || err != nil {
		return Diagnostic{Msg: msg}
	}
	return Diagnostic{
		Pos: token.Position{Filename: path, Line: line},
		Msg: text,
	}
}

// Write run diagnostics to the given writer with 'wd' as the relative working
// directory.
func (runDiag RunDiagnostic) WriteTo(w io.Writer, wd string) {
	for _, fileDiag := range runDiag {
		fileDiag.WriteTo(w, wd)
	}
}

// Write file diagnostics to the given writer with 'wd' as the relative
// working directory.
func (fileDiag FileDiagnostic) WriteTo(w io.Writer, wd string) {
	if fileDiag.Path != "" {
		path := RelativePosition(token.Position{Filename: fileDiag.Path}, wd).Filename
		fmt.Fprintln(w, "#", path)
	}
	for _, diag := range fileDiag.Diagnostics {
		diag.WriteTo(w, wd)
	}
}

// Write this diagnostic to the given writer with 'wd' as the relative working
// directory.
func (diag Diagnostic) WriteTo(w io.Writer, wd string) {
	if diag.Pos == (token.Position{}) {
		fmt.Fprintln(w, diag.Msg)
		return
	}
	pos := RelativePosition(diag.Pos, wd)
	fmt.Fprintf(w, "%s: %s\n", pos, diag.Msg)
}

// Convert the position in pos into a path relative to wd if possible. Paths
// outside of wd remain as they are.
func RelativePosition(pos token.Position, wd string) token.Position {
	// Check whether we even have a working directory.
	if wd == "" || !filepath.IsAbs(pos.Filename) {
		return pos
	}

	// Make the path relative, for easier reading. Ignore any errors in the
	// process (falling back to the absolute path).
	relpath, err := filepath.Rel(wd, pos.Filename)
	if err == nil && !strings.HasPrefix(relpath, "..") {
		pos.Filename = relpath
	}
	return pos
}
