package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/tinygo-org/gthread/config"
)

// newOutput returns the writer for thread output. In color mode the "tN:"
// prefix of every line gets a color that depends on the thread ID.
func newOutput(w io.Writer, mode string) (io.Writer, error) {
	f, isFile := w.(*os.File)
	switch mode {
	case config.ColorNever:
		return w, nil
	case config.ColorAlways:
	case config.ColorAuto:
		if !isFile || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			return w, nil
		}
	default:
		return nil, fmt.Errorf("invalid color mode %q", mode)
	}
	if isFile {
		// Translates escape sequences on Windows consoles.
		w = colorable.NewColorable(f)
	}
	return &colorWriter{w: w}, nil
}

// ANSI colors for thread prefixes, picked by thread ID.
var threadColors = []string{"31", "32", "33", "34", "35", "36"}

// colorWriter colors the thread prefix of each line. Each Write must contain
// whole lines.
type colorWriter struct {
	w io.Writer
}

func (cw *colorWriter) Write(p []byte) (int, error) {
	buf := &bytes.Buffer{}
	for _, line := range bytes.SplitAfter(p, []byte("\n")) {
		buf.Write(colorLine(line))
	}
	if _, err := cw.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func colorLine(line []byte) []byte {
	prefix, rest, ok := bytes.Cut(line, []byte(": "))
	if !ok || len(prefix) < 2 || prefix[0] != 't' {
		return line
	}
	id, err := strconv.ParseUint(string(prefix[1:]), 10, 64)
	if err != nil {
		return line
	}
	color := threadColors[id%uint64(len(threadColors))]
	return []byte(fmt.Sprintf("\x1b[%sm%s\x1b[0m: %s", color, prefix, rest))
}
