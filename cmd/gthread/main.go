// Command gthread runs thread scenarios and checks golden scenario archives.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
	"v.io/x/lib/cmdline"
	"v.io/x/lib/vlog"

	"github.com/tinygo-org/gthread/config"
	"github.com/tinygo-org/gthread/diagnostics"
	"github.com/tinygo-org/gthread/scheduler"
	"github.com/tinygo-org/gthread/script"
)

var (
	flagConfig string
	flagTrace  string
	flagColor  string
	flagJobs   int
)

var cmdRoot = &cmdline.Command{
	Name:  "gthread",
	Short: "runs cooperative thread scenarios",
	Long: `
Command gthread runs scenarios on a cooperative green thread scheduler and
checks golden scenario archives.
`,
	Children: []*cmdline.Command{cmdRun, cmdCheck},
}

var cmdRun = &cmdline.Command{
	Runner: cmdline.RunnerFunc(runRun),
	Name:   "run",
	Short:  "Run scenarios and print their output",
	Long: `
Run runs each scenario on a new scheduler and prints the output of its threads.
A session that ends in a deadlock or a fatal error is reported on stderr and
makes the command fail.
`,
	ArgsName: "<scenario> ...",
	ArgsLong: "<scenario> ... A list of scenario files to run.",
}

var cmdCheck = &cmdline.Command{
	Runner: cmdline.RunnerFunc(runCheck),
	Name:   "check",
	Short:  "Check golden scenario archives",
	Long: `
Check runs the scenario of each .txtar archive and compares its output, and its
trace if the archive has one, with the expected contents.
`,
	ArgsName: "<path> ...",
	ArgsLong: "<path> ... A list of archives, or directories to search for .txtar archives.",
}

func init() {
	cmdRun.Flags.StringVar(&flagConfig, "config", "", "Configuration file to use.")
	cmdRun.Flags.StringVar(&flagTrace, "trace", "", "Write scheduler transitions to this file.")
	cmdRun.Flags.StringVar(&flagColor, "color", "", "Color thread output: auto, always or never. Defaults to the configuration.")
	cmdCheck.Flags.StringVar(&flagConfig, "config", "", "Configuration file to use.")
	cmdCheck.Flags.IntVar(&flagJobs, "j", runtime.NumCPU(), "Number of archives to check in parallel.")
}

func main() {
	cmdline.HideGlobalFlagsExcept(regexp.MustCompile(`^(v|vmodule|logtostderr|alsologtostderr|log_dir)$`))
	cmdline.Main(cmdRoot)
}

// loadConfig reads the configuration and sets up logging.
func loadConfig() (*config.File, error) {
	if err := configureLogging(); err != nil {
		return nil, err
	}
	if flagConfig == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, &diagnostics.FileError{Path: flagConfig, Errs: []error{err}}
	}
	if cfg.Verbosity > 0 {
		vlog.Log.Configure(vlog.OverridePriorConfiguration(true), vlog.Level(cfg.Verbosity))
	}
	vlog.VI(1).Infof("using configuration %s", cfg.Path)
	return cfg, nil
}

// configureLogging applies the logging flags. A logger that was configured
// already is left alone.
func configureLogging() error {
	if err := vlog.ConfigureLibraryLoggerFromFlags(); err != nil && err != vlog.ErrConfigured {
		return fmt.Errorf("configuring logging: %w", err)
	}
	return nil
}

// report prints the diagnostics of err, if any, and turns it into an exit
// code.
func report(env *cmdline.Env, err error) error {
	if err == nil {
		return nil
	}
	wd, _ := os.Getwd()
	diagnostics.CreateDiagnostics(err).WriteTo(env.Stderr, wd)
	return cmdline.ErrExitCode(1)
}

func runRun(env *cmdline.Env, args []string) error {
	if len(args) == 0 {
		return env.UsageErrorf("run: no scenario specified")
	}
	cfg, err := loadConfig()
	if err != nil {
		return report(env, err)
	}
	mode := cfg.Color
	if flagColor != "" {
		mode = flagColor
	}
	out, err := newOutput(env.Stdout, mode)
	if err != nil {
		return env.UsageErrorf("run: %v", err)
	}

	var trace io.Writer
	switch {
	case flagTrace != "":
		tf, err := createTrace(flagTrace)
		if err != nil {
			return report(env, err)
		}
		defer tf.Close()
		trace = tf
	case cfg.Trace:
		trace = env.Stderr
	}

	var errs []error
	for _, path := range args {
		prog, err := script.ParseFile(path)
		if err != nil {
			errs = append(errs, &diagnostics.FileError{Path: path, Errs: []error{err}})
			continue
		}
		sc := cfg.SchedulerConfig()
		if trace != nil {
			sc.Tracer = func(e scheduler.Event) {
				fmt.Fprintln(trace, e)
			}
		}
		if len(args) > 1 {
			fmt.Fprintf(out, "# %s\n", path)
		}
		if err := prog.Run(sc, out); err != nil {
			errs = append(errs, &diagnostics.FileError{Path: path, Errs: []error{err}})
		}
	}
	return report(env, errors.Join(errs...))
}

// traceFile is a trace output file. Only one process writes to it at a time.
type traceFile struct {
	*os.File
	lock *flock.Flock
}

func createTrace(path string) (*traceFile, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%s: trace file is in use", path)
	}
	f, err := os.Create(path)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	return &traceFile{File: f, lock: lock}, nil
}

func (tf *traceFile) Close() error {
	err := tf.File.Close()
	tf.lock.Unlock()
	os.Remove(tf.lock.Path())
	return err
}

func runCheck(env *cmdline.Env, args []string) error {
	if len(args) == 0 {
		return env.UsageErrorf("check: no archive specified")
	}
	if flagJobs < 1 {
		return env.UsageErrorf("check: -j must be at least 1")
	}
	cfg, err := loadConfig()
	if err != nil {
		return report(env, err)
	}
	paths, err := findArchives(args)
	if err != nil {
		return report(env, err)
	}

	results := make([]error, len(paths))
	var g errgroup.Group
	g.SetLimit(flagJobs)
	for i, path := range paths {
		g.Go(func() error {
			c, err := script.LoadCase(path)
			if err == nil {
				err = c.Check(cfg.SchedulerConfig())
			}
			if err != nil {
				results[i] = &diagnostics.FileError{Path: path, Errs: []error{err}}
			}
			return nil
		})
	}
	g.Wait()

	var failed []error
	for i, path := range paths {
		if results[i] != nil {
			fmt.Fprintf(env.Stdout, "FAIL\t%s\n", path)
			failed = append(failed, results[i])
			continue
		}
		fmt.Fprintf(env.Stdout, "ok  \t%s\n", path)
	}
	return report(env, errors.Join(failed...))
}

// findArchives expands directories into the .txtar archives below them.
func findArchives(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == ".txtar" {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}
