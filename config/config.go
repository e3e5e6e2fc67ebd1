// Package config reads the YAML configuration of the gthread tools.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"

	"github.com/tinygo-org/gthread/scheduler"
)

// Color modes of thread output.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// File is the contents of a configuration file. Every field is optional.
type File struct {
	// Stack size per thread, like "16KB".
	StackSize     string `yaml:"stack_size"`
	MaxThreads    int    `yaml:"max_threads"`
	MaxSemaphores int    `yaml:"max_semaphores"`

	// Log verbosity, as with the -v flag.
	Verbosity int `yaml:"verbosity"`

	// One of auto, always or never.
	Color string `yaml:"color"`

	// Include scheduler transitions in the output.
	Trace bool `yaml:"trace"`

	// Path of the file this configuration was loaded from, if any.
	Path string `yaml:"-"`

	stackSize uintptr
}

// Default returns the configuration used when there is no configuration file.
func Default() *File {
	return &File{Color: ColorAuto, stackSize: scheduler.DefaultStackSize}
}

// Load reads and validates the configuration file at path. Errors don't
// mention the path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	f.Path = path
	return f, nil
}

// Parse decodes and validates a configuration. Unknown keys are an error.
func Parse(data []byte) (*File, error) {
	f := Default()
	f.Color = ""
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) validate() error {
	if f.StackSize != "" {
		size, err := bytesize.Parse(f.StackSize)
		if err != nil {
			return fmt.Errorf("invalid stack_size %q: %w", f.StackSize, err)
		}
		if size < 1 {
			return fmt.Errorf("invalid stack_size %q: must be positive", f.StackSize)
		}
		f.stackSize = uintptr(size)
	}
	if f.MaxThreads < 0 {
		return fmt.Errorf("invalid max_threads %d: must not be negative", f.MaxThreads)
	}
	if f.MaxSemaphores < 0 {
		return fmt.Errorf("invalid max_semaphores %d: must not be negative", f.MaxSemaphores)
	}
	if f.Verbosity < 0 {
		return fmt.Errorf("invalid verbosity %d: must not be negative", f.Verbosity)
	}
	switch f.Color = strings.ToLower(f.Color); f.Color {
	case "":
		f.Color = ColorAuto
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color %q: expected auto, always or never", f.Color)
	}
	return nil
}

// StackBytes returns the configured stack size in bytes.
func (f *File) StackBytes() uintptr {
	return f.stackSize
}

// SchedulerConfig returns the scheduler configuration described by f. Tracer
// and Fatal are left for the caller to set.
func (f *File) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		StackSize:     f.stackSize,
		MaxThreads:    f.MaxThreads,
		MaxSemaphores: f.MaxSemaphores,
	}
}
