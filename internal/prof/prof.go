// Package prof captures Go runtime profiles while jitscope processes logs.
package prof

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"go.uber.org/multierr"
)

// Options names the files to write. An empty path disables that profile.
type Options struct {
	CPU   string
	Heap  string
	Trace string
}

// Enabled reports whether any profile was requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Trace != ""
}

// Profile is a running set of profiles. Only one Profile may run at a time
// since the runtime allows a single CPU profile and a single trace.
type Profile struct {
	opts    Options
	cpu     *os.File
	trace   *os.File
	stopped bool
}

// Start begins the CPU profile and the runtime trace. The heap profile is
// written by Stop.
func Start(opts Options) (*Profile, error) {
	p := &Profile{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("failed to start cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to start cpu profile: %w", err)
		}
		p.cpu = f
	}
	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err == nil {
			if err = trace.Start(f); err != nil {
				_ = f.Close()
			}
		}
		if err != nil {
			p.stopCPU()
			return nil, fmt.Errorf("failed to start runtime trace: %w", err)
		}
		p.trace = f
	}
	return p, nil
}

// Stop ends every running profile and writes the heap profile. Calling Stop
// again does nothing.
func (p *Profile) Stop() error {
	if p == nil || p.stopped {
		return nil
	}
	p.stopped = true
	var errs error
	if p.trace != nil {
		trace.Stop()
		errs = multierr.Append(errs, p.trace.Close())
		p.trace = nil
	}
	errs = multierr.Append(errs, p.stopCPU())
	if p.opts.Heap != "" {
		errs = multierr.Append(errs, writeHeap(p.opts.Heap))
	}
	return errs
}

func (p *Profile) stopCPU() error {
	if p.cpu == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := p.cpu.Close()
	p.cpu = nil
	return err
}

func writeHeap(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}
