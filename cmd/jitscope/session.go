package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"jitscope/internal/config"
	"jitscope/internal/observ"
	"jitscope/internal/pipeline"
	"jitscope/internal/prof"
	"jitscope/internal/telemetry"
	"jitscope/internal/trace"
)

// session is everything one command invocation shares: resolved settings,
// the logger and the tracer cleanup.
type session struct {
	cmd      *cobra.Command
	cfg      config.Config
	logger   *log.Logger
	base     pipeline.Options
	timings  bool
	metrics  string
	counters *telemetry.Counters
	cleanup  func()
	profile  *prof.Profile
}

func newSession(cmd *cobra.Command) (*session, error) {
	flags := cmd.Root().PersistentFlags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg config.Config
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return nil, err
	}

	if err := setupColor(cmd); err != nil {
		return nil, err
	}

	s := &session{cmd: cmd, cfg: cfg}
	if s.logger, err = newLogger(cmd, cfg); err != nil {
		return nil, err
	}
	if s.timings, err = flags.GetBool("timings"); err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if s.metrics, err = flags.GetString("metrics"); err != nil {
		return nil, fmt.Errorf("failed to get metrics flag: %w", err)
	}

	s.base = pipeline.Options{
		Manifest: cfg.Model.Manifest,
		Charset:  cfg.Log.Charset,
		Jobs:     cfg.Correlate.Jobs,
		Logger:   s.logger,
	}
	if flags.Changed("model") {
		if s.base.Manifest, err = flags.GetString("model"); err != nil {
			return nil, fmt.Errorf("failed to get model flag: %w", err)
		}
	}
	if flags.Changed("charset") {
		if s.base.Charset, err = flags.GetString("charset"); err != nil {
			return nil, fmt.Errorf("failed to get charset flag: %w", err)
		}
	}
	if flags.Changed("jobs") {
		if s.base.Jobs, err = flags.GetInt("jobs"); err != nil {
			return nil, fmt.Errorf("failed to get jobs flag: %w", err)
		}
	}
	if s.base.MaxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
		return nil, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if s.base.Jobs < 0 {
		return nil, fmt.Errorf("--jobs must not be negative, got %d", s.base.Jobs)
	}

	s.counters = telemetry.New()
	if s.cleanup, err = setupTracing(cmd, s.counters.Progress); err != nil {
		return nil, err
	}
	if s.profile, err = setupProfiling(cmd); err != nil {
		s.cleanup()
		return nil, err
	}
	if cfg.Path != "" {
		s.logger.WithField("config", cfg.Path).Debug("loaded config")
	}
	return s, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) (*log.Logger, error) {
	levelStr := cfg.Log.Level
	flags := cmd.Root().PersistentFlags()
	if flags.Changed("log-level") {
		v, err := flags.GetString("log-level")
		if err != nil {
			return nil, fmt.Errorf("failed to get log-level flag: %w", err)
		}
		levelStr = v
	}
	if levelStr == "" {
		levelStr = "warning"
	}
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger := log.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(level)
	logger.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    color.NoColor,
	})
	return logger, nil
}

func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// options returns pipeline options for one log. Every log of a session
// shares the counters so --metrics covers the whole invocation.
func (s *session) options() pipeline.Options {
	opts := s.base
	opts.Counters = s.counters
	if s.timings {
		opts.Timer = observ.NewTimer()
	}
	return opts
}

// run processes one log with opts. A failed run may still return the
// partial result; callers render it and then return the error.
func (s *session) run(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error) {
	res, err := pipeline.Run(ctx, path, opts)
	if res != nil {
		s.summarize(res)
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// partial reports whether res is worth rendering after a run that returned
// err. A log that never opened has nothing to show.
func partial(res *pipeline.Result, err error) bool {
	return res != nil && !errors.Is(err, pipeline.ErrOpenLog)
}

func (s *session) summarize(res *pipeline.Result) {
	entry := s.logger.WithFields(log.Fields{
		"log":          res.Name,
		"lines":        res.Lines,
		"compilations": len(res.Compilations),
		"diagnostics":  res.Diagnostics.Len(),
	})
	if n := res.PhaseWarnings(); n > 0 {
		entry = entry.WithField("flat_tasks", n)
	}
	if n := res.Diagnostics.Dropped(); n > 0 {
		entry.Warnf("%d diagnostics dropped", n)
	}
	entry.Info("processed")
}

// close writes timings and metrics, then releases the tracer. runErr is the
// command's own error; a failed run dumps the trace ring when there is one.
func (s *session) close(timers map[string]*observ.Timer, runErr error) error {
	var errs error
	out := s.cmd.ErrOrStderr()
	if s.timings {
		writeTimings(out, timers)
	}
	if s.metrics != "" {
		if err := writeMetrics(s.metrics, s.counters); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if runErr != nil {
		if ring := trace.Ring(trace.FromContext(s.cmd.Context())); ring != nil {
			fmt.Fprintln(out, "trace ring:")
			if err := ring.Dump(out, trace.FormatText); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	if s.cleanup != nil {
		s.cleanup()
	}
	if err := s.profile.Stop(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func writeMetrics(path string, c *telemetry.Counters) (err error) {
	if path == "-" {
		return c.WriteText(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return c.WriteText(f)
}

// logArg returns the single LOG argument.
func logArg(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("expected exactly one LOG argument")
	}
	return args[0], nil
}
