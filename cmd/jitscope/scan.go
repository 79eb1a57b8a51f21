package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"jitscope/internal/observ"
	"jitscope/internal/pipeline"
	"jitscope/internal/report"
)

var scanCmd = &cobra.Command{
	Use:   "scan LOG|DIR...",
	Short: "Process several logs and print one aggregate report",
	Long: `scan processes every LOG given, and every *.log file inside each DIR,
then prints a single report over all of them. It exits with a non-zero status
when any log could not be processed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	addReportFlags(scanCmd, true)
	scanCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
}

func runScan(cmd *cobra.Command, args []string) (err error) {
	logs, err := expandLogs(args)
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	reportMode, format, filter, err := readReportFlags(cmd, sess.cfg.Report, report.ModeInlining)
	if err != nil {
		sess.cleanup()
		return err
	}

	timers := make(map[string]*observ.Timer)
	defer func() {
		if cerr := sess.close(timers, err); err == nil {
			err = cerr
		}
	}()

	skipAssembly := reportMode != report.ModeVCalls && reportMode != report.ModeHotThrows
	scan := func(sink pipeline.ProgressSink) ([]*pipeline.Result, error) {
		return scanLogs(cmd.Context(), sess, logs, skipAssembly, sink, timers)
	}

	var results []*pipeline.Result
	var scanErr error
	if shouldUseTUI(mode) {
		out := sess.logger.Out
		sess.logger.SetOutput(io.Discard)
		results, scanErr = runScanWithUI(fmt.Sprintf("scanning %d logs", len(logs)), logs, scan)
		sess.logger.SetOutput(out)
	} else {
		results, scanErr = scan(nil)
	}

	for _, e := range multierr.Errors(scanErr) {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", e)
	}
	if len(results) > 0 {
		table, err := report.Build(reportMode, results, filter)
		if err != nil {
			return err
		}
		if err := report.Render(cmd.OutOrStdout(), table, format); err != nil {
			return err
		}
	}
	if scanErr != nil {
		return fmt.Errorf("%d of %d logs failed", len(multierr.Errors(scanErr)), len(logs))
	}
	return nil
}

// scanLogs runs the pipeline over logs on a bounded pool. Results keep the
// order of logs; partial results of failed runs are kept, logs that could not
// be opened are left out.
func scanLogs(ctx context.Context, sess *session, logs []string, skipAssembly bool, sink pipeline.ProgressSink, timers map[string]*observ.Timer) ([]*pipeline.Result, error) {
	jobs := sess.base.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	slots := make([]*pipeline.Result, len(logs))
	var (
		mu   sync.Mutex
		errs error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range logs {
		opts := sess.options()
		opts.SkipAssembly = skipAssembly
		opts.Progress = sink
		timers[path] = opts.Timer
		g.Go(func() error {
			res, err := sess.run(ctx, path, opts)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			if partial(res, err) {
				slots[i] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}

	results := make([]*pipeline.Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, r)
		}
	}
	return results, errs
}

// expandLogs replaces each directory argument with the *.log files inside
// it. Paths are deduplicated; order follows the arguments.
func expandLogs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", pipeline.ErrOpenLog, arg, err)
		}
		if !st.IsDir() {
			add(arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.log"))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", arg, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no logs to scan")
	}
	return out, nil
}
