package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"jitscope/internal/observ"
	"jitscope/internal/pipeline"
	"jitscope/internal/report"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks LOG",
	Short: "List every compilation in a log",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasks,
}

var reportCmd = &cobra.Command{
	Use:   "report LOG",
	Short: "Summarize inlining, failures, virtual calls, hot throws and more",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	addReportFlags(tasksCmd, false)
	addReportFlags(reportCmd, true)
}

func runTasks(cmd *cobra.Command, args []string) error {
	return runSingleReport(cmd, args, report.ModeTasks)
}

func runReport(cmd *cobra.Command, args []string) error {
	return runSingleReport(cmd, args, report.ModeInlining)
}

func runSingleReport(cmd *cobra.Command, args []string, fallback report.Mode) (err error) {
	path, err := logArg(args)
	if err != nil {
		return err
	}
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	mode, format, filter, err := readReportFlags(cmd, sess.cfg.Report, fallback)
	if err != nil {
		sess.cleanup()
		return err
	}

	opts := sess.options()
	// Only the assembly reports need the correlation pass.
	opts.SkipAssembly = mode != report.ModeVCalls && mode != report.ModeHotThrows
	timers := map[string]*observ.Timer{path: opts.Timer}
	defer func() {
		if cerr := sess.close(timers, err); err == nil {
			err = cerr
		}
	}()

	res, runErr := sess.run(cmd.Context(), path, opts)
	if !partial(res, runErr) {
		return runErr
	}
	table, err := report.Build(mode, []*pipeline.Result{res}, filter)
	if err != nil {
		return multierr.Append(runErr, err)
	}
	if err := report.Render(cmd.OutOrStdout(), table, format); err != nil {
		return multierr.Append(runErr, err)
	}
	return runErr
}
