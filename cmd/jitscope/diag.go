package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"jitscope/internal/diagfmt"
	"jitscope/internal/observ"
)

var diagCmd = &cobra.Command{
	Use:   "diag LOG",
	Short: "Print the diagnostics found while reading a log",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiag,
}

func init() {
	diagCmd.Flags().String("format", "pretty", "output format (pretty|short|json)")
	diagCmd.Flags().String("severity", "info", "lowest severity shown (info|warning|error)")
	diagCmd.Flags().Int("limit", 0, "maximum diagnostics shown (0 = all)")
	diagCmd.Flags().Bool("skip-assembly", false, "stop after binding compilations")
	diagCmd.Flags().Bool("warnings-as-errors", false, "fail when any warning was reported")
}

var errDiagnostics = errors.New("log has error diagnostics")

// runDiag runs the pipeline over LOG and prints its sorted diagnostics. It
// fails when an error diagnostic was reported, or a warning with
// --warnings-as-errors.
func runDiag(cmd *cobra.Command, args []string) (err error) {
	flags := cmd.Flags()
	formatStr, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	severityStr, err := flags.GetString("severity")
	if err != nil {
		return fmt.Errorf("failed to get severity flag: %w", err)
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to get limit flag: %w", err)
	}
	skipAssembly, err := flags.GetBool("skip-assembly")
	if err != nil {
		return fmt.Errorf("failed to get skip-assembly flag: %w", err)
	}
	strict, err := flags.GetBool("warnings-as-errors")
	if err != nil {
		return fmt.Errorf("failed to get warnings-as-errors flag: %w", err)
	}
	format, err := diagfmt.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	minSeverity, err := diagfmt.ParseSeverity(severityStr)
	if err != nil {
		return err
	}
	path, err := logArg(args)
	if err != nil {
		return err
	}

	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	opts := sess.options()
	opts.SkipAssembly = skipAssembly
	timers := map[string]*observ.Timer{path: opts.Timer}
	defer func() {
		if cerr := sess.close(timers, err); err == nil {
			err = cerr
		}
	}()

	// The open error is itself a diagnostic, so a result is printed either way.
	res, runErr := sess.run(cmd.Context(), path, opts)
	if res == nil {
		return runErr
	}
	res.Diagnostics.Sort()
	if err := diagfmt.Write(cmd.OutOrStdout(), path, res.Diagnostics, format,
		diagfmt.Options{MinSeverity: minSeverity, Max: limit}); err != nil {
		return err
	}
	switch {
	case res.Diagnostics.HasErrors():
		return errDiagnostics
	case strict && res.Diagnostics.HasWarnings():
		return fmt.Errorf("%w (warnings as errors)", errDiagnostics)
	}
	return runErr
}

