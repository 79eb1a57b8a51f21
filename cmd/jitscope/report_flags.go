package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jitscope/internal/config"
	"jitscope/internal/report"
)

func addReportFlags(cmd *cobra.Command, withMode bool) {
	if withMode {
		cmd.Flags().String("mode", "", "report mode (tasks|inlining|failures|vcalls|hotthrows|unhandled|top)")
	}
	cmd.Flags().String("format", "", "output format (pretty|json|msgpack)")
	cmd.Flags().String("package", "", "only methods in this package or its subpackages")
	cmd.Flags().Int("limit", 0, "maximum rows (0 = all)")
}

// readReportFlags merges the report flags of cmd over cfg. fallback is the
// mode used when neither names one.
func readReportFlags(cmd *cobra.Command, cfg config.ReportConfig, fallback report.Mode) (report.Mode, report.Format, report.Filter, error) {
	flags := cmd.Flags()
	modeStr, formatStr := cfg.Mode, cfg.Format
	filter := report.Filter{Package: cfg.Package, Limit: cfg.Limit}

	if fallback != "" && flags.Lookup("mode") == nil {
		modeStr = string(fallback)
	}
	if flags.Changed("mode") {
		v, err := flags.GetString("mode")
		if err != nil {
			return "", "", report.Filter{}, fmt.Errorf("failed to get mode flag: %w", err)
		}
		modeStr = v
	}
	if flags.Changed("format") {
		v, err := flags.GetString("format")
		if err != nil {
			return "", "", report.Filter{}, fmt.Errorf("failed to get format flag: %w", err)
		}
		formatStr = v
	}
	if flags.Changed("package") {
		v, err := flags.GetString("package")
		if err != nil {
			return "", "", report.Filter{}, fmt.Errorf("failed to get package flag: %w", err)
		}
		filter.Package = v
	}
	if flags.Changed("limit") {
		v, err := flags.GetInt("limit")
		if err != nil {
			return "", "", report.Filter{}, fmt.Errorf("failed to get limit flag: %w", err)
		}
		filter.Limit = v
	}
	if filter.Limit < 0 {
		return "", "", report.Filter{}, fmt.Errorf("--limit must not be negative, got %d", filter.Limit)
	}
	if modeStr == "" {
		modeStr = string(fallback)
	}

	mode, err := report.ParseMode(modeStr)
	if err != nil {
		return "", "", report.Filter{}, err
	}
	format, err := report.ParseFormat(formatStr)
	if err != nil {
		return "", "", report.Filter{}, err
	}
	return mode, format, filter, nil
}
