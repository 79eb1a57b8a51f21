package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"jitscope/internal/pipeline"
	"jitscope/internal/ui"
)

type scanOutcome struct {
	results []*pipeline.Result
	err     error
}

// runScanWithUI runs scan in the background while a progress view follows
// its events on stdout.
func runScanWithUI(title string, logs []string, scan func(pipeline.ProgressSink) ([]*pipeline.Result, error)) ([]*pipeline.Result, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan scanOutcome, 1)

	go func() {
		res, err := scan(pipeline.ChannelSink{Ch: events})
		outcomeCh <- scanOutcome{results: res, err: err}
		close(events)
	}()

	model := ui.NewScanModel(title, logs, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// The view may quit before the scan does; keep the scan from blocking.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
