package pipeline

import "time"

// Status captures progress within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for one log, or for the whole scan when Log is
// empty.
type Event struct {
	Log     string
	Stage   string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type progress struct {
	sink  ProgressSink
	log   string
	start time.Time
}

func (p progress) stage(name string) {
	if p.sink == nil {
		return
	}
	p.sink.OnEvent(Event{Log: p.log, Stage: name, Status: StatusWorking, Elapsed: time.Since(p.start)})
}

func (p progress) finish(err error) {
	if p.sink == nil {
		return
	}
	evt := Event{Log: p.log, Status: StatusDone, Elapsed: time.Since(p.start)}
	if err != nil {
		evt.Status = StatusError
		evt.Err = err
	}
	p.sink.OnEvent(evt)
}
