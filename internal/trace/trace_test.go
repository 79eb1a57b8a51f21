package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"": LevelOff, "OFF": LevelOff, "error": LevelError, "Stage": LevelStage, "detail": LevelDetail, "debug": LevelDebug} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)

	assert.True(t, LevelStage.ShouldEmit(ScopeStage))
	assert.False(t, LevelStage.ShouldEmit(ScopeTask))
	assert.True(t, LevelDetail.ShouldEmit(ScopeTask))
	assert.False(t, LevelDetail.ShouldEmit(ScopeLine))
	assert.True(t, LevelDebug.ShouldEmit(ScopeLine))
	assert.False(t, LevelOff.ShouldEmit(ScopeRun))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("BOTH")
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, m)
	_, err = ParseMode("disk")
	assert.Error(t, err)
	assert.Equal(t, FormatNDJSON, ParseFormat("json"))
	assert.Equal(t, FormatAuto, ParseFormat("yaml"))
}

func TestRingWrapsOldestFirst(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for i := 1; i <= 5; i++ {
		r.Emit(&Event{Seq: uint64(i), Scope: ScopeLine, Name: "e"})
	}
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []uint64{3, 4, 5}, []uint64{snap[0].Seq, snap[1].Seq, snap[2].Seq})

	filtered := NewRingTracer(3, LevelStage)
	filtered.Emit(&Event{Scope: ScopeTask})
	filtered.Emit(&Event{Scope: ScopeTask, Kind: KindHeartbeat})
	assert.Len(t, filtered.Snapshot(), 1)
}

func TestSpansNestThroughContext(t *testing.T) {
	r := NewRingTracer(16, LevelDetail)
	ctx := WithTracer(context.Background(), r)

	ctx, run := Start(ctx, ScopeRun, "run")
	run.WithExtra("log", "a.log")
	stageCtx, stage := Start(ctx, ScopeStage, "parse")
	_, task := Start(stageCtx, ScopeTask, "task:1")
	_, line := Start(stageCtx, ScopeLine, "line")
	assert.Zero(t, line.ID(), "line scope is below detail")
	Point(stageCtx, ScopeStage, "orphans", "2")
	task.End("")
	stage.End("3 tasks")
	run.End("")

	events := r.Snapshot()
	require.Len(t, events, 7)
	assert.Equal(t, KindSpanBegin, events[0].Kind)
	assert.Equal(t, run.ID(), events[1].ParentID)
	assert.Equal(t, stage.ID(), events[2].ParentID)
	assert.Equal(t, KindPoint, events[3].Kind)
	assert.Equal(t, stage.ID(), events[3].ParentID)
	assert.Equal(t, "3 tasks", events[5].Detail)
	assert.Equal(t, map[string]string{"log": "a.log"}, events[6].Extra)
}

func TestDisabledTracing(t *testing.T) {
	ctx, span := Start(context.Background(), ScopeRun, "run")
	assert.Zero(t, span.ID())
	assert.Zero(t, span.End(""))
	assert.Equal(t, Nop, FromContext(ctx))

	tr, err := New(Config{Level: LevelOff})
	require.NoError(t, err)
	assert.False(t, tr.Enabled())
	assert.Nil(t, StartHeartbeat(tr, time.Millisecond, nil))
	var h *Heartbeat
	h.Stop()
}

func TestNewModes(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelStage, Mode: ModeBoth, Output: &buf, OutputPath: "trace.ndjson"})
	require.NoError(t, err)
	require.NotNil(t, Ring(tr))

	tr.Emit(&Event{Kind: KindPoint, Scope: ScopeStage, Name: "split", Time: time.Unix(0, 0).UTC()})
	require.NoError(t, tr.Close())
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "split", decoded["name"])
	assert.Len(t, Ring(tr).Snapshot(), 1)

	tr, err = New(Config{Level: LevelError, Mode: ModeStream})
	require.NoError(t, err)
	_, ok := tr.(*RingTracer)
	assert.True(t, ok, "error level always records into a ring")

	_, err = New(Config{Level: LevelStage, Mode: StorageMode(42)})
	assert.Error(t, err)
}

func TestFormatText(t *testing.T) {
	ev := &Event{
		Time:   time.Date(2024, 1, 2, 3, 4, 5, 6e6, time.UTC),
		Kind:   KindSpanEnd,
		Scope:  ScopeStage,
		Name:   "bind",
		Detail: "4 compilations",
		Extra:  map[string]string{"b": "2", "a": "1"},
	}
	assert.Equal(t, "03:04:05.006   ← bind (4 compilations) {a=1, b=2}\n", string(FormatEvent(ev, FormatText)))
}

func TestHeartbeat(t *testing.T) {
	r := NewRingTracer(64, LevelStage)
	h := StartHeartbeat(r, time.Millisecond, func() string { return "lines=3" })
	require.NotNil(t, h)
	assert.Eventually(t, func() bool { return len(r.Snapshot()) > 0 }, time.Second, time.Millisecond)
	h.Stop()
	h.Stop()
	assert.Equal(t, "#1 lines=3", r.Snapshot()[0].Detail)
}
