// Package trace records spans for the stages of a jitscope run.
//
// A run is split into stages (split, parse, bind, walk, correlate) and each
// stage may emit per-task spans. Tracers travel through context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, "split", 0)
//	defer span.End("")
//
// Tracer implementations:
//
//   - Nop: disabled tracing, no allocation per event
//   - StreamTracer: writes each event as it happens
//   - RingTracer: keeps the last N events for a dump on failure
//   - MultiTracer: fans out to several tracers
//
// Levels select how fine the recorded spans are: "stage" records the run and
// its stages, "detail" adds per-task spans, "debug" records everything.
package trace
