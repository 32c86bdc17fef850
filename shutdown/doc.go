// Package shutdown delivers the end-of-run notice to components that opted
// in, and turns OS signals into stop requests.
//
// # Overview
//
// A forced shutdown unwinds every suspended process without running its
// release logic. Components that need to react to the end of a run, such as
// the trace writer, register a handler here instead.
// Handlers run after the scheduler has stopped, in phase order, and receive a
// Notice describing how the run ended.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                           Coordinator                            │
//	├──────────────────────────────────────────────────────────────────┤
//	│  ┌─────────────┐  ┌─────────────┐  ┌─────────────┐               │
//	│  │   report    │→ │    trace    │→ │   release   │  (ordered)    │
//	│  │ (Phase 10)  │  │ (Phase 20)  │  │ (Phase 100) │               │
//	│  └─────────────┘  └─────────────┘  └─────────────┘               │
//	└──────────────────────────────────────────────────────────────────┘
//	                              ↑
//	                   Kernel.Run returned + Notice
//
// # Usage
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig())
//	stop := coord.HandleSignals(kernel.Stop) // SIGTERM, SIGINT
//	defer stop()
//
//	coord.RegisterFuncWithPhase("trace", func(ctx context.Context, n shutdown.Notice) error {
//	    return recorder.Close(ctx)
//	}, shutdown.PhaseFlush)
//
//	runErr := kernel.Run(ctx)
//	notice := shutdown.Notice{Outcome: string(reg.Outcome().Kind), Err: runErr}
//	err := coord.ShutdownWithTimeout(notice, 0)
//
// # Phases
//
// Lower phase numbers run first; handlers in the same phase run
// concurrently.
//
//   - 10: PhaseReport (summaries that read final state)
//   - 20: PhaseFlush (persist traces)
//   - 100: PhaseRelease (close buckets, buses)
package shutdown
