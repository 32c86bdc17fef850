package pipeline_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/quiesce/errors"
	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/objection"
	"github.com/vinayprograms/quiesce/pipeline"
	"github.com/vinayprograms/quiesce/sim"
)

const ns = time.Nanosecond

type sample struct {
	at     time.Duration
	source string
	value  uint64
}

type fakeTracer struct {
	mu      sync.Mutex
	samples []sample
}

func (f *fakeTracer) Sample(at time.Duration, source string, value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample{at: at, source: source, value: value})
}

func (f *fakeTracer) count(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.samples {
		if s.source == source {
			n++
		}
	}
	return n
}

type harness struct {
	k      *sim.Kernel
	reg    *objection.Registry
	log    *logging.Logger
	out    *bytes.Buffer
	tracer *fakeTracer
}

func newHarness(t *testing.T, drain time.Duration) *harness {
	t.Helper()
	return newHarnessConfig(t, objection.Config{DrainTime: drain})
}

func newHarnessConfig(t *testing.T, cfg objection.Config) *harness {
	t.Helper()
	out := &bytes.Buffer{}
	k := sim.NewKernel("top")
	log := logging.New().WithClock(k.Now)
	log.SetOutput(out)
	log.SetLevel(logging.LevelDebug)

	reg := objection.New(k, cfg, objection.WithLogger(log))
	return &harness{k: k, reg: reg, log: log, out: out, tracer: &fakeTracer{}}
}

func (h *harness) env() pipeline.Env {
	return pipeline.Env{Kernel: h.k, Registry: h.reg, Log: h.log, Tracer: h.tracer}
}

func (h *harness) run(t *testing.T) error {
	t.Helper()
	require.NoError(t, h.reg.Start())
	return h.k.Run(context.Background())
}

func defaultConfig() pipeline.Config {
	return pipeline.Config{
		Stimulus: pipeline.StimulusConfig{Samples: 10, Period: 10 * ns, Seed: 1},
		Behavior: pipeline.BehaviorConfig{Latency: 5 * ns, Seed: 1},
	}
}

// =============================================================================
// End to end
// =============================================================================

func TestPipeline_CleanRunDrains(t *testing.T) {
	h := newHarness(t, 2*ns)
	top, err := pipeline.New(h.env(), defaultConfig())
	require.NoError(t, err)

	require.NoError(t, h.run(t))

	// Last sample at 100ns, checked at 105ns, plus 2ns drain.
	at, ok := h.k.StopTime()
	require.True(t, ok)
	assert.Equal(t, 107*ns, at)

	report := top.Report()
	assert.True(t, report.Passed())
	assert.Equal(t, 10, report.Sent)
	assert.Equal(t, 10, report.Processed)
	assert.Equal(t, 10, report.Observed)
	assert.Zero(t, report.Failures)
	assert.Zero(t, report.Injected)

	assert.Equal(t, objection.OutcomeDrained, h.reg.Outcome().Kind)
	assert.Zero(t, h.reg.Outstanding())
	assert.Zero(t, h.reg.Abandoned())
	assert.Zero(t, h.log.Count(logging.LevelError))
	assert.Contains(t, h.out.String(), "Shutting down")
}

func TestPipeline_ObjectionCounts(t *testing.T) {
	h := newHarness(t, 2*ns)
	_, err := pipeline.New(h.env(), defaultConfig())
	require.NoError(t, err)
	require.NoError(t, h.run(t))

	// One for the stimulus and one per comparison.
	assert.Equal(t, uint64(11), h.reg.TotalCreated())
	assert.Equal(t, uint64(11), h.reg.TotalReleased())
}

func TestPipeline_InjectAllMismatches(t *testing.T) {
	h := newHarness(t, 2*ns)
	cfg := defaultConfig()
	cfg.Behavior.Inject = true
	cfg.Behavior.InjectPercent = 100
	top, err := pipeline.New(h.env(), cfg)
	require.NoError(t, err)

	require.NoError(t, h.run(t))

	report := top.Report()
	assert.False(t, report.Passed())
	assert.Equal(t, 10, report.Injected)
	assert.Equal(t, 10, report.Failures)
	assert.Equal(t, 10, h.log.Count(logging.LevelError))
	assert.Contains(t, h.out.String(), "mismatch")
}

func TestPipeline_SampleSizeClamped(t *testing.T) {
	h := newHarness(t, 2*ns)
	cfg := defaultConfig()
	cfg.Stimulus.Samples = 0
	top, err := pipeline.New(h.env(), cfg)
	require.NoError(t, err)

	require.NoError(t, h.run(t))

	assert.Equal(t, 1, top.Report().Sent)
	assert.Contains(t, h.out.String(), "sample size should be a number 1..100")

	at, _ := h.k.StopTime()
	assert.Equal(t, 17*ns, at)
}

func TestPipeline_TimeoutStopsLongRun(t *testing.T) {
	h := newHarnessConfig(t, objection.Config{DrainTime: 2 * ns, Timeout: 42 * ns})
	top, err := pipeline.New(h.env(), defaultConfig())
	require.NoError(t, err)

	require.NoError(t, h.run(t))

	at, _ := h.k.StopTime()
	assert.Equal(t, 42*ns, at)
	assert.Equal(t, objection.OutcomeTimedOut, h.reg.Outcome().Kind)
	assert.False(t, top.Report().Passed())
}

func TestPipeline_TracesSamples(t *testing.T) {
	h := newHarness(t, 2*ns)
	_, err := pipeline.New(h.env(), defaultConfig())
	require.NoError(t, err)
	require.NoError(t, h.run(t))

	assert.Equal(t, 10, h.tracer.count("stimulus.value"))
	assert.Equal(t, 10, h.tracer.count("behavior.send_value"))
	assert.Equal(t, 10, h.tracer.count("observer.actual_value"))
	assert.Zero(t, h.tracer.count("observer.failures_count"))
	assert.Equal(t, 2, h.tracer.count("stimulus.running"))
}

func TestPipeline_RequiresKernelAndRegistry(t *testing.T) {
	_, err := pipeline.New(pipeline.Env{}, defaultConfig())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
}

// =============================================================================
// Components
// =============================================================================

func TestTransform(t *testing.T) {
	assert.Equal(t, pipeline.Transform(0x1234), pipeline.Transform(0x1234))
	assert.NotEqual(t, pipeline.Transform(0x1234), pipeline.Transform(0x1235))
}

func TestBehavior_InjectPercentNormalized(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		warn    bool
	}{
		{"zero", 0, true},
		{"negative", -5, true},
		{"wraps", 250, false},
		{"in range", 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 2*ns)
			in := sim.NewBuffer[pipeline.Value](h.k, "in")
			out := sim.NewBuffer[pipeline.Value](h.k, "out")
			pipeline.NewBehavior(h.env(), "behavior", pipeline.BehaviorConfig{
				Latency:       5 * ns,
				Inject:        true,
				InjectPercent: tt.percent,
			}, in, out)

			assert.Equal(t, tt.warn, strings.Contains(h.out.String(), "weight should be a number 1..100"))
			assert.ErrorIs(t, h.run(t), sim.ErrStarved)
		})
	}
}

func TestBehavior_Latency(t *testing.T) {
	h := newHarness(t, 2*ns)
	in := sim.NewBuffer[pipeline.Value](h.k, "in")
	out := sim.NewBuffer[pipeline.Value](h.k, "out")
	b := pipeline.NewBehavior(h.env(), "behavior", pipeline.BehaviorConfig{Latency: 7 * ns}, in, out)

	var seenAt time.Duration
	var seen pipeline.Value
	h.k.Spawn("driver", func(p *sim.Proc) error {
		p.Wait(3 * ns)
		in.Write(0xbeef)
		p.WaitEvent(out.Changed())
		seenAt, seen = p.Now(), out.Read()
		return nil
	})

	assert.ErrorIs(t, h.run(t), sim.ErrStarved)
	assert.Equal(t, 10*ns, seenAt)
	assert.Equal(t, pipeline.Transform(0xbeef), seen)
	assert.Equal(t, 1, b.Processed())
}

func TestSplitter_ElaborateNeedsExactlyOneInput(t *testing.T) {
	h := newHarness(t, 2*ns)

	none := pipeline.NewSplitter[int](h.env(), "none")
	none.Sig1()
	err := none.Elaborate()
	assert.True(t, errors.Is(err, errors.ErrCodeAssertion))
	assert.True(t, errors.IsFatal(err))

	both := pipeline.NewSplitter[int](h.env(), "both")
	both.ConnectFifo(sim.NewFifo[int](h.k, "f", 1))
	both.ConnectSignal(sim.NewSignal[int](h.k, "s"))
	both.Sig1()
	assert.True(t, errors.Is(both.Elaborate(), errors.ErrCodeAssertion))
}

func TestSplitter_OutputWarnings(t *testing.T) {
	tests := []struct {
		name    string
		outputs func(s *pipeline.Splitter[int])
		warning string
	}{
		{"none", func(s *pipeline.Splitter[int]) {}, "no outputs are connected"},
		{"one", func(s *pipeline.Splitter[int]) { s.Sig2() }, "only one output is connected"},
		{"two", func(s *pipeline.Splitter[int]) { s.Sig1(); s.FifoOut() }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 2*ns)
			s := pipeline.NewSplitter[int](h.env(), "splitter")
			s.ConnectSignal(sim.NewSignal[int](h.k, "in"))
			tt.outputs(s)

			require.NoError(t, s.Elaborate())
			assert.ErrorIs(t, h.run(t), sim.ErrStarved)
			if tt.warning == "" {
				assert.Zero(t, h.log.Count(logging.LevelWarn))
				return
			}
			assert.Contains(t, h.out.String(), tt.warning)
		})
	}
}

func TestSplitter_SignalInputFansOut(t *testing.T) {
	h := newHarness(t, 2*ns)
	in := sim.NewBuffer[int](h.k, "in")
	s := pipeline.NewSplitter[int](h.env(), "splitter")
	s.ConnectSignal(in)
	sig1, sig2, fifo := s.Sig1(), s.Sig2(), s.FifoOut()
	require.NoError(t, s.Elaborate())

	var got1, got2 []int
	h.k.Spawn("driver", func(p *sim.Proc) error {
		for i := 1; i <= 3; i++ {
			p.Wait(ns)
			in.Write(i)
		}
		return nil
	})
	h.k.Spawn("sink1", func(p *sim.Proc) error {
		for {
			p.WaitEvent(sig1.Changed())
			got1 = append(got1, sig1.Read())
		}
	})
	h.k.Spawn("sink2", func(p *sim.Proc) error {
		for {
			p.WaitEvent(sig2.Changed())
			got2 = append(got2, sig2.Read())
		}
	})

	assert.ErrorIs(t, h.run(t), sim.ErrStarved)
	assert.Equal(t, []int{1, 2, 3}, got1)
	assert.Equal(t, []int{1, 2, 3}, got2)
	assert.Equal(t, uint64(3), s.Transfers())

	// Nobody drains the fifo output, so only the first value fits.
	v, ok := fifo.TryGet()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Zero(t, fifo.Len())
}
