// Command quiesce runs the demo pipeline under the objection coordinator and
// stops it once every component has gone quiet.
//
// Run: go run ./cmd/quiesce -n 20 -inject=10 -trace
// Stop early: Ctrl+C (SIGINT) or kill (SIGTERM)
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vinayprograms/quiesce/bus"
	"github.com/vinayprograms/quiesce/config"
	"github.com/vinayprograms/quiesce/errors"
	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/objection"
	"github.com/vinayprograms/quiesce/pipeline"
	"github.com/vinayprograms/quiesce/shutdown"
	"github.com/vinayprograms/quiesce/sim"
	"github.com/vinayprograms/quiesce/trace"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one simulation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "quiesce: %v\n", err)
		return 1
	}

	k := sim.NewKernel("top")
	log := logging.New().WithClock(k.Now)
	log.SetOutput(stdout)
	configureLog(log, cfg.Log)

	passed, err := simulate(ctx, k, log, cfg)
	if err != nil {
		fields := map[string]interface{}{"code": errors.Code(err)}
		if se := errors.AsStructured(err); se != nil {
			for key, v := range se.Metadata() {
				fields[key] = v
			}
		}
		log.Error(err.Error(), fields)
		passed = false
	}
	log.Summary(passed)
	if !passed {
		return 1
	}
	return 0
}

func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := opts.apply(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidConfig, "applying flags")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configureLog(log *logging.Logger, cfg config.LogConfig) {
	level, _ := logging.ParseLevel(cfg.Level)
	if cfg.Quiet && level != logging.LevelError {
		level = logging.LevelWarn
	}
	log.SetLevel(level)
	for _, component := range cfg.Debug {
		log.SetComponentLevel(component, logging.LevelDebug)
	}
}

// simulate builds the pipeline, runs the kernel and delivers the shutdown
// notice. It reports whether every sample was observed and matched.
func simulate(ctx context.Context, k *sim.Kernel, log *logging.Logger, cfg *config.Config) (bool, error) {
	messages := bus.NewMemoryBus(bus.Config{Blocking: true})
	reg := objection.New(k, objection.Config{
		DrainTime:   cfg.Objection.DrainTime.Std(),
		Timeout:     cfg.Objection.Timeout.Std(),
		UniqueNames: cfg.Objection.UniqueNames,
	}, objection.WithLogger(log), objection.WithBus(messages))

	coord := shutdown.NewCoordinator(shutdown.Config{
		DefaultTimeout:  10 * time.Second,
		ContinueOnError: true,
		OnProgress: func(hr shutdown.HandlerResult) {
			if hr.Err != nil {
				log.Error("shutdown handler failed", map[string]interface{}{
					"handler": hr.Name,
					"phase":   hr.Phase,
					"error":   hr.Err,
				})
			}
		},
	})
	coord.RegisterFunc("bus", func(ctx context.Context, n shutdown.Notice) error {
		return messages.Close()
	})

	env := pipeline.Env{Kernel: k, Registry: reg, Log: log}
	if cfg.Trace.Enabled {
		rec, err := openTrace(ctx, coord, messages, log, cfg.Trace)
		if err != nil {
			return false, err
		}
		env.Tracer = rec
	}

	top, err := pipeline.New(env, pipeline.Config{
		Stimulus: pipeline.StimulusConfig{
			Samples: cfg.Stimulus.Samples,
			Period:  cfg.Stimulus.Period.Std(),
			Seed:    cfg.Stimulus.Seed,
		},
		Behavior: pipeline.BehaviorConfig{
			Latency:       cfg.Behavior.Latency.Std(),
			Inject:        cfg.Behavior.Inject,
			InjectPercent: cfg.Behavior.InjectPercent,
			Seed:          cfg.Stimulus.Seed + 1,
		},
	})
	if err != nil {
		return false, err
	}

	var report pipeline.Report
	coord.RegisterFuncWithPhase("report", func(ctx context.Context, n shutdown.Notice) error {
		report = top.Report()
		fields := map[string]interface{}{
			"sent":     report.Sent,
			"observed": report.Observed,
			"failures": report.Failures,
			"at":       n.At.String(),
		}
		if report.Injected > 0 {
			fields["injected"] = report.Injected
		}
		if n.Signal != nil {
			fields["signal"] = n.Signal.String()
		}
		log.Info("run complete", fields)
		return nil
	}, shutdown.PhaseReport)

	if err := reg.Start(); err != nil {
		return false, err
	}

	stopSignals := coord.HandleSignals(k.Stop)
	runErr := k.Run(ctx)
	stopSignals()

	at, _ := k.StopTime()
	if runErr == sim.ErrStarved {
		at = k.Now()
	}
	outcome := reg.Outcome()
	notice := shutdown.Notice{
		Outcome:     string(outcome.Kind),
		Reason:      outcome.Reason,
		At:          at,
		Outstanding: reg.Outstanding(),
		Abandoned:   reg.Abandoned(),
		Err:         runErr,
	}
	shutdownErr := coord.ShutdownWithTimeout(notice, 0)

	if runErr == sim.ErrStarved {
		active := make([]string, 0)
		for name, n := range reg.Active() {
			active = append(active, fmt.Sprintf("%s(%d)", name, n))
		}
		return false, errors.WrapWithCode(runErr, errors.ErrCodeUncleanShutdown,
			"unclean shutdown", errors.WithMetadata("active", strings.Join(active, ",")))
	}
	if runErr != nil {
		return false, errors.Wrap(runErr, "simulation failed")
	}
	if shutdownErr != nil {
		return false, errors.Wrap(shutdownErr, "shutdown failed")
	}

	passed := report.Passed() &&
		outcome.Kind == objection.OutcomeDrained &&
		coord.Signal() == nil &&
		log.Count(logging.LevelError) == 0
	return passed, nil
}

func openTrace(ctx context.Context, coord *shutdown.Coordinator, messages bus.MessageBus,
	log *logging.Logger, cfg config.TraceConfig) (*trace.Recorder, error) {
	bucket, err := trace.OpenBucket(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	rec, err := trace.NewRecorder(bucket, cfg.Key, log)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	if err := rec.Attach(messages, "objection.>"); err != nil {
		bucket.Close()
		return nil, err
	}

	coord.RegisterFuncWithPhase("trace", func(ctx context.Context, n shutdown.Notice) error {
		return rec.Close(ctx)
	}, shutdown.PhaseFlush)
	coord.RegisterFuncWithPhase("bucket", func(ctx context.Context, n shutdown.Notice) error {
		return bucket.Close()
	}, shutdown.PhaseRelease)
	return rec, nil
}
