package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/vinayprograms/quiesce/config"
)

// optionalValue is a flag that may be given bare (-inject) or with a value
// (-inject=30).
type optionalValue struct {
	set   bool
	value string
}

func (o *optionalValue) String() string   { return o.value }
func (o *optionalValue) IsBoolFlag() bool { return true }

func (o *optionalValue) Set(s string) error {
	o.set = true
	if s == "true" {
		o.value = ""
		return nil
	}
	o.value = s
	return nil
}

type durationFlag struct {
	set   bool
	value config.Duration
}

func (d *durationFlag) String() string { return d.value.String() }

func (d *durationFlag) Set(s string) error {
	v, err := config.ParseDuration(s)
	if err != nil {
		return err
	}
	d.set = true
	d.value = v
	return nil
}

type options struct {
	configPath string
	samples    int
	seed       int64
	quiet      bool
	inject     optionalValue
	debug      optionalValue
	trace      optionalValue
	timeout    durationFlag
	drain      durationFlag

	visited map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{visited: make(map[string]bool)}

	fs := flag.NewFlagSet("quiesce", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: quiesce [options]\n\n")
		fmt.Fprintf(stderr, "Runs the stimulus/behavior/observer pipeline until it goes quiet.\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "config file (TOML or YAML)")
	fs.IntVar(&opts.samples, "n", config.DefaultSamples, "number of samples, 1..100")
	fs.Int64Var(&opts.seed, "seed", 1, "random seed")
	fs.BoolVar(&opts.quiet, "quiet", false, "only report warnings and errors")
	fs.Var(&opts.inject, "inject", "inject bit errors, optionally at `PCT` percent")
	fs.Var(&opts.debug, "debug", "debug logging, optionally for one `INSTANCE`")
	fs.Var(&opts.trace, "trace", "write a trace, optionally to bucket `URL`")
	fs.Var(&opts.timeout, "timeout", "absolute timeout in simulated time (e.g. 500ns)")
	fs.Var(&opts.drain, "drain", "drain time in simulated time (e.g. 2ns)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected argument %q", fs.Arg(0))
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.visited[f.Name] = true })
	return opts, nil
}

// apply overrides cfg with the flags given on the command line.
func (o *options) apply(cfg *config.Config) error {
	if o.visited["n"] {
		cfg.Stimulus.Samples = o.samples
	}
	if o.visited["seed"] {
		cfg.Stimulus.Seed = o.seed
	}
	if o.quiet {
		cfg.Log.Quiet = true
	}
	if o.inject.set {
		cfg.Behavior.Inject = true
		if o.inject.value != "" {
			pct, err := strconv.ParseFloat(o.inject.value, 64)
			if err != nil {
				return fmt.Errorf("invalid -inject value %q", o.inject.value)
			}
			cfg.Behavior.InjectPercent = pct
		}
	}
	if o.debug.set {
		if o.debug.value == "" {
			cfg.Log.Level = "debug"
		} else {
			cfg.Log.Debug = append(cfg.Log.Debug, o.debug.value)
		}
	}
	if o.trace.set {
		cfg.Trace.Enabled = true
		if o.trace.value != "" {
			cfg.Trace.URL = o.trace.value
		}
	}
	if o.timeout.set {
		cfg.Objection.Timeout = o.timeout.value
	}
	if o.drain.set {
		cfg.Objection.DrainTime = o.drain.value
	}
	return nil
}
