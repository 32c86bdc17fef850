package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/quiesce/errors"
)

// Coordinator runs the registered handlers once a run has ended.
type Coordinator struct {
	config Config

	mu        sync.Mutex
	byPhase   map[int][]registration
	signal    os.Signal
	signals   chan os.Signal
	once      sync.Once
	done      chan struct{}
	err       error
	result    *ShutdownResult
	startedAt time.Time
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(config Config) *Coordinator {
	defaults := DefaultConfig()
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}
	if config.DefaultPhase == 0 {
		config.DefaultPhase = defaults.DefaultPhase
	}

	return &Coordinator{
		config:  config,
		byPhase: make(map[int][]registration),
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
}

// Register adds a handler in the default phase.
func (c *Coordinator) Register(name string, handler ShutdownHandler) {
	c.RegisterWithPhase(name, handler, c.config.DefaultPhase)
}

// RegisterWithPhase adds a handler to phase. Handlers sharing a phase run
// concurrently, in no particular order.
func (c *Coordinator) RegisterWithPhase(name string, handler ShutdownHandler, phase int) {
	c.mu.Lock()
	c.byPhase[phase] = append(c.byPhase[phase], registration{
		name:    name,
		handler: handler,
		phase:   phase,
	})
	c.mu.Unlock()
}

// RegisterFunc registers fn in the default phase.
func (c *Coordinator) RegisterFunc(name string, fn func(ctx context.Context, notice Notice) error) {
	c.Register(name, ShutdownFunc(fn))
}

// RegisterFuncWithPhase registers fn in phase.
func (c *Coordinator) RegisterFuncWithPhase(name string, fn func(ctx context.Context, notice Notice) error, phase int) {
	c.RegisterWithPhase(name, ShutdownFunc(fn), phase)
}

// Shutdown delivers notice to every handler. The signal recorded by
// HandleSignals, if any, is added to the notice.
func (c *Coordinator) Shutdown(ctx context.Context, notice Notice) error {
	c.once.Do(func() {
		c.startedAt = time.Now()
		if notice.Signal == nil {
			notice.Signal = c.Signal()
		}
		c.result = c.deliver(ctx, notice)
		c.err = c.result.Err
		close(c.done)
	})
	return c.err
}

// ShutdownWithTimeout delivers notice with a timeout. Zero selects the
// configured default.
func (c *Coordinator) ShutdownWithTimeout(notice Notice, timeout time.Duration) error {
	if timeout == 0 {
		timeout = c.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx, notice)
}

// HandleSignals calls stop on the first SIGTERM or SIGINT and records the
// signal for the notice. The returned function stops listening.
func (c *Coordinator) HandleSignals(stop func()) func() {
	signal.Notify(c.signals, syscall.SIGTERM, syscall.SIGINT)
	quit := make(chan struct{})

	go func() {
		select {
		case sig := <-c.signals:
			select {
			case <-quit:
				return
			default:
			}
			c.mu.Lock()
			c.signal = sig
			c.mu.Unlock()
			stop()
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(c.signals)
			close(quit)
		})
	}
}

// Signal returns the signal received by HandleSignals, if any.
func (c *Coordinator) Signal() os.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signal
}

// Trigger simulates a SIGTERM (useful for testing).
func (c *Coordinator) Trigger() {
	select {
	case c.signals <- syscall.SIGTERM:
	default:
	}
}

// Done returns a channel that is closed when shutdown is complete.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns any error that occurred during shutdown.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Result returns the detailed shutdown result.
// Only valid after Done() is closed.
func (c *Coordinator) Result() *ShutdownResult {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

// phases returns the registered handlers grouped by phase, lowest first.
func (c *Coordinator) phases() [][]registration {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]int, 0, len(c.byPhase))
	for phase := range c.byPhase {
		keys = append(keys, phase)
	}
	sort.Ints(keys)

	groups := make([][]registration, 0, len(keys))
	for _, phase := range keys {
		groups = append(groups, append([]registration(nil), c.byPhase[phase]...))
	}
	return groups
}

func (c *Coordinator) deliver(ctx context.Context, notice Notice) *ShutdownResult {
	result := &ShutdownResult{Notice: notice}
	defer func() {
		result.TotalDuration = time.Since(c.startedAt)
	}()

	for _, group := range c.phases() {
		if ctx.Err() != nil {
			result.Err = ErrTimeout
			return result
		}

		failed := false
		for _, hr := range c.runPhase(ctx, group, notice) {
			result.Results = append(result.Results, hr)
			failed = failed || hr.Err != nil
		}
		if failed {
			result.Err = ErrHandlerFailed
			if !c.config.ContinueOnError {
				return result
			}
		}
	}
	return result
}

// runPhase runs every handler of one phase concurrently. A panicking handler
// is reported as failed.
func (c *Coordinator) runPhase(ctx context.Context, group []registration, notice Notice) []HandlerResult {
	results := make([]HandlerResult, len(group))
	var wg sync.WaitGroup

	for i := range group {
		wg.Add(1)
		go func(hr *HandlerResult, r registration) {
			defer wg.Done()

			start := time.Now()
			hr.Name, hr.Phase = r.name, r.phase
			defer func() {
				if p := recover(); p != nil {
					hr.Err = errors.RecoverPanic(p)
				}
				hr.Duration = time.Since(start)
				if c.config.OnProgress != nil {
					c.config.OnProgress(*hr)
				}
			}()
			hr.Err = r.handler.OnShutdown(ctx, notice)
		}(&results[i], group[i])
	}

	wg.Wait()
	return results
}
