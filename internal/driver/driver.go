// Package driver runs blink plans to completion for callers that want to
// block, such as one-shot CLI commands. The machine itself never blocks;
// this package polls it and yields between polls.
package driver

import (
	"context"
	"time"

	"github.com/sweeney/blinker/internal/blink"
)

// DefaultInterval is how long SleepYield waits between polls.
const DefaultInterval = 5 * time.Millisecond

// Yield is called between polls. Returning an error aborts the run.
type Yield func(ctx context.Context) error

// SleepYield waits for interval or until ctx is done.
func SleepYield(interval time.Duration) Yield {
	return func(ctx context.Context) error {
		t := time.NewTimer(interval)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
}

// Run starts plan on m and polls until the sequence completes. If ctx is
// cancelled or yield fails, the machine is stopped and the error returned.
// An empty plan returns immediately.
func Run(ctx context.Context, m *blink.Machine, plan blink.Plan, now func() time.Time, yield Yield) error {
	if !m.Start(plan, now()) {
		return nil
	}
	for m.Poll(now()) {
		if err := ctx.Err(); err != nil {
			m.Stop()
			return err
		}
		if err := yield(ctx); err != nil {
			m.Stop()
			return err
		}
	}
	return nil
}

// Runner bundles a machine with its clock and yield so the blocking
// helpers read like the calls they replace.
type Runner struct {
	Machine *blink.Machine
	Now     func() time.Time
	Yield   Yield
}

// NewRunner drives out with the wall clock and SleepYield(DefaultInterval).
func NewRunner(out blink.Indicator) *Runner {
	return &Runner{
		Machine: blink.NewMachine(out),
		Now:     time.Now,
		Yield:   SleepYield(DefaultInterval),
	}
}

// Play runs plan to completion.
func (r *Runner) Play(ctx context.Context, plan blink.Plan) error {
	return Run(ctx, r.Machine, plan, r.Now, r.Yield)
}

func (r *Runner) play(ctx context.Context, plan blink.Plan, err error) error {
	if err != nil {
		return err
	}
	return r.Play(ctx, plan)
}

// Blink blinks count times with equal on and off halves.
func (r *Runner) Blink(ctx context.Context, half time.Duration, count int) error {
	p, err := blink.FromSimple(half, count)
	return r.play(ctx, p, err)
}

// BlinkDuty blinks count periods at the given duty cycle.
func (r *Runner) BlinkDuty(ctx context.Context, period time.Duration, duty float64, count int) error {
	p, err := blink.FromDutyCycle(period, duty, count)
	return r.play(ctx, p, err)
}

// BlinkTiming blinks count times with explicit on and off durations.
func (r *Runner) BlinkTiming(ctx context.Context, on, off time.Duration, count int) error {
	p, err := blink.FromExplicitTiming(on, off, count)
	return r.play(ctx, p, err)
}

// BlinkFrequency blinks at hz for roughly total.
func (r *Runner) BlinkFrequency(ctx context.Context, hz, duty float64, total time.Duration) error {
	p, err := blink.FromFrequency(hz, duty, total)
	return r.play(ctx, p, err)
}

// BlinkPattern plays steps repeat times.
func (r *Runner) BlinkPattern(ctx context.Context, steps []blink.Step, repeat int) error {
	p, err := blink.FromPattern(steps, repeat)
	return r.play(ctx, p, err)
}

// SOS signals SOS once.
func (r *Runner) SOS(ctx context.Context) error {
	return r.Play(ctx, blink.SOS())
}

// Morse signals text in Morse code.
func (r *Runner) Morse(ctx context.Context, text string, unit time.Duration, repeat int) error {
	p, err := blink.Morse(text, unit, repeat)
	return r.play(ctx, p, err)
}
