// Package reveal types a string out one rune at a time over a fixed total
// duration and then holds the finished text on screen.
package reveal

import (
	"context"
	"time"
)

const (
	DefaultDuration = 5 * time.Second
	DefaultHold     = 5 * time.Second
)

type Phase string

const (
	PhaseResetting Phase = "resetting"
	PhaseRevealing Phase = "revealing"
	PhaseHolding   Phase = "holding"
	PhaseDone      Phase = "done"
)

type Progress struct {
	Phase Phase
	Typed string
}

type Config struct {
	Duration time.Duration
	Hold     time.Duration
}

type Revealer struct {
	duration time.Duration
	hold     time.Duration
}

func New(cfg Config) *Revealer {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.Hold < 0 {
		cfg.Hold = 0
	} else if cfg.Hold == 0 {
		cfg.Hold = DefaultHold
	}
	return &Revealer{duration: cfg.Duration, hold: cfg.Hold}
}

func (r *Revealer) Duration() time.Duration { return r.duration }
func (r *Revealer) Hold() time.Duration     { return r.hold }

// Interval is the per-rune delay for text; zero for empty text.
func (r *Revealer) Interval(text string) time.Duration {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return r.duration / time.Duration(n)
}

// Reveal walks resetting -> revealing -> holding -> done, calling publish on
// every step. A cancelled ctx abandons the walk and returns ctx.Err().
func (r *Revealer) Reveal(ctx context.Context, text string, publish func(Progress)) error {
	if publish == nil {
		publish = func(Progress) {}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	publish(Progress{Phase: PhaseResetting})

	runes := []rune(text)
	interval := r.Interval(text)
	for i := 1; i <= len(runes); i++ {
		publish(Progress{Phase: PhaseRevealing, Typed: string(runes[:i])})
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}

	publish(Progress{Phase: PhaseHolding, Typed: text})
	if err := sleep(ctx, r.hold); err != nil {
		return err
	}

	publish(Progress{Phase: PhaseDone, Typed: text})
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
