package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/overlord/internal/conversation"
	"github.com/eleven-am/overlord/internal/insult"
	"github.com/eleven-am/overlord/internal/reveal"
	"github.com/eleven-am/overlord/internal/vision"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	subscriberBuffer = 16
	recordTimeout    = 2 * time.Second
)

type ControllerConfig struct {
	Source    vision.VideoSource
	Capturer  Capturer
	Requester Requester
	Revealer  Revealer
	History   *conversation.History
	Recorders []Recorder

	// MinInterval spaces cycle starts; zero means cycles are gated only by
	// the request/reveal join.
	MinInterval time.Duration
	Placeholder string
	Logger      *slog.Logger
}

// Controller runs capture+request and reveal side by side, one cycle at a
// time, and publishes the revealed text as State.
type Controller struct {
	source      vision.VideoSource
	capturer    Capturer
	requester   Requester
	revealer    Revealer
	history     *conversation.History
	recorders   []Recorder
	minInterval time.Duration
	placeholder string
	logger      *slog.Logger

	mu      sync.Mutex
	state   State
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	subs    map[uint64]chan State
	nextSub uint64
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.History == nil {
		cfg.History = conversation.NewHistory(conversation.DefaultLength)
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultPlaceholder
	}

	return &Controller{
		source:      cfg.Source,
		capturer:    cfg.Capturer,
		requester:   cfg.Requester,
		revealer:    cfg.Revealer,
		history:     cfg.History,
		recorders:   cfg.Recorders,
		minInterval: cfg.MinInterval,
		placeholder: cfg.Placeholder,
		logger:      cfg.Logger.With("component", "loop-controller"),
		subs:        make(map[uint64]chan State),
	}
}

func (c *Controller) History() *conversation.History {
	return c.history
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Running
}

// Start begins a new run. It is a no-op while a run is active. A run started
// right after Stop waits for the previous run's in-flight cycle to drain
// before its first capture, so at most one request is ever outstanding.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state.Running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev := c.done
	done := make(chan struct{})
	runID := uuid.New().String()

	c.gen++
	c.cancel = cancel
	c.done = done
	c.state = State{
		RunID:     runID,
		Running:   true,
		UpdatedAt: time.Now(),
	}
	c.broadcastLocked()

	c.logger.Info("loop started", "run_id", runID)
	go c.run(ctx, c.gen, runID, prev, done)
	return nil
}

// Stop requests cancellation. The in-flight cycle may still finish its
// network call, but nothing it produces reaches the history or the state.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if !c.state.Running {
		return
	}
	// Cancel under the history lock so an in-flight append either lands
	// before Stop returns or is discarded.
	c.history.WithLock(c.cancel)
	c.gen++
	c.state.Running = false
	c.state.UpdatedAt = time.Now()
	c.broadcastLocked()
	c.logger.Info("loop stopped", "run_id", c.state.RunID, "cycle", c.state.Cycle)
}

// Wait blocks until the most recent run has fully exited.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop, waits for it to drain, discards the history and
// closes every subscription. The controller cannot be restarted.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.stopLocked()
	c.closed = true
	c.mu.Unlock()

	err := c.Wait(ctx)
	c.history.Reset()

	c.mu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()
	return err
}

// Subscribe returns a channel that receives the current state immediately
// and every change after it. Slow readers miss intermediate states, never
// the latest one.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				close(sub)
				delete(c.subs, id)
			}
		})
	}
}

func (c *Controller) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Controller) run(ctx context.Context, gen uint64, runID string, prev <-chan struct{}, done chan struct{}) {
	defer close(done)

	// done must not close before prev: a later run waits only on this one.
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			<-prev
			return
		}
	}

	limit := rate.Inf
	if c.minInterval > 0 {
		limit = rate.Every(c.minInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	text := c.placeholder
	for cycle := uint64(1); ; cycle++ {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		next, ok := c.runCycle(ctx, gen, runID, cycle, text)
		if !ok {
			return
		}
		text = next
	}
}

// runCycle reveals text while the next line is captured and requested, and
// returns that next line once both branches are done.
func (c *Controller) runCycle(ctx context.Context, gen uint64, runID string, cycle uint64, text string) (string, bool) {
	started := time.Now()
	if !c.update(gen, func(s *State) {
		s.Cycle = cycle
		s.Status = ""
	}) {
		return "", false
	}

	var (
		result insult.Result
		frame  vision.Frame
		g      errgroup.Group
	)

	g.Go(func() error {
		result, frame = c.fetch(ctx)
		if status := statusFor(result.Outcome); status != "" {
			c.update(gen, func(s *State) { s.Status = status })
		}
		return nil
	})

	g.Go(func() error {
		return c.revealer.Reveal(ctx, text, func(p reveal.Progress) {
			c.update(gen, func(s *State) {
				s.Text = p.Typed
				s.Phase = p.Phase
			})
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("reveal failed", "run_id", runID, "cycle", cycle, "error", err)
	}

	if ctx.Err() != nil {
		c.logger.Debug("cycle abandoned after stop", "run_id", runID, "cycle", cycle)
		return "", false
	}

	c.record(ctx, CycleRecord{
		RunID:     runID,
		Cycle:     cycle,
		Text:      result.Text,
		Outcome:   result.Outcome,
		Err:       result.Err,
		Latency:   result.Latency,
		Frame:     frame,
		Appended:  result.Appended,
		StartedAt: started,
		Duration:  time.Since(started),
	})

	return result.Text, true
}

func (c *Controller) fetch(ctx context.Context) (insult.Result, vision.Frame) {
	frame, err := c.capturer.Capture(c.source)
	if err != nil {
		res := insult.Result{Err: err}
		if errors.Is(err, vision.ErrCaptureUnavailable) {
			res.Text, res.Outcome = TextNoVideo, insult.OutcomeCaptureUnavailable
		} else {
			res.Text, res.Outcome = TextCaptureFailed, insult.OutcomeEncodingFailure
		}
		c.logger.Warn("frame capture failed", "outcome", res.Outcome, "error", err)
		return res, vision.Frame{}
	}

	return c.requester.Request(ctx, c.history, frame), frame
}

func (c *Controller) record(ctx context.Context, rec CycleRecord) {
	if len(c.recorders) == 0 {
		return
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	for _, r := range c.recorders {
		if err := r.Record(rctx, rec); err != nil {
			c.logger.Error("record cycle failed", "run_id", rec.RunID, "cycle", rec.Cycle, "error", err)
		}
	}
}

// update applies fn only while gen is still the current run.
func (c *Controller) update(gen uint64, fn func(*State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || !c.state.Running {
		return false
	}
	fn(&c.state)
	c.state.UpdatedAt = time.Now()
	c.broadcastLocked()
	return true
}

func (c *Controller) broadcastLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- c.state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c.state:
			default:
			}
		}
	}
}
