package insult

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eleven-am/overlord/internal/conversation"
	"github.com/eleven-am/overlord/internal/vision"
)

type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Requester turns a frame plus the recent history into the next line of
// text. It never returns an error: every failure becomes fallback text.
type Requester struct {
	client        Completer
	systemPrompt  string
	historyLength int
	logger        *slog.Logger
	now           func() time.Time
}

func NewRequester(client Completer, cfg Config, logger *slog.Logger) *Requester {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.HistoryLength <= 0 {
		cfg.HistoryLength = conversation.DefaultLength
	}

	return &Requester{
		client:        client,
		systemPrompt:  cfg.SystemPrompt,
		historyLength: cfg.HistoryLength,
		logger:        logger.With("component", "insult-requester"),
		now:           time.Now,
	}
}

// Request sends frame with the last historyLength turns of hist. On success
// the new turn is appended to hist, unless ctx was cancelled while the call
// was in flight. The call itself is not aborted by ctx.
func (r *Requester) Request(ctx context.Context, hist *conversation.History, frame vision.Frame) Result {
	if frame.IsZero() {
		return Result{
			Text:    TextRequestFailed,
			Outcome: OutcomeRequestFailure,
			Err:     errors.New("no frame data provided"),
		}
	}

	messages := BuildPrompt(r.systemPrompt, hist.Recent(r.historyLength), frame)

	start := r.now()
	content, err := r.client.Complete(context.WithoutCancel(ctx), messages)
	latency := r.now().Sub(start)

	if err != nil {
		res := Result{Err: err, Latency: latency}
		switch {
		case errors.Is(err, ErrTransport):
			res.Text, res.Outcome = TextSendFailed, OutcomeTransportFailure
		case errors.Is(err, ErrParse):
			res.Text, res.Outcome = TextSendFailed, OutcomeParseFailure
		default:
			res.Text, res.Outcome = TextRequestFailed, OutcomeRequestFailure
		}
		r.logger.Warn("insult request failed", "outcome", res.Outcome, "latency_ms", latency.Milliseconds(), "error", err)
		return res
	}

	res := Result{Text: content, Outcome: OutcomeOK, Latency: latency}
	if content == "" {
		res.Text, res.Outcome = TextNoResponse, OutcomeNoContent
	}

	res.Appended = hist.AppendIf(conversation.Turn{Message: res.Text, Image: frame}, func() bool {
		return ctx.Err() == nil
	})
	if !res.Appended {
		r.logger.Debug("discarding result of cancelled cycle", "latency_ms", latency.Milliseconds())
		return res
	}

	r.logger.Debug("insult received", "latency_ms", latency.Milliseconds(), "text_len", len(res.Text))
	return res
}
