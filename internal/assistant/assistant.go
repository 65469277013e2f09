// Package assistant answers schedule questions: it gathers schedule context,
// asks the model, and formats the reply into display lines.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/schedchat/schedchat/internal/format"
	"github.com/schedchat/schedchat/internal/ollama"
	"github.com/schedchat/schedchat/internal/schedule"
	"github.com/schedchat/schedchat/internal/storage"
	"github.com/schedchat/schedchat/internal/tracing"
)

var (
	// ErrContext wraps failures while assembling schedule context.
	ErrContext = errors.New("building schedule context")
	// ErrInference wraps failures of the model call.
	ErrInference = errors.New("inference call failed")
)

// ChatClient is the model endpoint used by the Assistant.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) (string, error)
	Generate(ctx context.Context, model, prompt string) (json.RawMessage, error)
}

// Recorder persists answered questions. Optional.
type Recorder interface {
	SaveInteraction(i storage.Interaction) error
}

// Result is the outcome of one answered question.
type Result struct {
	Question      string   `json:"question"`
	ScheduleNames []string `json:"schedule_names"`
	Selected      []string `json:"-"`
	Context       string   `json:"context"`
	Raw           string   `json:"raw"`
	Lines         []string `json:"lines"`
}

// Deps holds the Assistant's collaborators.
type Deps struct {
	Store    *schedule.Store
	Selector *schedule.Selector // nil uses the default rules
	Client   ChatClient
	Model    string
	Recorder Recorder     // nil disables history
	Logger   *slog.Logger // nil uses slog.Default()
}

// Assistant orchestrates store, selector, model call and formatter. It holds
// no per-request state and is safe for concurrent use.
type Assistant struct {
	store    *schedule.Store
	selector *schedule.Selector
	client   ChatClient
	model    string
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates an Assistant.
func New(d Deps) *Assistant {
	sel := d.Selector
	if sel == nil {
		sel = schedule.NewSelector()
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		store:    d.Store,
		selector: sel,
		client:   d.Client,
		model:    d.Model,
		recorder: d.Recorder,
		logger:   logger,
		tracer:   tracing.Tracer("github.com/schedchat/schedchat/internal/assistant"),
		now:      time.Now,
	}
}

// Model returns the model name used for questions.
func (a *Assistant) Model() string {
	return a.model
}

// Answer answers one question using the preloaded schedules merged with the
// uploaded ones. An empty question yields an empty Result without calling
// the model. Errors wrap ErrContext or ErrInference.
func (a *Assistant) Answer(ctx context.Context, question string, uploads []schedule.Upload) (res Result, err error) {
	res = Result{Question: question, Lines: []string{}}
	if question == "" {
		return res, nil
	}

	ctx, span := a.tracer.Start(ctx, "assistant.answer", trace.WithAttributes(
		attribute.Int("schedchat.uploads", len(uploads)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	preloaded, err := a.store.LoadPreloaded()
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrContext, err)
	}
	merged := schedule.Merge(preloaded, a.store.LoadUploaded(uploads))

	res.ScheduleNames = a.selector.MatchedKeys(question)
	res.Selected = a.selector.Select(question, merged)
	res.Context = schedule.JoinContext(res.Selected)
	span.SetAttributes(
		attribute.Int("schedchat.schedules_available", len(merged)),
		attribute.StringSlice("schedchat.schedules_selected", res.ScheduleNames),
	)

	raw, err := a.client.Chat(ctx, a.model, BuildMessages(question, res.Context))
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInference, err)
		a.record(res, err)
		return res, err
	}

	res.Raw = raw
	res.Lines = format.Format(raw)
	a.record(res, nil)

	a.logger.Debug("question answered",
		"schedules", res.ScheduleNames,
		"context_bytes", len(res.Context),
		"lines", len(res.Lines),
	)
	return res, nil
}

// Generate forwards a bare prompt to the model and returns its JSON reply
// untouched. Errors wrap ErrInference.
func (a *Assistant) Generate(ctx context.Context, prompt string) (json.RawMessage, error) {
	raw, err := a.client.Generate(ctx, a.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return raw, nil
}

// Schedules returns the preloaded schedules currently on disk.
func (a *Assistant) Schedules() (schedule.Collection, error) {
	c, err := a.store.LoadPreloaded()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContext, err)
	}
	return c, nil
}

func (a *Assistant) record(res Result, answerErr error) {
	if a.recorder == nil {
		return
	}
	ix := storage.Interaction{
		ID:              uuid.New().String(),
		CreatedAt:       a.now().UTC(),
		Question:        res.Question,
		ScheduleContext: res.Context,
		ScheduleNames:   res.ScheduleNames,
		Model:           a.model,
		RawResponse:     res.Raw,
		Lines:           res.Lines,
		Status:          storage.StatusCompleted,
	}
	if answerErr != nil {
		ix.Status = storage.StatusFailed
		ix.Error = answerErr.Error()
	}
	if err := a.recorder.SaveInteraction(ix); err != nil {
		a.logger.Warn("recording interaction failed", "error", err)
	}
}
