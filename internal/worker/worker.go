// Package worker runs pipeline stages on request over NATS.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/book-expert/corpus-builder/internal/config"
	"github.com/book-expert/corpus-builder/internal/core"
	"github.com/book-expert/corpus-builder/internal/pipeline"
	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

var (
	// ErrDispatcherNil indicates that no stage dispatcher was supplied.
	ErrDispatcherNil = errors.New("dispatcher cannot be nil")
	// ErrInvalidNGramSize indicates a negative n-gram size in a request.
	ErrInvalidNGramSize = errors.New("ngram_size must not be negative")
)

// Dispatcher runs one stage request. *pipeline.Runner implements it.
type Dispatcher interface {
	Run(ctx context.Context, request pipeline.Request) ([]pipeline.Report, error)
}

// StageRequestedEvent asks the worker to run a stage for a language.
type StageRequestedEvent struct {
	Header    events.EventHeader `json:"header"`
	Language  string             `json:"language"`
	Stage     string             `json:"stage"`
	NGramSize int                `json:"ngram_size,omitempty"`
	Tokens    string             `json:"tokens,omitempty"`
}

// StageReplyEvent answers a StageRequestedEvent.
type StageReplyEvent struct {
	Header    events.EventHeader  `json:"header"`
	Summaries []core.StageSummary `json:"summaries"`
	Error     string              `json:"error,omitempty"`
}

// NatsWorker listens for stage requests on a NATS subject and replies with
// the stage summaries. Requests are handled one at a time.
type NatsWorker struct {
	natsConnection   *nats.Conn
	subject          string
	dispatcher       Dispatcher
	defaultNGramSize int
	log              *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	dispatcher Dispatcher,
	defaultNGramSize int,
	log *logger.Logger,
) (*NatsWorker, error) {
	if dispatcher == nil {
		return nil, ErrDispatcherNil
	}

	return &NatsWorker{
		natsConnection:   natsConnection,
		subject:          subject,
		dispatcher:       dispatcher,
		defaultNGramSize: defaultNGramSize,
		log:              log,
	}, nil
}

// Run subscribes and blocks until ctx is done, then drains the subscription.
// A stage in flight sees the cancellation through its context.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for stage requests on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(ctx context.Context, msg *nats.Msg) {
	event, request, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)
		w.reply(msg, events.EventHeader{}, nil, err)

		return
	}

	w.log.Info("Running stage %s for %s (workflow %s)", request.Stage, request.Language, event.Header.WorkflowID)

	reports, runErr := w.dispatcher.Run(ctx, request)
	if runErr != nil {
		w.log.Error("Stage %s failed for workflow %s: %v", request.Stage, event.Header.WorkflowID, runErr)
	}

	summaries := make([]core.StageSummary, 0, len(reports))
	for _, report := range reports {
		summaries = append(summaries, report.Summary())
	}

	w.reply(msg, event.Header, summaries, runErr)
}

// reply keeps the workflow ID of the request and stamps a fresh event ID.
func (w *NatsWorker) reply(msg *nats.Msg, header events.EventHeader, summaries []core.StageSummary, runErr error) {
	if msg.Reply == "" {
		return
	}

	header.EventID = uuid.NewString()

	replyEvent := &StageReplyEvent{
		Header:    header,
		Summaries: summaries,
		Error:     "",
	}

	if runErr != nil {
		replyEvent.Error = runErr.Error()
	}

	err := w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", header.WorkflowID, err)
	}
}

// publishReplyEvent marshals and responds with the StageReplyEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *StageReplyEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*StageRequestedEvent, pipeline.Request, error) {
	var event StageRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, pipeline.Request{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	_, err = config.ParseLanguage(event.Language)
	if err != nil {
		return nil, pipeline.Request{}, err
	}

	tokens := pipeline.Words

	if event.Tokens != "" {
		tokens, err = pipeline.ParseTokenKind(event.Tokens)
		if err != nil {
			return nil, pipeline.Request{}, err
		}
	}

	nGramSize := event.NGramSize

	switch {
	case nGramSize < 0:
		return nil, pipeline.Request{}, fmt.Errorf("%w: got %d", ErrInvalidNGramSize, nGramSize)
	case nGramSize == 0:
		nGramSize = w.defaultNGramSize
	}

	return &event, pipeline.Request{
		Stage:     event.Stage,
		Language:  event.Language,
		NGramSize: nGramSize,
		Tokens:    tokens,
	}, nil
}
