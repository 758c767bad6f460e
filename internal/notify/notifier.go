// Package notify publishes stage completion events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/corpus-builder/internal/core"
	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const flushTimeout = 5 * time.Second

var (
	// ErrConnectionNil indicates that no NATS connection was supplied.
	ErrConnectionNil = errors.New("nats connection cannot be nil")
	// ErrSubjectEmpty indicates that no subject was configured.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
)

// StageCompletedEvent is published once per finished stage.
type StageCompletedEvent struct {
	Header    events.EventHeader `json:"header"`
	Language  string             `json:"language"`
	Stage     string             `json:"stage"`
	Processed int                `json:"processed"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
}

// NatsNotifier implements core.Notifier. Every event of one notifier shares a
// workflow ID so consumers can group the stages of a single run.
type NatsNotifier struct {
	natsConnection *nats.Conn
	subject        string
	workflowID     string
	now            func() time.Time
}

// NewNatsNotifier creates a notifier publishing on subject.
func NewNatsNotifier(natsConnection *nats.Conn, subject string) (*NatsNotifier, error) {
	if natsConnection == nil {
		return nil, ErrConnectionNil
	}

	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsNotifier{
		natsConnection: natsConnection,
		subject:        subject,
		workflowID:     uuid.NewString(),
		now:            time.Now,
	}, nil
}

// WorkflowID returns the ID stamped on every event of this run.
func (n *NatsNotifier) WorkflowID() string {
	return n.workflowID
}

// StageCompleted publishes the summary and flushes the connection.
func (n *NatsNotifier) StageCompleted(ctx context.Context, summary core.StageSummary) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("notification for stage %s cancelled: %w", summary.Stage, err)
	}

	event := &StageCompletedEvent{
		Header: events.EventHeader{
			Timestamp:  n.now(),
			WorkflowID: n.workflowID,
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		Language:  summary.Language,
		Stage:     summary.Stage,
		Processed: summary.Processed,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stage completed event: %w", err)
	}

	err = n.natsConnection.Publish(n.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", n.subject, err)
	}

	err = n.natsConnection.FlushTimeout(flushTimeout)
	if err != nil {
		return fmt.Errorf("failed to flush stage completed event: %w", err)
	}

	return nil
}
