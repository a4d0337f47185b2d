package audit

import (
	"context"
	"time"

	id "vouch/pkg/domain"
	"vouch/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, subject id.SubjectID) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Worker consumes audit events from a channel and persists them. It keeps
// background processing off the request path without wiring queue
// implementations into domain services.
type Worker struct {
	store Store
	inbox <-chan Event
}

func NewWorker(store Store, inbox <-chan Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if event.Timestamp.IsZero() {
				event.Timestamp = time.Now()
			}
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}
