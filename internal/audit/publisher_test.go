package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vouch/pkg/domain"
	"vouch/pkg/requestcontext"
)

func TestPublisherEmit(t *testing.T) {
	store := NewMemoryStore()
	pub := NewPublisher(store)

	subject := id.NewSubjectID()
	at := time.Date(2026, 5, 11, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)
	ctx = requestcontext.WithRequestID(ctx, "req-42")

	err := pub.Emit(ctx, Event{
		SubjectID: subject,
		IntentID:  id.NewIntentID(),
		Action:    ActionDecisionMade,
		Decision:  "pass",
	})
	require.NoError(t, err)

	events, err := pub.List(ctx, subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionDecisionMade, events[0].Action)
	assert.Equal(t, at, events[0].Timestamp)
	assert.Equal(t, "req-42", events[0].RequestID)
}

func TestWorkerPersistsInboxEvents(t *testing.T) {
	store := NewMemoryStore()
	inbox := make(chan Event, 4)
	worker := NewWorker(store, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	subject := id.NewSubjectID()
	inbox <- Event{SubjectID: subject, Action: ActionDocSessionStarted}
	inbox <- Event{SubjectID: subject, Action: ActionDocSessionCompleted}

	require.Eventually(t, func() bool {
		events, err := store.ListBySubject(context.Background(), subject)
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
