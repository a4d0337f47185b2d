//go:build integration

package waterfall_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vouch/internal/vendorapi"
	"vouch/internal/waterfall"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/testutil/containers"
)

const waterfallSchema = `
CREATE TABLE IF NOT EXISTS waterfall_executions (
	id           uuid PRIMARY KEY,
	intent_id    uuid NOT NULL UNIQUE,
	eligible     text[] NOT NULL,
	seqno        bigint NOT NULL,
	latest_step  int NOT NULL DEFAULT 0,
	completed_at timestamptz,
	created_at   timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS waterfall_steps (
	id           uuid PRIMARY KEY,
	execution_id uuid NOT NULL REFERENCES waterfall_executions (id),
	number       int NOT NULL,
	api          text NOT NULL,
	result_id    uuid,
	action       text,
	completed_at timestamptz,
	created_at   timestamptz NOT NULL,
	UNIQUE (execution_id, number)
);
`

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *waterfall.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.Apply(context.Background(), waterfallSchema))
	s.store = waterfall.NewPostgresStore(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "waterfall_steps", "waterfall_executions")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newExecution() waterfall.Execution {
	return waterfall.Execution{
		ID:        id.NewExecutionID(),
		IntentID:  id.NewIntentID(),
		Eligible:  []vendorapi.API{vendorapi.TrustlaneKYC, vendorapi.LumenKYC},
		Seqno:     3,
		CreatedAt: time.Now().UTC(),
	}
}

// TestRoundTrip verifies the eligible-vendor list and seqno survive storage
// unchanged; the orchestrator replays from exactly what was frozen here.
func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	record := s.newExecution()
	s.Require().NoError(s.store.CreateExecution(ctx, record))

	got, err := s.store.GetExecution(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(record.ID, got.ID)
	s.Equal(record.IntentID, got.IntentID)
	s.Equal(record.Eligible, got.Eligible)
	s.Equal(record.Seqno, got.Seqno)
	s.Zero(got.LatestStep)
	s.Nil(got.CompletedAt)

	byIntent, err := s.store.FindByIntent(ctx, record.IntentID)
	s.Require().NoError(err)
	s.Equal(record.ID, byIntent.ID)
}

func (s *PostgresStoreSuite) TestDuplicateIntentConflicts() {
	ctx := context.Background()
	record := s.newExecution()
	s.Require().NoError(s.store.CreateExecution(ctx, record))

	dup := s.newExecution()
	dup.IntentID = record.IntentID
	s.ErrorIs(s.store.CreateExecution(ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindByIntentNotFound() {
	_, err := s.store.FindByIntent(context.Background(), id.NewIntentID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentStepNumbersAreGapFree hammers CreateNextStep from many
// goroutines and asserts step numbers come out 1..N with no duplicates. The
// row lock on the execution is what makes this hold.
func (s *PostgresStoreSuite) TestConcurrentStepNumbersAreGapFree() {
	ctx := context.Background()
	record := s.newExecution()
	s.Require().NoError(s.store.CreateExecution(ctx, record))

	const runners = 20
	var wg sync.WaitGroup
	numbers := make(chan int, runners)
	for i := 0; i < runners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			step, err := s.store.CreateNextStep(ctx, record.ID, vendorapi.TrustlaneKYC)
			if err == nil {
				numbers <- step.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for n := range numbers {
		s.False(seen[n], "step number %d allocated twice", n)
		seen[n] = true
	}
	s.Len(seen, runners)
	for n := 1; n <= runners; n++ {
		s.True(seen[n], "step number %d missing", n)
	}

	steps, err := s.store.ListSteps(ctx, record.ID)
	s.Require().NoError(err)
	s.Len(steps, runners)
	for i, step := range steps {
		s.Equal(i+1, step.Number)
	}
}

func (s *PostgresStoreSuite) TestCompleteStepOnce() {
	ctx := context.Background()
	record := s.newExecution()
	s.Require().NoError(s.store.CreateExecution(ctx, record))
	step, err := s.store.CreateNextStep(ctx, record.ID, vendorapi.TrustlaneKYC)
	s.Require().NoError(err)

	resultID := id.NewResultID()
	s.Require().NoError(s.store.CompleteStep(ctx, step.ID, waterfall.ActionStop, &resultID))

	s.ErrorIs(s.store.CompleteStep(ctx, step.ID, waterfall.ActionContinue, nil), sentinel.ErrCompleted)
	s.ErrorIs(s.store.CompleteStep(ctx, id.NewStepID(), waterfall.ActionStop, nil), sentinel.ErrNotFound)

	steps, err := s.store.ListSteps(ctx, record.ID)
	s.Require().NoError(err)
	s.Require().Len(steps, 1)
	s.Equal(waterfall.ActionStop, steps[0].Action)
	s.Require().NotNil(steps[0].ResultID)
	s.Equal(resultID, *steps[0].ResultID)
	s.NotNil(steps[0].CompletedAt)
}

func (s *PostgresStoreSuite) TestCompletedExecutionRejectsNewSteps() {
	ctx := context.Background()
	record := s.newExecution()
	s.Require().NoError(s.store.CreateExecution(ctx, record))
	s.Require().NoError(s.store.CompleteExecution(ctx, record.ID))

	_, err := s.store.CreateNextStep(ctx, record.ID, vendorapi.TrustlaneKYC)
	s.ErrorIs(err, sentinel.ErrCompleted)

	// Completing again is a no-op, not an error.
	s.NoError(s.store.CompleteExecution(ctx, record.ID))
	s.ErrorIs(s.store.CompleteExecution(ctx, id.NewExecutionID()), sentinel.ErrNotFound)
}
