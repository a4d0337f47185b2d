package intent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// =============================================================================
// Intent Service Test Suite
// =============================================================================
// Justification for unit tests: get-or-create is the concurrency-sensitive
// entry point for every verification attempt. The retry-on-conflict path and
// the idempotency keying (workflow-scoped vs subject-scoped) need precise
// exercise that end-to-end flows cannot isolate.

type IntentServiceSuite struct {
	suite.Suite
	store   *MemoryStore
	service *Service
}

func TestIntentServiceSuite(t *testing.T) {
	suite.Run(t, new(IntentServiceSuite))
}

func (s *IntentServiceSuite) SetupTest() {
	s.store = NewMemoryStore()

	var err error
	s.service, err = NewService(s.store, nil)
	s.Require().NoError(err)
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *IntentServiceSuite) TestNewService() {
	s.Run("nil store returns error", func() {
		_, err := NewService(nil, nil)
		s.Error(err)
		s.Contains(err.Error(), "intent store is required")
	})
}

// =============================================================================
// GetOrCreate Tests
// =============================================================================

func (s *IntentServiceSuite) TestGetOrCreate() {
	ctx := context.Background()
	subject := id.NewSubjectID()
	tenant := id.NewTenantID()
	workflow := id.NewWorkflowID()

	s.Run("first call creates a new intent", func() {
		record, err := s.service.GetOrCreate(ctx, subject, tenant, &workflow, KindOnboardingKYC)
		s.NoError(err)
		s.Equal(subject, record.SubjectID)
		s.Equal(KindOnboardingKYC, record.Kind)
		s.False(record.ID.IsNil())
	})

	s.Run("second call with same key returns the same intent", func() {
		first, err := s.service.GetOrCreate(ctx, subject, tenant, &workflow, KindOnboardingKYC)
		s.Require().NoError(err)

		second, err := s.service.GetOrCreate(ctx, subject, tenant, &workflow, KindOnboardingKYC)
		s.NoError(err)
		s.Equal(first.ID, second.ID)
	})

	s.Run("different kind under same workflow creates a distinct intent", func() {
		kyc, err := s.service.GetOrCreate(ctx, subject, tenant, &workflow, KindOnboardingKYC)
		s.Require().NoError(err)

		doc, err := s.service.GetOrCreate(ctx, subject, tenant, &workflow, KindDocumentVerification)
		s.NoError(err)
		s.NotEqual(kyc.ID, doc.ID)
	})

	s.Run("workflow-less idempotent kind keys on subject", func() {
		first, err := s.service.GetOrCreate(ctx, subject, tenant, nil, KindOnboardingKYB)
		s.Require().NoError(err)

		second, err := s.service.GetOrCreate(ctx, subject, tenant, nil, KindOnboardingKYB)
		s.NoError(err)
		s.Equal(first.ID, second.ID)
	})

	s.Run("non-idempotent kind creates a fresh intent on every call", func() {
		first, err := s.service.GetOrCreate(ctx, subject, tenant, nil, KindWatchlistCheck)
		s.Require().NoError(err)

		second, err := s.service.GetOrCreate(ctx, subject, tenant, nil, KindWatchlistCheck)
		s.NoError(err)
		s.NotEqual(first.ID, second.ID)
	})
}

func (s *IntentServiceSuite) TestGetOrCreateConcurrent() {
	ctx := context.Background()
	subject := id.NewSubjectID()
	tenant := id.NewTenantID()
	workflow := id.NewWorkflowID()

	const callers = 16
	results := make([]*Intent, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = s.service.GetOrCreate(ctx, subject, tenant, &workflow, KindOnboardingKYC)
		}(i)
	}
	wg.Wait()

	winner := results[0].ID
	for i := 0; i < callers; i++ {
		s.NoError(errs[i])
		s.Equal(winner, results[i].ID, "every concurrent caller must see the same intent")
	}
}

// =============================================================================
// Get Tests
// =============================================================================

func (s *IntentServiceSuite) TestGet() {
	ctx := context.Background()

	s.Run("unknown intent returns not found code", func() {
		_, err := s.service.Get(ctx, id.NewIntentID())
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("created intent is readable by ID", func() {
		subject := id.NewSubjectID()
		record, err := s.service.GetOrCreate(ctx, subject, id.NewTenantID(), nil, KindDeviceAttestation)
		s.Require().NoError(err)

		fetched, err := s.service.Get(ctx, record.ID)
		s.NoError(err)
		s.Equal(record.ID, fetched.ID)
		s.Equal(subject, fetched.SubjectID)
	})
}
