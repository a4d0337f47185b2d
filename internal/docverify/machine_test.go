package docverify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"vouch/internal/docverify/credcache"
	"vouch/internal/intent"
	"vouch/internal/ledger"
	"vouch/internal/ledger/seal"
	"vouch/internal/vendors/veriscan"
	id "vouch/pkg/domain"
)

// =============================================================================
// Document Verification Machine Test Suite
// =============================================================================
// Justification for unit tests: the state machine's readiness gating,
// transition branching, and reason classification decide what a client is
// asked to do next and when a session dies. Each property is pinned against
// the deterministic sandbox transport.

type MachineSuite struct {
	suite.Suite
	ledgerStore *ledger.MemoryStore
	ledgerSvc   *ledger.Service
	sessions    *MemoryStore
	creds       *credcache.MemoryCache
	intents     *intent.Service

	subject id.SubjectID
	tenant  id.TenantID
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	s.ledgerStore = ledger.NewMemoryStore()
	s.sessions = NewMemoryStore()
	s.creds = credcache.NewMemoryCache()
	s.subject = id.NewSubjectID()
	s.tenant = id.NewTenantID()

	sealer, err := seal.New(bytes.Repeat([]byte{0x03}, 32))
	s.Require().NoError(err)
	s.ledgerSvc, err = ledger.NewService(s.ledgerStore, sealer, nil)
	s.Require().NoError(err)

	s.intents, err = intent.NewService(intent.NewMemoryStore(), nil)
	s.Require().NoError(err)
}

func (s *MachineSuite) newService(transport *veriscan.SandboxTransport) *Service {
	if transport.SigningKey == nil {
		transport.SigningKey = []byte("sandbox-signing-key")
	}
	machine, err := NewMachine(veriscan.NewAdapter(transport, 0), s.ledgerSvc, s.creds, nil, nil)
	s.Require().NoError(err)

	service, err := NewService(s.sessions, machine, s.intents, s.creds, nil)
	s.Require().NoError(err)
	return service
}

func (s *MachineSuite) start(service *Service, kind Kind) *Session {
	session, _ := s.startWithWorkflow(service, kind)
	return session
}

func (s *MachineSuite) startWithWorkflow(service *Service, kind Kind) (*Session, id.WorkflowID) {
	workflow := id.NewWorkflowID()
	session, err := service.StartOnboarding(context.Background(), s.subject, s.tenant, &workflow, kind)
	s.Require().NoError(err)
	return session, workflow
}

func (s *MachineSuite) requestCount(intentID id.IntentID) int {
	requests, err := s.ledgerStore.ListRequestsByIntent(context.Background(), intentID)
	s.Require().NoError(err)
	return len(requests)
}

var (
	frontImage  = []byte("front-capture")
	backImage   = []byte("back-capture")
	selfieImage = []byte("selfie-capture")
)

// =============================================================================
// Flow Tests
// =============================================================================

func (s *MachineSuite) TestStartOnboarding() {
	service := s.newService(&veriscan.SandboxTransport{})
	session, workflow := s.startWithWorkflow(service, KindDocument)

	s.Run("session waits for the front image", func() {
		s.Equal(StateAddFront, session.State)
		s.NotEmpty(session.VendorSessionID)
	})

	s.Run("client token is cached under the vendor session", func() {
		token, err := service.ClientToken(context.Background(), session.ID)
		s.NoError(err)
		s.NotEmpty(token)
	})

	s.Run("the session create call is in the ledger without the token", func() {
		requests, err := s.ledgerStore.ListRequestsByIntent(context.Background(), session.IntentID)
		s.Require().NoError(err)
		s.Require().Len(requests, 1)

		result, err := s.ledgerStore.LatestSuccessfulResult(context.Background(), s.subject, requests[0].API)
		s.Require().NoError(err)
		s.NotContains(string(result.Scrubbed), "client_token")
	})

	s.Run("starting again resumes the same session", func() {
		again, err := service.StartOnboarding(context.Background(), s.subject, s.tenant, &workflow, KindDocument)
		s.NoError(err)
		s.Equal(session.ID, again.ID)
	})
}

func (s *MachineSuite) TestNotReadyStepIsNoOp() {
	service := s.newService(&veriscan.SandboxTransport{})
	session := s.start(service, KindDocument)
	ctx := context.Background()

	progress, err := service.SubmitFront(ctx, session.ID, frontImage)
	s.Require().NoError(err)
	s.Equal(StateAddBack, progress.State)

	before := s.requestCount(session.IntentID)

	s.Run("advancing without a back image makes no vendor call and no ledger entry", func() {
		progress, err := service.Poll(ctx, session.ID)
		s.NoError(err)
		s.Equal(StateAddBack, progress.State)
		s.Equal(before, s.requestCount(session.IntentID))
	})

	s.Run("the same step runs normally once the input arrives", func() {
		progress, err := service.SubmitBack(ctx, session.ID, backImage)
		s.NoError(err)
		s.Equal(StateAddConsent, progress.State)
		s.Equal(before+1, s.requestCount(session.IntentID))
	})
}

func (s *MachineSuite) TestFullFlowWithoutSelfie() {
	service := s.newService(&veriscan.SandboxTransport{
		StatusPollsUntilComplete: 1,
		DocumentScore:            0.92,
	})
	session := s.start(service, KindDocument)
	ctx := context.Background()

	_, err := service.SubmitFront(ctx, session.ID, frontImage)
	s.Require().NoError(err)
	_, err = service.SubmitBack(ctx, session.ID, backImage)
	s.Require().NoError(err)

	progress, err := service.SubmitConsent(ctx, session.ID)
	s.Require().NoError(err)

	s.Run("processing waits for the vendor's asynchronous status", func() {
		s.Equal(StateGetOnboardingStatus, progress.State)
		s.False(progress.Completed)
	})

	s.Run("polling again completes the flow with scores", func() {
		progress, err := service.Poll(ctx, session.ID)
		s.NoError(err)
		s.True(progress.Completed)
		s.True(progress.ScoresReady)
		s.InDelta(0.92, progress.DocumentScore, 0.0001)
	})
}

func (s *MachineSuite) TestFullFlowWithSelfie() {
	service := s.newService(&veriscan.SandboxTransport{
		DocumentScore:  0.95,
		FaceMatchScore: 0.88,
	})
	session := s.start(service, KindDocumentWithSelfie)
	ctx := context.Background()

	_, err := service.SubmitFront(ctx, session.ID, frontImage)
	s.Require().NoError(err)

	progress, err := service.SubmitBack(ctx, session.ID, backImage)
	s.Require().NoError(err)

	s.Run("selfie kinds go to selfie capture after the back side", func() {
		s.Equal(StateAddSelfie, progress.State)
	})

	s.Run("selfie completes the flow through face processing", func() {
		progress, err := service.SubmitSelfie(ctx, session.ID, selfieImage)
		s.NoError(err)
		s.True(progress.Completed)
		s.InDelta(0.88, progress.FaceMatchScore, 0.0001)
	})
}

// =============================================================================
// Transition Tests
// =============================================================================

func (s *MachineSuite) TestAddBackTransition() {
	s.Run("selfie kind transitions to AddSelfie", func() {
		session := &Session{Kind: KindDocumentWithSelfie}
		s.Equal(StateAddSelfie, addBackStep{}.transition(session))
	})

	s.Run("plain document kind transitions to AddConsent", func() {
		session := &Session{Kind: KindDocument}
		s.Equal(StateAddConsent, addBackStep{}.transition(session))
	})
}

// =============================================================================
// Reason Tests
// =============================================================================

func (s *MachineSuite) TestIgnorableCaptureFailure() {
	service := s.newService(&veriscan.SandboxTransport{
		SideFailures: []veriscan.SideFailure{veriscan.FailureGlare},
	})
	session := s.start(service, KindDocument)

	progress, err := service.SubmitFront(context.Background(), session.ID, frontImage)
	s.Require().NoError(err)

	s.Run("glare keeps the session in the same state for re-capture", func() {
		s.Equal(StateAddFront, progress.State)
		s.False(progress.Failed)
		s.Contains(progress.Outstanding, ReasonGlare)
	})
}

func (s *MachineSuite) TestFatalCaptureFailure() {
	service := s.newService(&veriscan.SandboxTransport{
		SideFailures: []veriscan.SideFailure{veriscan.FailureUnsupported},
	})
	session := s.start(service, KindDocument)

	progress, err := service.SubmitFront(context.Background(), session.ID, frontImage)
	s.Require().NoError(err)
	s.True(progress.Failed)
	s.Equal(StateFail, progress.State)
}

func (s *MachineSuite) TestDocTypeMismatch() {
	service := s.newService(&veriscan.SandboxTransport{
		DetectedType:     veriscan.DocTypeDriversLicense,
		BackDetectedType: veriscan.DocTypePassport,
	})
	session := s.start(service, KindDocument)
	ctx := context.Background()

	_, err := service.SubmitFront(ctx, session.ID, frontImage)
	s.Require().NoError(err)

	progress, err := service.SubmitBack(ctx, session.ID, backImage)
	s.Require().NoError(err)

	s.Run("mismatched sides append a local validation reason", func() {
		s.Contains(progress.Outstanding, ReasonTypeMismatch)
	})

	s.Run("the session stays in AddBack for re-capture", func() {
		s.Equal(StateAddBack, progress.State)
		s.False(progress.Failed)
	})

	s.Run("neither side's type is silently preferred", func() {
		stored, err := service.Session(ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(veriscan.DocTypeDriversLicense, stored.FrontDocType)
		s.Empty(stored.BackDocType)
	})
}

func (s *MachineSuite) TestExpiredDocumentFailsAtScores() {
	service := s.newService(&veriscan.SandboxTransport{
		Expired: true,
	})
	session := s.start(service, KindDocument)
	ctx := context.Background()

	_, err := service.SubmitFront(ctx, session.ID, frontImage)
	s.Require().NoError(err)
	_, err = service.SubmitBack(ctx, session.ID, backImage)
	s.Require().NoError(err)

	progress, err := service.SubmitConsent(ctx, session.ID)
	s.Require().NoError(err)
	s.True(progress.Failed)

	stored, err := service.Session(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(StateFail, stored.State)

	var reasons []Reason
	for _, entry := range stored.Reasons {
		reasons = append(reasons, entry.Reason)
	}
	s.Contains(reasons, ReasonExpired)
}
