package decision

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vouch/internal/audit"
	"vouch/internal/docverify"
	"vouch/internal/docverify/credcache"
	"vouch/internal/eligibility"
	"vouch/internal/intent"
	"vouch/internal/ledger"
	"vouch/internal/ledger/seal"
	"vouch/internal/rules"
	"vouch/internal/vault"
	vaultmocks "vouch/internal/vault/mocks"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	"vouch/internal/vendors/kitesignal"
	"vouch/internal/vendors/lumen"
	"vouch/internal/vendors/sentriwatch"
	"vouch/internal/vendors/trustlane"
	"vouch/internal/vendors/veriscan"
	"vouch/internal/waterfall"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// =============================================================================
// Decision Service Test Suite
// =============================================================================
// Justification for unit tests: the decision service composes eligibility,
// the waterfall, signal extraction, and the rule engine into the stored
// outcome. The policy mapping and the idempotent-replay guarantee are the
// contract clients build on, so each is pinned against deterministic
// sandbox transports.

// failingTransport makes every Trustlane call fail with a transport error.
type failingTransport struct{}

func (failingTransport) IdentityCheck(ctx context.Context, req trustlane.CheckRequest) (*trustlane.CheckResponse, error) {
	return nil, vendors.NewCallError(vendors.ErrorTransport, vendorapi.TrustlaneKYC, "connection reset", nil)
}

type DecisionSuite struct {
	suite.Suite
	vaultStore   *vault.MemoryVault
	entitlements *vault.MemoryEntitlements
	ledgerStore  *ledger.MemoryStore
	ledgerSvc    *ledger.Service
	intents      *intent.Service
	outcomes     *MemoryStore
	ruleStore    *rules.MemoryStore
	auditStore   *audit.MemoryStore

	subject id.SubjectID
	tenant  id.TenantID
}

func TestDecisionSuite(t *testing.T) {
	suite.Run(t, new(DecisionSuite))
}

func (s *DecisionSuite) SetupTest() {
	s.vaultStore = vault.NewMemoryVault()
	s.entitlements = vault.NewMemoryEntitlements()
	s.ledgerStore = ledger.NewMemoryStore()
	s.outcomes = NewMemoryStore()
	s.ruleStore = rules.NewMemoryStore()
	s.auditStore = audit.NewMemoryStore()
	s.subject = id.NewSubjectID()
	s.tenant = id.NewTenantID()

	sealer, err := seal.New(bytes.Repeat([]byte{0x02}, 32))
	s.Require().NoError(err)
	s.ledgerSvc, err = ledger.NewService(s.ledgerStore, sealer, nil)
	s.Require().NoError(err)

	s.intents, err = intent.NewService(intent.NewMemoryStore(), nil)
	s.Require().NoError(err)

	kycRules := rules.DefaultKYCRuleSet(id.NewRuleSetID(), 1)
	s.Require().NoError(s.ruleStore.Activate(context.Background(), rules.RecordOf(kycRules)))
	documentRules := rules.DefaultDocumentRuleSet(id.NewRuleSetID(), 1)
	s.Require().NoError(s.ruleStore.Activate(context.Background(), rules.RecordOf(documentRules)))

	s.vaultStore.Put(s.subject, map[vault.Field]string{
		vault.FieldFirstName:    "Ada",
		vault.FieldLastName:     "Sample",
		vault.FieldDOB:          "1990-01-02",
		vault.FieldSSN:          "123-45-6789",
		vault.FieldAddressLine1: "1 Main St",
		vault.FieldZip:          "94105",
		vault.FieldUserAgent:    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
		vault.FieldIPAddress:    "203.0.113.10",
	})
	s.entitlements.Enable(s.tenant,
		vendorapi.TrustlaneKYC,
		vendorapi.LumenKYC,
		vendorapi.SentriwatchAML,
		vendorapi.KitesignalDevice,
	)
}

func (s *DecisionSuite) newService(trustlaneTransport trustlane.Transport, lumenTransport lumen.SandboxTransport) *Service {
	registry := vendors.NewRegistry(
		trustlane.NewAdapter(trustlaneTransport, 0),
		lumen.NewAdapter(lumenTransport, 0),
		sentriwatch.NewAdapter(sentriwatch.SandboxTransport{}, 0),
		kitesignal.NewAdapter(kitesignal.SandboxTransport{Trusted: true}, 0),
	)

	eligibilitySvc, err := eligibility.NewService(s.vaultStore, s.entitlements, s.vaultStore, registry, nil)
	s.Require().NoError(err)

	orchestrator, err := waterfall.NewOrchestrator(waterfall.NewMemoryStore(), s.ledgerSvc, registry, s.vaultStore, nil, nil)
	s.Require().NoError(err)

	service, err := NewService(
		s.intents, eligibilitySvc, orchestrator, s.outcomes, s.ruleStore,
		s.vaultStore, s.vaultStore, nil, audit.NewPublisher(s.auditStore), nil, nil,
	)
	s.Require().NoError(err)
	return service
}

func (s *DecisionSuite) newDocumentService(transport *veriscan.SandboxTransport) *docverify.Service {
	if transport.SigningKey == nil {
		transport.SigningKey = []byte("sandbox-signing-key")
	}
	creds := credcache.NewMemoryCache()
	machine, err := docverify.NewMachine(veriscan.NewAdapter(transport, 0), s.ledgerSvc, creds, nil, nil)
	s.Require().NoError(err)
	documents, err := docverify.NewService(docverify.NewMemoryStore(), machine, s.intents, creds, nil)
	s.Require().NoError(err)
	return documents
}

func (s *DecisionSuite) newServiceWithDocuments(documents *docverify.Service) *Service {
	registry := vendors.NewRegistry(
		trustlane.NewAdapter(trustlane.SandboxTransport{}, 0),
		lumen.NewAdapter(lumen.SandboxTransport{Found: true}, 0),
		sentriwatch.NewAdapter(sentriwatch.SandboxTransport{}, 0),
		kitesignal.NewAdapter(kitesignal.SandboxTransport{Trusted: true}, 0),
	)
	eligibilitySvc, err := eligibility.NewService(s.vaultStore, s.entitlements, s.vaultStore, registry, nil)
	s.Require().NoError(err)
	orchestrator, err := waterfall.NewOrchestrator(waterfall.NewMemoryStore(), s.ledgerSvc, registry, s.vaultStore, nil, nil)
	s.Require().NoError(err)

	service, err := NewService(
		s.intents, eligibilitySvc, orchestrator, s.outcomes, s.ruleStore,
		s.vaultStore, s.vaultStore, documents, audit.NewPublisher(s.auditStore), nil, nil,
	)
	s.Require().NoError(err)
	return service
}

func (s *DecisionSuite) requestCount(intentID id.IntentID) int {
	requests, err := s.ledgerStore.ListRequestsByIntent(context.Background(), intentID)
	s.Require().NoError(err)
	return len(requests)
}

// =============================================================================
// RunWaterfall Tests
// =============================================================================

func (s *DecisionSuite) TestPrimaryVendorPass() {
	service := s.newService(trustlane.SandboxTransport{}, lumen.SandboxTransport{Found: true})
	workflow := id.NewWorkflowID()

	outcome, err := service.RunWaterfall(context.Background(), s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.Require().NoError(err)

	s.Run("pass evidence with no fail evidence passes", func() {
		s.Equal(StatusPass, outcome.Status)
		s.False(outcome.NoUsableSignal)
	})

	s.Run("the rule result carries the active version", func() {
		s.Equal(rules.RuleSetKYCDefault, outcome.RuleResult.RuleSet)
		s.Equal(1, outcome.RuleResult.Version)
		s.NotEmpty(outcome.RuleResult.Triggered)
	})

	s.Run("the decision is audited", func() {
		events, err := s.auditStore.ListBySubject(context.Background(), s.subject)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionDecisionMade, events[0].Action)
		s.Equal("pass", events[0].Decision)
	})
}

func (s *DecisionSuite) TestFallbackDecidesFromSecondVendor() {
	service := s.newService(failingTransport{}, lumen.SandboxTransport{Found: true})
	workflow := id.NewWorkflowID()

	outcome, err := service.RunWaterfall(context.Background(), s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.Require().NoError(err)

	s.Run("the failed primary vendor contributes no evidence", func() {
		s.Equal(StatusPass, outcome.Status)
		for _, triggered := range outcome.RuleResult.Triggered {
			s.NotEqual("id.not_located", triggered.Name)
		}
	})

	s.Run("the failed call is still in the ledger", func() {
		requests, err := s.ledgerStore.ListRequestsByIntent(context.Background(), outcome.IntentID)
		s.Require().NoError(err)
		apis := make([]vendorapi.API, 0, len(requests))
		for _, request := range requests {
			apis = append(apis, request.API)
		}
		s.Contains(apis, vendorapi.TrustlaneKYC)
		s.Contains(apis, vendorapi.LumenKYC)
	})
}

func (s *DecisionSuite) TestFailEvidenceFails() {
	s.entitlements = vault.NewMemoryEntitlements()
	s.entitlements.Enable(s.tenant, vendorapi.LumenKYC)
	service := s.newService(trustlane.SandboxTransport{}, lumen.SandboxTransport{Found: false})

	outcome, err := service.RunWaterfall(context.Background(), s.subject, s.tenant, nil, intent.KindOnboardingKYB)
	s.Require().NoError(err)
	s.Equal(StatusFail, outcome.Status)
}

func (s *DecisionSuite) TestMixedEvidenceGoesToReview() {
	service := s.newService(
		trustlane.SandboxTransport{MismatchSSNs: map[string]bool{"123-45-6789": true}},
		lumen.SandboxTransport{Found: true},
	)
	workflow := id.NewWorkflowID()

	outcome, err := service.RunWaterfall(context.Background(), s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.Require().NoError(err)
	s.Equal(StatusReview, outcome.Status)
}

func (s *DecisionSuite) TestNoEligibleVendor() {
	s.entitlements = vault.NewMemoryEntitlements()
	service := s.newService(trustlane.SandboxTransport{}, lumen.SandboxTransport{Found: true})
	workflow := id.NewWorkflowID()

	_, err := service.RunWaterfall(context.Background(), s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.True(dErrors.HasCode(err, dErrors.CodeRequirementNotMet))
}

func (s *DecisionSuite) TestNoUsableSignalGoesToReview() {
	s.entitlements = vault.NewMemoryEntitlements()
	s.entitlements.Enable(s.tenant, vendorapi.TrustlaneKYC)
	service := s.newService(failingTransport{}, lumen.SandboxTransport{})
	workflow := id.NewWorkflowID()

	outcome, err := service.RunWaterfall(context.Background(), s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.Require().NoError(err)
	s.Equal(StatusReview, outcome.Status)
	s.True(outcome.NoUsableSignal)
}

func (s *DecisionSuite) TestRerunReturnsStoredOutcome() {
	service := s.newService(trustlane.SandboxTransport{}, lumen.SandboxTransport{Found: true})
	workflow := id.NewWorkflowID()
	ctx := context.Background()

	first, err := service.RunWaterfall(ctx, s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.Require().NoError(err)
	calls := s.requestCount(first.IntentID)

	second, err := service.RunWaterfall(ctx, s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.Require().NoError(err)

	s.Run("the stored outcome is returned unchanged", func() {
		s.Equal(first.IntentID, second.IntentID)
		s.Equal(first.Status, second.Status)
		s.Equal(first.DecidedAt, second.DecidedAt)
	})

	s.Run("no vendor is called again", func() {
		s.Equal(calls, s.requestCount(first.IntentID))
	})
}

func (s *DecisionSuite) TestDocumentKindRejected() {
	service := s.newService(trustlane.SandboxTransport{}, lumen.SandboxTransport{Found: true})
	workflow := id.NewWorkflowID()

	_, err := service.RunWaterfall(context.Background(), s.subject, s.tenant, &workflow, intent.KindDocumentVerification)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *DecisionSuite) TestVaultOutageDuringExtraction() {
	ctrl := gomock.NewController(s.T())
	completeness := vaultmocks.NewMockCompletenessQuery(ctrl)
	completeness.EXPECT().PopulatedFields(gomock.Any(), gomock.Any()).
		Return(nil, vault.ErrDecryptionUnavailable).AnyTimes()

	registry := vendors.NewRegistry(
		trustlane.NewAdapter(trustlane.SandboxTransport{}, 0),
		lumen.NewAdapter(lumen.SandboxTransport{Found: true}, 0),
		sentriwatch.NewAdapter(sentriwatch.SandboxTransport{}, 0),
		kitesignal.NewAdapter(kitesignal.SandboxTransport{Trusted: true}, 0),
	)
	eligibilitySvc, err := eligibility.NewService(s.vaultStore, s.entitlements, s.vaultStore, registry, nil)
	s.Require().NoError(err)
	orchestrator, err := waterfall.NewOrchestrator(waterfall.NewMemoryStore(), s.ledgerSvc, registry, s.vaultStore, nil, nil)
	s.Require().NoError(err)

	service, err := NewService(
		s.intents, eligibilitySvc, orchestrator, s.outcomes, s.ruleStore,
		completeness, s.vaultStore, nil, audit.NewPublisher(s.auditStore), nil, nil,
	)
	s.Require().NoError(err)

	workflow := id.NewWorkflowID()
	_, err = service.RunWaterfall(context.Background(), s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.True(dErrors.HasCode(err, dErrors.CodeVaultUnavailable))
}

// =============================================================================
// GetRequirements Tests
// =============================================================================

func (s *DecisionSuite) TestGetRequirements() {
	service := s.newService(trustlane.SandboxTransport{}, lumen.SandboxTransport{Found: true})
	workflow := id.NewWorkflowID()
	ctx := context.Background()

	outcome, err := service.RunWaterfall(ctx, s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.Require().NoError(err)

	requirements, err := service.GetRequirements(ctx, outcome.IntentID)
	s.Require().NoError(err)

	s.Run("a decided intent reports its outcome", func() {
		s.True(requirements.Decided)
		s.Require().NotNil(requirements.Outcome)
		s.Equal(outcome.Status, requirements.Outcome.Status)
	})

	s.Run("waterfall progress lists the recorded steps", func() {
		s.Require().NotNil(requirements.Waterfall)
		s.True(requirements.Waterfall.Completed)
		s.NotEmpty(requirements.Waterfall.Steps)
		s.Equal(1, requirements.Waterfall.Steps[0].Number)
	})

	s.Run("an unknown intent is not found", func() {
		_, err := service.GetRequirements(ctx, id.NewIntentID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// DecideDocument Tests
// =============================================================================

func (s *DecisionSuite) completeDocumentSession(documents *docverify.Service) *docverify.Session {
	ctx := context.Background()
	workflow := id.NewWorkflowID()
	session, err := documents.StartOnboarding(ctx, s.subject, s.tenant, &workflow, docverify.KindDocument)
	s.Require().NoError(err)

	_, err = documents.SubmitFront(ctx, session.ID, []byte("front-capture"))
	s.Require().NoError(err)
	_, err = documents.SubmitBack(ctx, session.ID, []byte("back-capture"))
	s.Require().NoError(err)
	_, err = documents.SubmitConsent(ctx, session.ID)
	s.Require().NoError(err)
	progress, err := documents.Poll(ctx, session.ID)
	s.Require().NoError(err)
	s.Require().True(progress.Completed)
	return session
}

func (s *DecisionSuite) TestDecideDocumentPass() {
	documents := s.newDocumentService(&veriscan.SandboxTransport{
		StatusPollsUntilComplete: 1,
		DocumentScore:            0.92,
	})
	service := s.newServiceWithDocuments(documents)
	session := s.completeDocumentSession(documents)
	ctx := context.Background()

	outcome, err := service.DecideDocument(ctx, session.IntentID)
	s.Require().NoError(err)

	s.Run("a clean completed session passes", func() {
		s.Equal(StatusPass, outcome.Status)
		s.Equal(rules.RuleSetDocumentDefault, outcome.RuleResult.RuleSet)
	})

	s.Run("re-deciding returns the stored outcome", func() {
		again, err := service.DecideDocument(ctx, session.IntentID)
		s.Require().NoError(err)
		s.Equal(outcome.DecidedAt, again.DecidedAt)
	})
}

func (s *DecisionSuite) TestDecideDocumentLowScoreFails() {
	documents := s.newDocumentService(&veriscan.SandboxTransport{
		StatusPollsUntilComplete: 1,
		DocumentScore:            0.3,
	})
	service := s.newServiceWithDocuments(documents)
	session := s.completeDocumentSession(documents)

	outcome, err := service.DecideDocument(context.Background(), session.IntentID)
	s.Require().NoError(err)
	s.Equal(StatusFail, outcome.Status)

	triggered := outcome.RuleResult.TriggeredNames()
	s.Contains(triggered, "document.low_score")
	s.NotContains(triggered, "document.ok")
}

func (s *DecisionSuite) TestDecideDocumentUnfinishedSession() {
	documents := s.newDocumentService(&veriscan.SandboxTransport{})
	service := s.newServiceWithDocuments(documents)
	ctx := context.Background()

	workflow := id.NewWorkflowID()
	session, err := documents.StartOnboarding(ctx, s.subject, s.tenant, &workflow, docverify.KindDocument)
	s.Require().NoError(err)

	_, err = service.DecideDocument(ctx, session.IntentID)
	s.True(dErrors.HasCode(err, dErrors.CodeRequirementNotMet))
}

func (s *DecisionSuite) TestDecideDocumentWrongKind() {
	documents := s.newDocumentService(&veriscan.SandboxTransport{})
	service := s.newServiceWithDocuments(documents)
	workflow := id.NewWorkflowID()
	ctx := context.Background()

	outcome, err := service.RunWaterfall(ctx, s.subject, s.tenant, &workflow, intent.KindOnboardingKYC)
	s.Require().NoError(err)

	_, err = service.DecideDocument(ctx, outcome.IntentID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
