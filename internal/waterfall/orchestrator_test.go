package waterfall

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vouch/internal/eligibility"
	"vouch/internal/intent"
	"vouch/internal/ledger"
	"vouch/internal/ledger/seal"
	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	"vouch/internal/vendors/kitesignal"
	"vouch/internal/vendors/lumen"
	"vouch/internal/vendors/sentriwatch"
	"vouch/internal/vendors/trustlane"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// =============================================================================
// Waterfall Orchestrator Test Suite
// =============================================================================
// Justification for unit tests: the orchestrator owns the fallback,
// skip-reuse, and replay semantics that determine vendor spend and decision
// inputs. Each path is pinned here against deterministic sandbox transports.

// failingTransport makes every Trustlane call fail with a transport error.
type failingTransport struct{}

func (failingTransport) IdentityCheck(ctx context.Context, req trustlane.CheckRequest) (*trustlane.CheckResponse, error) {
	return nil, vendors.NewCallError(vendors.ErrorTransport, vendorapi.TrustlaneKYC, "connection reset", nil)
}

// deniedTransport makes every Trustlane call fail with an authentication
// error, which is terminal for the vendor.
type deniedTransport struct{}

func (deniedTransport) IdentityCheck(ctx context.Context, req trustlane.CheckRequest) (*trustlane.CheckResponse, error) {
	return nil, vendors.NewCallError(vendors.ErrorAuthentication, vendorapi.TrustlaneKYC, "invalid credentials", nil)
}

type OrchestratorSuite struct {
	suite.Suite
	vaultStore  *vault.MemoryVault
	ledgerStore *ledger.MemoryStore
	ledgerSvc   *ledger.Service
	store       *MemoryStore

	subject id.SubjectID
	tenant  id.TenantID
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.vaultStore = vault.NewMemoryVault()
	s.ledgerStore = ledger.NewMemoryStore()
	s.store = NewMemoryStore()
	s.subject = id.NewSubjectID()
	s.tenant = id.NewTenantID()

	sealer, err := seal.New(bytes.Repeat([]byte{0x01}, 32))
	s.Require().NoError(err)
	s.ledgerSvc, err = ledger.NewService(s.ledgerStore, sealer, nil)
	s.Require().NoError(err)

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
}

func (s *OrchestratorSuite) newOrchestrator(trustlaneTransport trustlane.Transport) *Orchestrator {
	registry := vendors.NewRegistry(
		trustlane.NewAdapter(trustlaneTransport, 0),
		lumen.NewAdapter(lumen.SandboxTransport{Found: true}, 0),
		sentriwatch.NewAdapter(sentriwatch.SandboxTransport{}, 0),
		kitesignal.NewAdapter(kitesignal.SandboxTransport{Trusted: true}, 0),
	)
	orchestrator, err := NewOrchestrator(s.store, s.ledgerSvc, registry, s.vaultStore, nil, nil)
	s.Require().NoError(err)
	return orchestrator
}

func (s *OrchestratorSuite) newIntent() *intent.Intent {
	workflow := id.NewWorkflowID()
	return &intent.Intent{
		ID:         id.NewIntentID(),
		SubjectID:  s.subject,
		TenantID:   s.tenant,
		WorkflowID: &workflow,
		Kind:       intent.KindOnboardingKYC,
	}
}

func (s *OrchestratorSuite) eligibleList() *eligibility.List {
	seqno, err := s.vaultStore.CurrentSeqno(context.Background(), s.subject)
	s.Require().NoError(err)
	return &eligibility.List{
		Eligible: []vendorapi.API{
			vendorapi.TrustlaneKYC,
			vendorapi.LumenKYC,
			vendorapi.SentriwatchAML,
			vendorapi.KitesignalDevice,
		},
		Seqno: seqno,
	}
}

func (s *OrchestratorSuite) stepAPIs(result *RunResult) []vendorapi.API {
	out := make([]vendorapi.API, len(result.Steps))
	for i, step := range result.Steps {
		out[i] = step.Step.API
	}
	return out
}

// =============================================================================
// Run Tests
// =============================================================================

func (s *OrchestratorSuite) TestRunPrimarySuccess() {
	orchestrator := s.newOrchestrator(trustlane.SandboxTransport{})

	result, err := orchestrator.Run(context.Background(), s.newIntent(), s.eligibleList())
	s.Require().NoError(err)

	s.Run("fallback vendor is not called after primary success", func() {
		s.Equal([]vendorapi.API{
			vendorapi.TrustlaneKYC,
			vendorapi.SentriwatchAML,
			vendorapi.KitesignalDevice,
		}, s.stepAPIs(result))
	})

	s.Run("step numbers are gap-free and 1-indexed", func() {
		for i, step := range result.Steps {
			s.Equal(i+1, step.Step.Number)
		}
	})

	s.Run("every successful step records a stop action and a result", func() {
		for _, step := range result.Steps {
			s.Equal(ActionStop, step.Step.Action)
			s.NotNil(step.ResultID)
			s.NotNil(step.Response)
		}
	})

	s.Run("execution is completed", func() {
		s.NotNil(result.Execution.CompletedAt)
	})
}

func (s *OrchestratorSuite) TestRunFallbackAfterTransientFailure() {
	orchestrator := s.newOrchestrator(failingTransport{})

	result, err := orchestrator.Run(context.Background(), s.newIntent(), s.eligibleList())
	s.Require().NoError(err)

	s.Run("both KYC vendors get a step", func() {
		s.Equal([]vendorapi.API{
			vendorapi.TrustlaneKYC,
			vendorapi.LumenKYC,
			vendorapi.SentriwatchAML,
			vendorapi.KitesignalDevice,
		}, s.stepAPIs(result))
	})

	s.Run("the failed step continues, the fallback stops", func() {
		s.Equal(ActionContinue, result.Steps[0].Step.Action)
		s.Error(result.Steps[0].Err)
		s.Nil(result.Steps[0].Response)

		s.Equal(ActionStop, result.Steps[1].Step.Action)
		s.NotNil(result.Steps[1].Response)
	})

	s.Run("the failure is in the ledger as an error result", func() {
		s.Require().NotNil(result.Steps[0].ResultID)
		stored, err := s.ledgerSvc.Result(context.Background(), *result.Steps[0].ResultID)
		s.Require().NoError(err)
		s.True(stored.IsError)
		s.Equal(vendors.ErrorTransport, stored.ErrorCategory)
	})
}

func (s *OrchestratorSuite) TestRunTerminalVendorFailure() {
	orchestrator := s.newOrchestrator(deniedTransport{})

	result, err := orchestrator.Run(context.Background(), s.newIntent(), s.eligibleList())
	s.Require().NoError(err)

	s.Run("authentication failure records an error action", func() {
		s.Equal(ActionError, result.Steps[0].Step.Action)
	})

	s.Run("the waterfall still advances to the fallback", func() {
		s.Equal(vendorapi.LumenKYC, result.Steps[1].Step.API)
		s.Equal(ActionStop, result.Steps[1].Step.Action)
	})
}

func (s *OrchestratorSuite) TestRunSkipsNonRepeatableChecks() {
	orchestrator := s.newOrchestrator(trustlane.SandboxTransport{})
	ctx := context.Background()

	first := s.newIntent()
	_, err := orchestrator.Run(ctx, first, s.eligibleList())
	s.Require().NoError(err)

	second := s.newIntent()
	result, err := orchestrator.Run(ctx, second, s.eligibleList())
	s.Require().NoError(err)

	s.Run("non-repeatable checks reuse the prior result", func() {
		s.Equal(ActionSkip, result.Steps[0].Step.Action)
		s.Equal(vendorapi.TrustlaneKYC, result.Steps[0].Step.API)
		s.NotNil(result.Steps[0].Response)
	})

	s.Run("repeatable screening runs again", func() {
		var sentriwatchStep *StepResult
		for i := range result.Steps {
			if result.Steps[i].Step.API == vendorapi.SentriwatchAML {
				sentriwatchStep = &result.Steps[i]
			}
		}
		s.Require().NotNil(sentriwatchStep)
		s.Equal(ActionStop, sentriwatchStep.Step.Action)
	})

	s.Run("no new vendor request is recorded for skipped checks", func() {
		requests, err := s.ledgerStore.ListRequestsByIntent(ctx, second.ID)
		s.Require().NoError(err)
		for _, request := range requests {
			s.NotEqual(vendorapi.TrustlaneKYC, request.API)
			s.NotEqual(vendorapi.KitesignalDevice, request.API)
		}
	})
}

func (s *OrchestratorSuite) TestRunResumesPartialExecution() {
	orchestrator := s.newOrchestrator(trustlane.SandboxTransport{})
	ctx := context.Background()
	in := s.newIntent()
	list := s.eligibleList()

	// The first vendor ran and stopped, then the process died before the
	// rest of the waterfall.
	execution := Execution{
		ID:        id.NewExecutionID(),
		IntentID:  in.ID,
		Eligible:  list.Eligible,
		Seqno:     list.Seqno,
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.store.CreateExecution(ctx, execution))

	invoker := trustlane.NewAdapter(trustlane.SandboxTransport{}, 0)
	snapshot, err := orchestrator.buildSnapshot(ctx, s.subject, &execution)
	s.Require().NoError(err)
	req := invoker.NewRequest(snapshot)
	request, err := s.ledgerSvc.RecordRequest(ctx, in.ID, s.subject, req)
	s.Require().NoError(err)
	resp, err := invoker.Invoke(ctx, req)
	s.Require().NoError(err)
	stored, err := s.ledgerSvc.RecordSuccess(ctx, request, resp)
	s.Require().NoError(err)
	step, err := s.store.CreateNextStep(ctx, execution.ID, vendorapi.TrustlaneKYC)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CompleteStep(ctx, step.ID, ActionStop, &stored.ID))

	result, err := orchestrator.Run(ctx, in, list)
	s.Require().NoError(err)

	s.Run("the run picks up after the recorded step", func() {
		s.False(result.Replayed)
		s.Equal([]vendorapi.API{
			vendorapi.TrustlaneKYC,
			vendorapi.SentriwatchAML,
			vendorapi.KitesignalDevice,
		}, s.stepAPIs(result))
		for i, stepResult := range result.Steps {
			s.Equal(i+1, stepResult.Step.Number)
		}
	})

	s.Run("vendors with a recorded step are not called again", func() {
		requests, err := s.ledgerStore.ListRequestsByIntent(ctx, in.ID)
		s.Require().NoError(err)
		var trustlaneRequests int
		for _, stored := range requests {
			if stored.API == vendorapi.TrustlaneKYC {
				trustlaneRequests++
			}
		}
		s.Equal(1, trustlaneRequests)
	})

	s.Run("the recorded response feeds the run result", func() {
		s.Require().NotNil(result.Steps[0].Response)
		s.Equal(vendorapi.TrustlaneKYC, result.Steps[0].Response.API())
	})

	s.Run("the resumed run completes the execution", func() {
		s.NotNil(result.Execution.CompletedAt)
	})
}

func (s *OrchestratorSuite) TestRunReplaysCompletedExecution() {
	orchestrator := s.newOrchestrator(trustlane.SandboxTransport{})
	ctx := context.Background()
	in := s.newIntent()

	first, err := orchestrator.Run(ctx, in, s.eligibleList())
	s.Require().NoError(err)
	s.False(first.Replayed)

	requestsBefore, err := s.ledgerStore.ListRequestsByIntent(ctx, in.ID)
	s.Require().NoError(err)

	second, err := orchestrator.Run(ctx, in, s.eligibleList())
	s.Require().NoError(err)

	s.Run("the second run replays without new steps or vendor calls", func() {
		s.True(second.Replayed)
		s.Len(second.Steps, len(first.Steps))

		requestsAfter, err := s.ledgerStore.ListRequestsByIntent(ctx, in.ID)
		s.Require().NoError(err)
		s.Len(requestsAfter, len(requestsBefore))
	})

	s.Run("replayed responses parse back to usable shapes", func() {
		for _, step := range second.Steps {
			s.NotNil(step.Response)
			s.Equal(step.Step.API, step.Response.API())
		}
	})
}

func (s *OrchestratorSuite) TestRunStaleSnapshot() {
	orchestrator := s.newOrchestrator(trustlane.SandboxTransport{})
	list := s.eligibleList()

	// Subject data changes after eligibility froze the seqno.
	s.vaultStore.Put(s.subject, map[vault.Field]string{vault.FieldEmail: "ada@example.com"})

	_, err := orchestrator.Run(context.Background(), s.newIntent(), list)
	s.True(dErrors.HasCode(err, dErrors.CodeConcurrentUpdate))
}

func (s *OrchestratorSuite) TestRunDegradedVault() {
	orchestrator := s.newOrchestrator(trustlane.SandboxTransport{})
	list := s.eligibleList()
	s.vaultStore.SetDegraded(true)
	defer s.vaultStore.SetDegraded(false)

	_, err := orchestrator.Run(context.Background(), s.newIntent(), list)
	s.True(dErrors.HasCode(err, dErrors.CodeVaultUnavailable))
}
