package decision

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"vouch/internal/audit"
	dvMetrics "vouch/internal/decision/metrics"
	"vouch/internal/docverify"
	"vouch/internal/eligibility"
	"vouch/internal/intent"
	"vouch/internal/rules"
	"vouch/internal/signals"
	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/waterfall"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/requestcontext"
)

// Service is the primary decisioning entry point: it resolves eligibility,
// drives the waterfall, normalizes the results into signals, and evaluates
// the active rule set into a stored outcome.
type Service struct {
	intents      *intent.Service
	eligibility  *eligibility.Service
	orchestrator *waterfall.Orchestrator
	outcomes     Store
	ruleStore    rules.Store
	completeness vault.CompletenessQuery
	fields       vault.FieldService
	documents    *docverify.Service
	publisher    *audit.Publisher
	metrics      *dvMetrics.Metrics
	logger       *slog.Logger
}

func NewService(
	intents *intent.Service,
	eligibilitySvc *eligibility.Service,
	orchestrator *waterfall.Orchestrator,
	outcomes Store,
	ruleStore rules.Store,
	completeness vault.CompletenessQuery,
	fields vault.FieldService,
	documents *docverify.Service,
	publisher *audit.Publisher,
	metrics *dvMetrics.Metrics,
	logger *slog.Logger,
) (*Service, error) {
	if intents == nil {
		return nil, errors.New("intent service is required")
	}
	if eligibilitySvc == nil {
		return nil, errors.New("eligibility service is required")
	}
	if orchestrator == nil {
		return nil, errors.New("waterfall orchestrator is required")
	}
	if outcomes == nil {
		return nil, errors.New("outcome store is required")
	}
	if ruleStore == nil {
		return nil, errors.New("rule store is required")
	}
	if completeness == nil {
		return nil, errors.New("completeness query is required")
	}
	if fields == nil {
		return nil, errors.New("field service is required")
	}
	return &Service{
		intents:      intents,
		eligibility:  eligibilitySvc,
		orchestrator: orchestrator,
		outcomes:     outcomes,
		ruleStore:    ruleStore,
		completeness: completeness,
		fields:       fields,
		documents:    documents,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// RunWaterfall executes the full decisioning flow for a subject. Re-invoking
// for an already-decided intent returns the stored outcome without calling
// any vendor.
func (s *Service) RunWaterfall(ctx context.Context, subject id.SubjectID, tenant id.TenantID, workflow *id.WorkflowID, kind intent.Kind) (*Outcome, error) {
	if kind == intent.KindDocumentVerification {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"document verification runs through its own session flow")
	}
	start := time.Now()

	record, err := s.intents.GetOrCreate(ctx, subject, tenant, workflow, kind)
	if err != nil {
		return nil, err
	}

	if stored, err := s.outcomes.FindByIntent(ctx, record.ID); err == nil {
		return stored, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find decision outcome")
	}

	list, err := s.eligibility.Resolve(ctx, tenant, subject, kind)
	if err != nil {
		return nil, err
	}
	if len(list.Eligible) == 0 {
		return nil, dErrors.New(dErrors.CodeRequirementNotMet,
			"no vendor is eligible: insufficient subject data or tenant entitlements")
	}

	run, err := s.orchestrator.Run(ctx, record, list)
	if err != nil {
		return nil, err
	}

	set, err := s.extractSignals(ctx, subject, run)
	if err != nil {
		return nil, err
	}

	// A decision fingerprints the subject data the vendors saw. If the data
	// moved under a fresh run, abort instead of deciding on stale facts.
	// Replayed runs are historical and exempt.
	if !run.Replayed {
		current, err := s.fields.CurrentSeqno(ctx, subject)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeVaultUnavailable, "read subject seqno")
		}
		if current != run.Execution.Seqno {
			return nil, dErrors.New(dErrors.CodeConcurrentUpdate,
				"subject data changed during decisioning, retry")
		}
	}

	ruleResult, err := s.evaluate(ctx, set)
	if err != nil {
		return nil, err
	}

	outcome := Outcome{
		IntentID:       record.ID,
		SubjectID:      subject,
		TenantID:       tenant,
		WorkflowID:     record.WorkflowID,
		Kind:           kind,
		Status:         resolveStatus(ruleResult),
		NoUsableSignal: len(run.Responses()) == 0,
		RuleResult:     ruleResult,
		DecidedAt:      requestcontext.Now(ctx),
	}
	if outcome.NoUsableSignal {
		outcome.Status = StatusReview
		s.metrics.IncrementNoUsableSignal()
	}

	if err := s.outcomes.Create(ctx, outcome); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the decisioning race; the winner's outcome stands.
			return s.findStored(ctx, record.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist decision outcome")
	}

	s.metrics.IncrementOutcome(string(kind), string(outcome.Status))
	s.metrics.ObserveRunLatency(time.Since(start))
	s.emitDecision(ctx, &outcome)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "decision made",
			"intent_id", record.ID.String(),
			"kind", string(kind),
			"status", string(outcome.Status),
			"triggered", len(ruleResult.Triggered),
			"no_usable_signal", outcome.NoUsableSignal,
		)
	}
	return &outcome, nil
}

func (s *Service) findStored(ctx context.Context, intentID id.IntentID) (*Outcome, error) {
	stored, err := s.outcomes.FindByIntent(ctx, intentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
			"outcome conflict with no stored outcome for intent")
	}
	return stored, nil
}

func (s *Service) extractSignals(ctx context.Context, subject id.SubjectID, run *waterfall.RunResult) (*signals.Set, error) {
	populated, err := s.completeness.PopulatedFields(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVaultUnavailable, "read populated fields")
	}
	extractionCtx := signals.Context{Submitted: populated}

	set := signals.NewSet()
	at := requestcontext.Now(ctx)
	for _, step := range run.Steps {
		if step.Response == nil || step.ResultID == nil {
			continue
		}
		extracted, err := signals.Extract(step.Response, *step.ResultID, extractionCtx, at)
		if err != nil {
			return nil, err
		}
		set.Add(extracted...)
	}
	return set, nil
}

func (s *Service) evaluate(ctx context.Context, set *signals.Set) (rules.Result, error) {
	record, err := s.ruleStore.Active(ctx, rules.RuleSetKYCDefault)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return rules.Result{}, dErrors.New(dErrors.CodeInvariantViolation,
				"no active rule set for decisioning")
		}
		return rules.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "load active rule set")
	}
	ruleSet := rules.DefaultKYCRuleSet(record.ID, record.Version)
	return ruleSet.Evaluate(rules.KYCFeatures{Signals: set}, requestcontext.Now(ctx)), nil
}

func (s *Service) emitDecision(ctx context.Context, outcome *Outcome) {
	if s.publisher == nil {
		return
	}
	var failed []string
	for _, triggered := range outcome.RuleResult.Triggered {
		if triggered.Class == rules.ClassFail {
			failed = append(failed, triggered.Name)
		}
	}
	reason := strings.Join(failed, ",")
	if outcome.NoUsableSignal {
		reason = "no_usable_signal"
	}
	event := audit.Event{
		SubjectID: outcome.SubjectID,
		TenantID:  outcome.TenantID,
		IntentID:  outcome.IntentID,
		Action:    audit.ActionDecisionMade,
		Decision:  string(outcome.Status),
		Reason:    reason,
	}
	if err := s.publisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "emit decision audit event",
			"intent_id", outcome.IntentID.String(),
			"error", err,
		)
	}
}

// DecideDocument evaluates the document rule set over a terminal document
// session and stores the outcome for its intent. Re-invoking for a decided
// intent returns the stored outcome.
func (s *Service) DecideDocument(ctx context.Context, intentID id.IntentID) (*Outcome, error) {
	record, err := s.intents.Get(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if record.Kind != intent.KindDocumentVerification {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"intent is not a document verification intent")
	}
	if s.documents == nil {
		return nil, dErrors.New(dErrors.CodeRequirementNotMet,
			"document verification is not configured")
	}

	if stored, err := s.outcomes.FindByIntent(ctx, record.ID); err == nil {
		return stored, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find decision outcome")
	}

	session, err := s.documents.SessionByIntent(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	var set *signals.Set
	switch session.State {
	case docverify.StateComplete:
		set = documentSignals(signals.FromDocumentScores(
			session.DocumentScore, session.FaceMatchScore, false))
	case docverify.StateFail:
		set = documentSignals(fatalReasonCodes(session.Reasons))
	default:
		return nil, dErrors.New(dErrors.CodeRequirementNotMet,
			"document session is not finished")
	}

	ruleRecord, err := s.ruleStore.Active(ctx, rules.RuleSetDocumentDefault)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation,
				"no active document rule set for decisioning")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load active rule set")
	}
	ruleSet := rules.DefaultDocumentRuleSet(ruleRecord.ID, ruleRecord.Version)
	ruleResult := ruleSet.Evaluate(rules.DocumentFeatures{Signals: set}, requestcontext.Now(ctx))

	outcome := Outcome{
		IntentID:   record.ID,
		SubjectID:  session.SubjectID,
		TenantID:   session.TenantID,
		WorkflowID: record.WorkflowID,
		Kind:       record.Kind,
		Status:     resolveStatus(ruleResult),
		RuleResult: ruleResult,
		DecidedAt:  requestcontext.Now(ctx),
	}
	// A terminally failed session is decisive on its own, whatever the
	// mapped reasons triggered.
	if session.State == docverify.StateFail {
		outcome.Status = StatusFail
	}

	if err := s.outcomes.Create(ctx, outcome); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return s.findStored(ctx, record.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist decision outcome")
	}

	s.metrics.IncrementOutcome(string(record.Kind), string(outcome.Status))
	s.emitDecision(ctx, &outcome)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "document decision made",
			"intent_id", record.ID.String(),
			"session_id", session.ID.String(),
			"status", string(outcome.Status),
		)
	}
	return &outcome, nil
}

func documentSignals(codes []signals.ReasonCode) *signals.Set {
	set := signals.NewSet()
	for _, code := range codes {
		set.Add(signals.Signal{Code: code, API: vendorapi.VeriscanDoc})
	}
	return set
}

// fatalReasonCodes maps the session reasons that terminated the flow onto
// normalized codes the document rule set understands.
func fatalReasonCodes(entries []docverify.ReasonEntry) []signals.ReasonCode {
	var out []signals.ReasonCode
	for _, entry := range entries {
		if !entry.Reason.Fatal() {
			continue
		}
		switch entry.Reason {
		case docverify.ReasonExpired:
			out = append(out, signals.DocumentExpired)
		case docverify.ReasonUnsupportedType:
			out = append(out, signals.DocumentUnsupported)
		}
	}
	return out
}

// Requirements is the read-only progress view for UI polling of a decision
// intent's long-running flow.
type Requirements struct {
	IntentID id.IntentID
	Kind     intent.Kind
	Decided  bool
	Outcome  *Outcome

	Waterfall *WaterfallProgress
	Document  *docverify.Progress
}

// WaterfallProgress summarizes the stored execution state.
type WaterfallProgress struct {
	ExecutionID id.ExecutionID
	Eligible    []vendorapi.API
	LatestStep  int
	Completed   bool
	Steps       []StepProgress
}

// StepProgress is one step's position and action.
type StepProgress struct {
	Number int
	API    vendorapi.API
	Action waterfall.StepAction
}

// GetRequirements reports the current state of an intent's flow: the stored
// outcome when decided, waterfall progress for vendor-driven kinds, and the
// document session's state with any outstanding capture reasons.
func (s *Service) GetRequirements(ctx context.Context, intentID id.IntentID) (*Requirements, error) {
	record, err := s.intents.Get(ctx, intentID)
	if err != nil {
		return nil, err
	}

	out := &Requirements{IntentID: record.ID, Kind: record.Kind}

	if stored, err := s.outcomes.FindByIntent(ctx, record.ID); err == nil {
		out.Decided = true
		out.Outcome = stored
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find decision outcome")
	}

	if record.Kind == intent.KindDocumentVerification {
		if s.documents == nil {
			return out, nil
		}
		progress, err := s.documents.ProgressByIntent(ctx, record.ID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return out, nil
			}
			return nil, err
		}
		out.Document = progress
		return out, nil
	}

	execution, steps, err := s.orchestrator.Progress(ctx, record.ID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return out, nil
		}
		return nil, err
	}
	progress := &WaterfallProgress{
		ExecutionID: execution.ID,
		Eligible:    execution.Eligible,
		LatestStep:  execution.LatestStep,
		Completed:   execution.CompletedAt != nil,
	}
	for _, step := range steps {
		progress.Steps = append(progress.Steps, StepProgress{
			Number: step.Number,
			API:    step.API,
			Action: step.Action,
		})
	}
	out.Waterfall = progress
	return out, nil
}
