package waterfall

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vouch/internal/eligibility"
	"vouch/internal/intent"
	"vouch/internal/ledger"
	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	wfMetrics "vouch/internal/waterfall/metrics"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/requestcontext"
)

// StepResult pairs a recorded step with its outcome. Response is nil when
// the step errored; Err is nil when it succeeded or was skipped.
type StepResult struct {
	Step     Step
	Response vendors.Response
	ResultID *id.ResultID
	Err      error
}

// RunResult is the full outcome of one waterfall run.
type RunResult struct {
	Execution *Execution
	Steps     []StepResult

	// Replayed is true when the execution had already completed and the
	// stored steps were returned without any vendor call.
	Replayed bool
}

// Responses returns the usable vendor responses, in step order.
func (r *RunResult) Responses() []vendors.Response {
	out := make([]vendors.Response, 0, len(r.Steps))
	for _, step := range r.Steps {
		if step.Response != nil {
			out = append(out, step.Response)
		}
	}
	return out
}

// Orchestrator runs the vendor waterfall for an intent. Within each check
// kind, vendors run in eligibility order until one returns a usable result;
// failures advance to the next vendor rather than aborting the attempt.
type Orchestrator struct {
	store    Store
	ledger   *ledger.Service
	registry *vendors.Registry
	fields   vault.FieldService
	metrics  *wfMetrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewOrchestrator(
	store Store,
	ledgerSvc *ledger.Service,
	registry *vendors.Registry,
	fields vault.FieldService,
	metrics *wfMetrics.Metrics,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("waterfall store is required")
	}
	if ledgerSvc == nil {
		return nil, errors.New("ledger service is required")
	}
	if registry == nil {
		return nil, errors.New("vendor registry is required")
	}
	if fields == nil {
		return nil, errors.New("field service is required")
	}
	return &Orchestrator{
		store:    store,
		ledger:   ledgerSvc,
		registry: registry,
		fields:   fields,
		metrics:  metrics,
		logger:   logger,
		tracer:   otel.Tracer("vouch/internal/waterfall"),
	}, nil
}

// Run executes the waterfall for an intent against a frozen eligibility
// list. The first run for an intent creates the execution; a run that finds
// a partial execution resumes after its recorded steps; runs after
// completion replay the stored steps without calling any vendor.
func (o *Orchestrator) Run(ctx context.Context, in *intent.Intent, list *eligibility.List) (*RunResult, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "waterfall.run",
		trace.WithAttributes(
			attribute.String("intent.id", in.ID.String()),
			attribute.String("intent.kind", string(in.Kind)),
			attribute.Int("eligible.count", len(list.Eligible)),
		))
	defer span.End()

	execution, err := o.findOrCreateExecution(ctx, in, list)
	if err != nil {
		return nil, err
	}
	if execution.CompletedAt != nil {
		span.SetAttributes(attribute.Bool("replayed", true))
		return o.replay(ctx, execution)
	}

	snapshot, err := o.buildSnapshot(ctx, in.SubjectID, execution)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Execution: execution}
	satisfied := make(map[vendorapi.CheckKind]bool)
	attempted := make(map[vendorapi.API]bool)

	// A partial execution resumes after its recorded steps. Vendors that
	// already have a step are never called again; their stored outcomes seed
	// the satisfied set so the waterfall picks up exactly where it stopped.
	if execution.LatestStep > 0 {
		recorded, err := o.recordedSteps(ctx, execution)
		if err != nil {
			return nil, err
		}
		for _, stepResult := range recorded {
			attempted[stepResult.Step.API] = true
			if stepResult.Response != nil {
				satisfied[stepResult.Step.API.Kind()] = true
			}
		}
		result.Steps = recorded
		span.SetAttributes(attribute.Int("resumed.steps", len(recorded)))
	}

	for _, api := range execution.Eligible {
		if attempted[api] || satisfied[api.Kind()] {
			continue
		}
		invoker, ok := o.registry.Get(api)
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "eligible api %q has no invoker", api)
		}

		stepResult, err := o.runStep(ctx, in, execution, invoker, snapshot)
		if err != nil {
			if errors.Is(err, sentinel.ErrCompleted) {
				// Another run completed the execution underneath us.
				return o.replayCompleted(ctx, in.ID, span)
			}
			return nil, err
		}
		result.Steps = append(result.Steps, *stepResult)
		if stepResult.Response != nil {
			satisfied[api.Kind()] = true
		}
	}

	if err := o.store.CompleteExecution(ctx, execution.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "complete waterfall execution")
	}
	now := requestcontext.Now(ctx)
	execution.CompletedAt = &now

	o.metrics.ObserveRunLatency(time.Since(start))
	if o.logger != nil {
		o.logger.InfoContext(ctx, "waterfall run completed",
			"intent_id", in.ID.String(),
			"steps", len(result.Steps),
		)
	}
	return result, nil
}

func (o *Orchestrator) findOrCreateExecution(ctx context.Context, in *intent.Intent, list *eligibility.List) (*Execution, error) {
	execution, err := o.store.FindByIntent(ctx, in.ID)
	if err == nil {
		return execution, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find waterfall execution")
	}

	created := Execution{
		ID:        id.NewExecutionID(),
		IntentID:  in.ID,
		Eligible:  list.Eligible,
		Seqno:     list.Seqno,
		CreatedAt: requestcontext.Now(ctx),
	}
	err = o.store.CreateExecution(ctx, created)
	if err == nil {
		return &created, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create waterfall execution")
	}

	// Lost the creation race; the winner's execution must exist now.
	execution, err = o.store.FindByIntent(ctx, in.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
			"execution conflict with no stored execution for intent")
	}
	return execution, nil
}

// buildSnapshot decrypts the union of every eligible vendor's required
// fields at the execution's pinned seqno.
func (o *Orchestrator) buildSnapshot(ctx context.Context, subject id.SubjectID, execution *Execution) (vault.Snapshot, error) {
	seen := make(map[vault.Field]bool)
	var fields []vault.Field
	for _, api := range execution.Eligible {
		invoker, ok := o.registry.Get(api)
		if !ok {
			continue
		}
		for _, field := range invoker.RequiredFields() {
			if !seen[field] {
				seen[field] = true
				fields = append(fields, field)
			}
		}
	}
	// Optional enrichment fields improve match quality when present.
	for _, field := range []vault.Field{vault.FieldSSN, vault.FieldCity, vault.FieldState, vault.FieldPhone, vault.FieldEmail} {
		if !seen[field] {
			seen[field] = true
			fields = append(fields, field)
		}
	}

	values, err := o.fields.GetFields(ctx, subject, fields, execution.Seqno)
	if err != nil {
		if errors.Is(err, vault.ErrStaleSeqno) {
			return vault.Snapshot{}, dErrors.Wrap(err, dErrors.CodeConcurrentUpdate, "subject data changed mid-attempt")
		}
		if errors.Is(err, vault.ErrDecryptionUnavailable) {
			return vault.Snapshot{}, dErrors.Wrap(err, dErrors.CodeVaultUnavailable, "decrypt subject fields")
		}
		return vault.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "decrypt subject fields")
	}

	submitted := make(map[vault.Field]bool, len(values))
	for field, value := range values {
		if value != "" {
			submitted[field] = true
		}
	}
	return vault.Snapshot{
		Subject:   subject,
		Seqno:     execution.Seqno,
		Fields:    values,
		Submitted: submitted,
	}, nil
}

func (o *Orchestrator) runStep(ctx context.Context, in *intent.Intent, execution *Execution, invoker vendors.Invoker, snapshot vault.Snapshot) (*StepResult, error) {
	api := invoker.API()

	// Non-repeatable checks reuse a prior successful result instead of
	// calling the vendor again.
	if !api.Repeatable() {
		prior, err := o.ledger.LatestSuccessfulResult(ctx, in.SubjectID, api)
		if err == nil {
			return o.skipStep(ctx, execution, api, prior)
		}
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
	}

	step, err := o.store.CreateNextStep(ctx, execution.ID, api)
	if err != nil {
		if errors.Is(err, sentinel.ErrCompleted) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create waterfall step")
	}

	req := invoker.NewRequest(snapshot)
	request, err := o.ledger.RecordRequest(ctx, in.ID, in.SubjectID, req)
	if err != nil {
		return nil, err
	}

	resp, callErr := invoker.Invoke(ctx, req)
	if callErr != nil {
		return o.failStep(ctx, request, step, invoker, callErr)
	}

	result, err := o.ledger.RecordSuccess(ctx, request, resp)
	if err != nil {
		return nil, err
	}
	if err := o.store.CompleteStep(ctx, step.ID, ActionStop, &result.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "complete waterfall step")
	}
	step.Action = ActionStop
	step.ResultID = &result.ID
	o.metrics.IncrementStep(string(api), string(ActionStop))
	return &StepResult{Step: *step, Response: resp, ResultID: &result.ID}, nil
}

func (o *Orchestrator) skipStep(ctx context.Context, execution *Execution, api vendorapi.API, prior *ledger.Result) (*StepResult, error) {
	step, err := o.store.CreateNextStep(ctx, execution.ID, api)
	if err != nil {
		if errors.Is(err, sentinel.ErrCompleted) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create skip step")
	}
	if err := o.store.CompleteStep(ctx, step.ID, ActionSkip, &prior.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "complete skip step")
	}
	step.Action = ActionSkip
	step.ResultID = &prior.ID

	raw, err := o.ledger.Unseal(prior)
	if err != nil {
		return nil, err
	}
	resp, err := reparseResponse(api, raw)
	if err != nil {
		return nil, err
	}

	o.metrics.IncrementStep(string(api), string(ActionSkip))
	if o.logger != nil {
		o.logger.InfoContext(ctx, "reused prior vendor result",
			"api", string(api),
			"result_id", prior.ID.String(),
		)
	}
	return &StepResult{Step: *step, Response: resp, ResultID: &prior.ID}, nil
}

func (o *Orchestrator) failStep(ctx context.Context, request *ledger.Request, step *Step, invoker vendors.Invoker, callErr error) (*StepResult, error) {
	result, err := o.ledger.RecordError(ctx, request, callErr)
	if err != nil {
		return nil, err
	}

	// Retryable and semantic failures advance the waterfall to the next
	// vendor of the same kind; everything else is terminal for this vendor
	// but still leaves the attempt running.
	action := ActionError
	if invoker.Retryable(callErr) || vendors.CategoryOf(callErr) == vendors.ErrorSemantic {
		action = ActionContinue
	}
	if err := o.store.CompleteStep(ctx, step.ID, action, &result.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "complete failed step")
	}
	step.Action = action
	step.ResultID = &result.ID

	api := invoker.API()
	o.metrics.IncrementStep(string(api), string(action))
	o.metrics.IncrementVendorError(string(api), string(vendors.CategoryOf(callErr)))
	if o.logger != nil {
		o.logger.WarnContext(ctx, "vendor call failed",
			"api", string(api),
			"category", string(vendors.CategoryOf(callErr)),
			"action", string(action),
		)
	}
	return &StepResult{Step: *step, ResultID: &result.ID, Err: callErr}, nil
}

// Progress returns the stored execution and steps for an intent without
// running anything. Callers poll it while a waterfall is in flight.
func (o *Orchestrator) Progress(ctx context.Context, intentID id.IntentID) (*Execution, []Step, error) {
	execution, err := o.store.FindByIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "no waterfall execution for intent")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "find waterfall execution")
	}
	steps, err := o.store.ListSteps(ctx, execution.ID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "list waterfall steps")
	}
	return execution, steps, nil
}

// replay reconstructs a completed execution's outcomes from the ledger.
func (o *Orchestrator) replay(ctx context.Context, execution *Execution) (*RunResult, error) {
	steps, err := o.recordedSteps(ctx, execution)
	if err != nil {
		return nil, err
	}
	return &RunResult{Execution: execution, Replayed: true, Steps: steps}, nil
}

// replayCompleted re-reads an execution that was completed by a concurrent
// run and returns its stored steps.
func (o *Orchestrator) replayCompleted(ctx context.Context, intentID id.IntentID, span trace.Span) (*RunResult, error) {
	execution, err := o.store.FindByIntent(ctx, intentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find waterfall execution")
	}
	span.SetAttributes(attribute.Bool("replayed", true))
	return o.replay(ctx, execution)
}

// recordedSteps loads an execution's stored steps and rebuilds each usable
// response from the ledger. Error steps come back with a nil response.
func (o *Orchestrator) recordedSteps(ctx context.Context, execution *Execution) ([]StepResult, error) {
	steps, err := o.store.ListSteps(ctx, execution.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list waterfall steps")
	}

	out := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		stepResult := StepResult{Step: step, ResultID: step.ResultID}
		if step.ResultID != nil {
			stored, err := o.ledger.Result(ctx, *step.ResultID)
			if err != nil {
				return nil, err
			}
			if !stored.IsError {
				raw, err := o.ledger.Unseal(stored)
				if err != nil {
					return nil, err
				}
				resp, err := reparseResponse(step.API, raw)
				if err != nil {
					return nil, err
				}
				stepResult.Response = resp
			}
		}
		out = append(out, stepResult)
	}
	return out, nil
}
