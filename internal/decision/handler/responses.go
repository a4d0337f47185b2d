package handler

import (
	"time"

	"vouch/internal/decision"
	"vouch/internal/rules"
)

// OutcomeResponse is the HTTP response for POST /decisions/waterfall.
type OutcomeResponse struct {
	IntentID       string              `json:"intent_id"`
	Kind           string              `json:"kind"`
	Status         string              `json:"status"`
	NoUsableSignal bool                `json:"no_usable_signal"`
	RuleSet        string              `json:"rule_set"`
	RuleSetVersion int                 `json:"rule_set_version"`
	Triggered      []rules.RuleOutcome `json:"triggered"`
	DecidedAt      time.Time           `json:"decided_at"`
}

// FromOutcome converts a domain Outcome to an HTTP response.
func FromOutcome(outcome *decision.Outcome) *OutcomeResponse {
	return &OutcomeResponse{
		IntentID:       outcome.IntentID.String(),
		Kind:           string(outcome.Kind),
		Status:         string(outcome.Status),
		NoUsableSignal: outcome.NoUsableSignal,
		RuleSet:        outcome.RuleResult.RuleSet,
		RuleSetVersion: outcome.RuleResult.Version,
		Triggered:      outcome.RuleResult.Triggered,
		DecidedAt:      outcome.DecidedAt,
	}
}

// RequirementsResponse is the HTTP response for
// GET /decisions/{intent_id}/requirements.
type RequirementsResponse struct {
	IntentID string           `json:"intent_id"`
	Kind     string           `json:"kind"`
	Decided  bool             `json:"decided"`
	Outcome  *OutcomeResponse `json:"outcome,omitempty"`

	Waterfall *WaterfallProgressResponse `json:"waterfall,omitempty"`
	Document  *DocumentProgressResponse  `json:"document,omitempty"`
}

// WaterfallProgressResponse summarizes a stored execution.
type WaterfallProgressResponse struct {
	ExecutionID string         `json:"execution_id"`
	Eligible    []string       `json:"eligible"`
	LatestStep  int            `json:"latest_step"`
	Completed   bool           `json:"completed"`
	Steps       []StepResponse `json:"steps"`
}

// StepResponse is one waterfall step's position and action.
type StepResponse struct {
	Number int    `json:"number"`
	API    string `json:"api"`
	Action string `json:"action"`
}

// DocumentProgressResponse reports a document session's state and the
// outstanding capture reasons the client should resolve.
type DocumentProgressResponse struct {
	SessionID   string   `json:"session_id"`
	State       string   `json:"state"`
	Outstanding []string `json:"outstanding"`
	Completed   bool     `json:"completed"`
	Failed      bool     `json:"failed"`
}

// FromRequirements converts domain Requirements to an HTTP response.
func FromRequirements(req *decision.Requirements) *RequirementsResponse {
	resp := &RequirementsResponse{
		IntentID: req.IntentID.String(),
		Kind:     string(req.Kind),
		Decided:  req.Decided,
	}
	if req.Outcome != nil {
		resp.Outcome = FromOutcome(req.Outcome)
	}
	if req.Waterfall != nil {
		progress := &WaterfallProgressResponse{
			ExecutionID: req.Waterfall.ExecutionID.String(),
			LatestStep:  req.Waterfall.LatestStep,
			Completed:   req.Waterfall.Completed,
		}
		for _, api := range req.Waterfall.Eligible {
			progress.Eligible = append(progress.Eligible, string(api))
		}
		for _, step := range req.Waterfall.Steps {
			progress.Steps = append(progress.Steps, StepResponse{
				Number: step.Number,
				API:    string(step.API),
				Action: string(step.Action),
			})
		}
		resp.Waterfall = progress
	}
	if req.Document != nil {
		doc := &DocumentProgressResponse{
			SessionID: req.Document.SessionID.String(),
			State:     string(req.Document.State),
			Completed: req.Document.Completed,
			Failed:    req.Document.Failed,
		}
		for _, reason := range req.Document.Outstanding {
			doc.Outstanding = append(doc.Outstanding, string(reason))
		}
		resp.Document = doc
	}
	return resp
}
