package handler

import (
	"strings"

	"vouch/internal/intent"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// WaterfallRequest is the HTTP request body for POST /decisions/waterfall.
type WaterfallRequest struct {
	SubjectID  string `json:"subject_id"`
	WorkflowID string `json:"workflow_id,omitempty"`
	Kind       string `json:"kind"`

	// Parsed values (populated by Validate)
	parsedSubject  id.SubjectID
	parsedWorkflow *id.WorkflowID
	parsedKind     intent.Kind
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *WaterfallRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.SubjectID = strings.TrimSpace(r.SubjectID)
	if r.SubjectID == "" {
		return dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	subject, err := id.ParseSubjectID(r.SubjectID)
	if err != nil {
		return err
	}
	r.parsedSubject = subject

	r.WorkflowID = strings.TrimSpace(r.WorkflowID)
	if r.WorkflowID != "" {
		workflow, err := id.ParseWorkflowID(r.WorkflowID)
		if err != nil {
			return err
		}
		r.parsedWorkflow = &workflow
	}

	r.Kind = strings.TrimSpace(r.Kind)
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	kind, err := intent.ParseKind(r.Kind)
	if err != nil {
		return err
	}
	r.parsedKind = kind

	return nil
}

// ParsedSubject returns the validated subject ID.
func (r *WaterfallRequest) ParsedSubject() id.SubjectID {
	return r.parsedSubject
}

// ParsedWorkflow returns the validated workflow ID, nil when absent.
func (r *WaterfallRequest) ParsedWorkflow() *id.WorkflowID {
	return r.parsedWorkflow
}

// ParsedKind returns the validated intent kind.
func (r *WaterfallRequest) ParsedKind() intent.Kind {
	return r.parsedKind
}
