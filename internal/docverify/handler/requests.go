package handler

import (
	"encoding/base64"
	"strings"

	"vouch/internal/docverify"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// maxImageBytes bounds a decoded capture image.
const maxImageBytes = 8 << 20

// StartOnboardingRequest is the HTTP request body for POST /documents/onboarding.
type StartOnboardingRequest struct {
	SubjectID  string `json:"subject_id"`
	WorkflowID string `json:"workflow_id,omitempty"`
	Kind       string `json:"kind"`

	// Parsed values (populated by Validate)
	parsedSubject  id.SubjectID
	parsedWorkflow *id.WorkflowID
	parsedKind     docverify.Kind
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *StartOnboardingRequest) Validate() error {
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

	kind, err := docverify.ParseKind(strings.TrimSpace(r.Kind))
	if err != nil {
		return err
	}
	r.parsedKind = kind

	return nil
}

// ParsedSubject returns the validated subject ID.
func (r *StartOnboardingRequest) ParsedSubject() id.SubjectID {
	return r.parsedSubject
}

// ParsedWorkflow returns the validated workflow ID, nil when absent.
func (r *StartOnboardingRequest) ParsedWorkflow() *id.WorkflowID {
	return r.parsedWorkflow
}

// ParsedKind returns the validated session kind.
func (r *StartOnboardingRequest) ParsedKind() docverify.Kind {
	return r.parsedKind
}

// SideRequest is the HTTP request body for POST /documents/{session_id}/sides.
type SideRequest struct {
	Side  string `json:"side"`
	Image string `json:"image"` // base64-encoded capture

	parsedImage []byte
}

// Validate validates and parses the request.
func (r *SideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	switch r.Side {
	case "front", "back":
	default:
		return dErrors.New(dErrors.CodeValidation, `side must be "front" or "back"`)
	}
	image, err := decodeImage(r.Image)
	if err != nil {
		return err
	}
	r.parsedImage = image
	return nil
}

// ParsedImage returns the decoded capture bytes.
func (r *SideRequest) ParsedImage() []byte {
	return r.parsedImage
}

// SelfieRequest is the HTTP request body for POST /documents/{session_id}/selfie.
type SelfieRequest struct {
	Image string `json:"image"`

	parsedImage []byte
}

// Validate validates and parses the request.
func (r *SelfieRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	image, err := decodeImage(r.Image)
	if err != nil {
		return err
	}
	r.parsedImage = image
	return nil
}

// ParsedImage returns the decoded capture bytes.
func (r *SelfieRequest) ParsedImage() []byte {
	return r.parsedImage
}

func decodeImage(encoded string) ([]byte, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "image is required")
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "image must be base64-encoded")
	}
	if len(image) > maxImageBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "image exceeds the size limit")
	}
	return image, nil
}
