package audit

import (
	"time"

	id "vouch/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time    `json:"timestamp"`
	SubjectID id.SubjectID `json:"subject_id"`
	TenantID  id.TenantID  `json:"tenant_id"`
	IntentID  id.IntentID  `json:"intent_id"`
	Action    Action       `json:"action"`
	Decision  string       `json:"decision,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// Action names an auditable occurrence. Names are stable; exported records
// reference them long after the emitting code has changed.
type Action string

const (
	ActionIntentCreated       Action = "intent_created"
	ActionWaterfallCompleted  Action = "waterfall_completed"
	ActionDecisionMade        Action = "decision_made"
	ActionDocSessionStarted   Action = "document_session_started"
	ActionDocSessionCompleted Action = "document_session_completed"
	ActionDocSessionFailed    Action = "document_session_failed"
)
