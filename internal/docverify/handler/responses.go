package handler

import (
	"vouch/internal/docverify"
)

// SessionResponse is the HTTP response for POST /documents/onboarding.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	IntentID  string `json:"intent_id"`
	Kind      string `json:"kind"`
	State     string `json:"state"`
}

// FromSession converts a domain Session to an HTTP response.
func FromSession(session *docverify.Session) *SessionResponse {
	return &SessionResponse{
		SessionID: session.ID.String(),
		IntentID:  session.IntentID.String(),
		Kind:      string(session.Kind),
		State:     string(session.State),
	}
}

// ProgressResponse is the HTTP response for session mutations and polling.
type ProgressResponse struct {
	SessionID   string   `json:"session_id"`
	State       string   `json:"state"`
	Outstanding []string `json:"outstanding"`
	Completed   bool     `json:"completed"`
	Failed      bool     `json:"failed"`

	DocumentScore  *float64 `json:"document_score,omitempty"`
	FaceMatchScore *float64 `json:"face_match_score,omitempty"`
}

// FromProgress converts domain Progress to an HTTP response. Scores appear
// only once the vendor has produced them.
func FromProgress(progress *docverify.Progress) *ProgressResponse {
	resp := &ProgressResponse{
		SessionID: progress.SessionID.String(),
		State:     string(progress.State),
		Completed: progress.Completed,
		Failed:    progress.Failed,
	}
	for _, reason := range progress.Outstanding {
		resp.Outstanding = append(resp.Outstanding, string(reason))
	}
	if progress.ScoresReady {
		doc, face := progress.DocumentScore, progress.FaceMatchScore
		resp.DocumentScore = &doc
		resp.FaceMatchScore = &face
	}
	return resp
}

// TokenResponse is the HTTP response for GET /documents/{session_id}/token.
type TokenResponse struct {
	ClientToken string `json:"client_token"`
}
