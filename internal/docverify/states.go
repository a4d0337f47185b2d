// Package docverify drives the document verification flow: a session-based,
// multi-step protocol against the Veriscan capture API. Unlike the flat
// waterfall, each step depends on the output of the previous one, so the
// flow is modeled as a state machine of discrete transition units.
package docverify

// State is one position in the document verification flow.
type State string

const (
	StateStartOnboarding     State = "start_onboarding"
	StateAddFront            State = "add_front"
	StateAddBack             State = "add_back"
	StateAddConsent          State = "add_consent"
	StateAddSelfie           State = "add_selfie"
	StateProcessID           State = "process_id"
	StateProcessFace         State = "process_face"
	StateGetOnboardingStatus State = "get_onboarding_status"
	StateFetchScores         State = "fetch_scores"
	StateComplete            State = "complete"
	StateFail                State = "fail"
)

// Terminal reports whether the flow can no longer advance from this state.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFail
}
