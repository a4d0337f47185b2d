package signals

import (
	"time"

	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	"vouch/internal/vendors/kitesignal"
	"vouch/internal/vendors/lumen"
	"vouch/internal/vendors/sentriwatch"
	"vouch/internal/vendors/trustlane"
	"vouch/internal/vendors/veriscan"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// Context carries the submission facts extraction depends on. Identical
// vendor output can mean different things depending on what the subject
// actually submitted: an SSN-mismatch code is only meaningful if an SSN was
// submitted at all.
type Context struct {
	Submitted map[vault.Field]bool
}

// SubmittedContext builds an extraction context from a vault snapshot.
func SubmittedContext(snapshot vault.Snapshot) Context {
	return Context{Submitted: snapshot.Submitted}
}

func (c Context) submitted(field vault.Field) bool {
	return c.Submitted[field]
}

// Extract maps a parsed vendor response to its normalized signals. The type
// switch is exhaustive over the closed response set; an unhandled response
// type is an invariant violation, never silently ignored.
func Extract(resp vendors.Response, resultID id.ResultID, extractionCtx Context, at time.Time) ([]Signal, error) {
	switch typed := resp.(type) {
	case *trustlane.CheckResponse:
		return extractTrustlane(typed, resultID, extractionCtx, at), nil
	case *lumen.VerifyResponse:
		return extractLumen(typed, resultID, extractionCtx, at), nil
	case *sentriwatch.ScreenResponse:
		return extractSentriwatch(typed, resultID, at), nil
	case *kitesignal.AttestResponse:
		return extractKitesignal(typed, resultID, at), nil
	case *veriscan.ScoresResponse:
		return extractVeriscanScores(typed, resultID, at), nil
	case *veriscan.SideResponse:
		return extractVeriscanSide(typed, resultID, at), nil
	case *veriscan.SessionResponse, *veriscan.AckResponse, *veriscan.StatusResponse:
		// Protocol plumbing; carries no risk facts.
		return nil, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"no signal extractor for vendor api %q", resp.API())
	}
}

func extractTrustlane(resp *trustlane.CheckResponse, resultID id.ResultID, extractionCtx Context, at time.Time) []Signal {
	make1 := signalMaker(resp.API(), resultID, at)
	var out []Signal

	if resp.Summary == trustlane.SummaryIDLocated {
		out = append(out, make1(StatusIDLocated))
	} else {
		out = append(out, make1(IDNotLocated))
	}
	if resp.Deceased {
		out = append(out, make1(IdentityDeceased))
	}
	if resp.NameMatch == trustlane.MatchCodeMismatch {
		out = append(out, make1(NameDoesNotMatch))
	}
	if resp.DOBMatch == trustlane.MatchCodeMismatch && extractionCtx.submitted(vault.FieldDOB) {
		out = append(out, make1(DOBDoesNotMatch))
	}
	if resp.SSNMatch == trustlane.MatchCodeMismatch && extractionCtx.submitted(vault.FieldSSN) {
		out = append(out, make1(SSNDoesNotMatch))
	}
	if resp.AddressMatch == trustlane.MatchCodeMismatch && extractionCtx.submitted(vault.FieldAddressLine1) {
		out = append(out, make1(AddressDoesNotMatch))
	}
	return out
}

// lumenCodes maps Lumen's flat result codes to normalized reason codes, with
// the vault field whose submission makes the code meaningful (empty = always).
var lumenCodes = map[string]struct {
	code  ReasonCode
	gated vault.Field
}{
	lumen.CodeSSNMismatch:     {SSNDoesNotMatch, vault.FieldSSN},
	lumen.CodeDOBMismatch:     {DOBDoesNotMatch, vault.FieldDOB},
	lumen.CodeAddressMismatch: {AddressDoesNotMatch, vault.FieldAddressLine1},
	lumen.CodePhoneHighRisk:   {PhoneHighRisk, vault.FieldPhone},
	lumen.CodeEmailHighRisk:   {EmailHighRisk, vault.FieldEmail},
}

func extractLumen(resp *lumen.VerifyResponse, resultID id.ResultID, extractionCtx Context, at time.Time) []Signal {
	make1 := signalMaker(resp.API(), resultID, at)
	var out []Signal

	if resp.Found {
		out = append(out, make1(StatusIDLocated))
	} else {
		out = append(out, make1(IDNotLocated))
	}
	for _, vendorCode := range resp.ResultCodes {
		mapping, known := lumenCodes[vendorCode]
		if !known {
			continue
		}
		if mapping.gated != "" && !extractionCtx.submitted(mapping.gated) {
			continue
		}
		out = append(out, make1(mapping.code))
	}
	return out
}

func extractSentriwatch(resp *sentriwatch.ScreenResponse, resultID id.ResultID, at time.Time) []Signal {
	make1 := signalMaker(resp.API(), resultID, at)
	var out []Signal
	if resp.Listed() {
		out = append(out, make1(WatchlistHit))
	}
	if resp.PEP() {
		out = append(out, make1(WatchlistPEP))
	}
	return out
}

func extractKitesignal(resp *kitesignal.AttestResponse, resultID id.ResultID, at time.Time) []Signal {
	make1 := signalMaker(resp.API(), resultID, at)
	var out []Signal
	if resp.Trusted {
		out = append(out, make1(DeviceTrusted))
	} else {
		out = append(out, make1(DeviceUntrusted))
	}
	if resp.Emulator {
		out = append(out, make1(DeviceEmulator))
	}
	if resp.Proxy {
		out = append(out, make1(DeviceProxy))
	}
	if resp.BotTraffic {
		out = append(out, make1(DeviceBot))
	}
	return out
}

const (
	minDocumentScore  = 0.6
	minFaceMatchScore = 0.7
)

func extractVeriscanScores(resp *veriscan.ScoresResponse, resultID id.ResultID, at time.Time) []Signal {
	make1 := signalMaker(resp.API(), resultID, at)
	var out []Signal
	if resp.Expired {
		out = append(out, make1(DocumentExpired))
	}
	if resp.DocumentScore < minDocumentScore {
		out = append(out, make1(DocumentLowScore))
	}
	if resp.FaceMatchScore > 0 && resp.FaceMatchScore < minFaceMatchScore {
		out = append(out, make1(SelfieDoesNotMatch))
	}
	if len(out) == 0 {
		out = append(out, make1(DocumentOK))
	}
	return out
}

// FromDocumentScores maps final document-processing scores to reason codes
// with the same thresholds live extraction uses. A zero face-match score
// means no face matching ran, not a mismatch.
func FromDocumentScores(documentScore, faceMatchScore float64, expired bool) []ReasonCode {
	var out []ReasonCode
	if expired {
		out = append(out, DocumentExpired)
	}
	if documentScore < minDocumentScore {
		out = append(out, DocumentLowScore)
	}
	if faceMatchScore > 0 && faceMatchScore < minFaceMatchScore {
		out = append(out, SelfieDoesNotMatch)
	}
	if len(out) == 0 {
		out = append(out, DocumentOK)
	}
	return out
}

var sideFailureCodes = map[veriscan.SideFailure]ReasonCode{
	veriscan.FailureGlare:       DocumentGlare,
	veriscan.FailureBlur:        DocumentBlur,
	veriscan.FailureCutoff:      DocumentCutoff,
	veriscan.FailureExpired:     DocumentExpired,
	veriscan.FailureUnsupported: DocumentUnsupported,
}

func extractVeriscanSide(resp *veriscan.SideResponse, resultID id.ResultID, at time.Time) []Signal {
	make1 := signalMaker(resp.API(), resultID, at)
	var out []Signal
	for _, failure := range resp.Failures {
		if code, ok := sideFailureCodes[failure]; ok {
			out = append(out, make1(code))
		}
	}
	return out
}

func signalMaker(api vendorapi.API, resultID id.ResultID, at time.Time) func(ReasonCode) Signal {
	return func(code ReasonCode) Signal {
		return Signal{Code: code, API: api, ResultID: resultID, At: at}
	}
}
