package waterfall

import (
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	"vouch/internal/vendors/kitesignal"
	"vouch/internal/vendors/lumen"
	"vouch/internal/vendors/sentriwatch"
	"vouch/internal/vendors/trustlane"
	dErrors "vouch/pkg/domain-errors"
)

// reparseResponse rebuilds the typed response from a stored raw payload, so
// skipped and replayed steps feed signal extraction the same shapes a live
// call would.
func reparseResponse(api vendorapi.API, raw []byte) (vendors.Response, error) {
	switch api {
	case vendorapi.TrustlaneKYC:
		return trustlane.ParseResponse(raw)
	case vendorapi.LumenKYC:
		return lumen.ParseResponse(raw)
	case vendorapi.SentriwatchAML:
		return sentriwatch.ParseResponse(raw)
	case vendorapi.KitesignalDevice:
		return kitesignal.ParseResponse(raw)
	default:
		// Veriscan results are owned by the document state machine and never
		// reach the waterfall.
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "no stored-response parser for api %q", api)
	}
}
