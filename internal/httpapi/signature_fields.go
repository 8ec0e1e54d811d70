package httpapi

import (
	"log"
	"net/http"

	"iqdb/internal/errlog"
	"iqdb/internal/signature"
)

// signatureFields is the wire representation of a Signature's raw fields,
// distinct from its hashed textual form.
type signatureFields struct {
	AvglF [3]float64 `json:"avglf"`
	Sig   []int16    `json:"sig"`
}

func signatureFieldsOf(sig signature.Signature) signatureFields {
	return signatureFields{
		AvglF: [3]float64{sig.Y, sig.I, sig.Q},
		Sig:   append([]int16(nil), sig.Coef[:]...),
	}
}

// logAndFail records an internal failure to both the operational log and
// the rotating error log, then responds 500.
func logAndFail(w http.ResponseWriter, context string, err error) {
	log.Printf("[httpapi] %s: %v", context, err)
	errlog.Logf("[httpapi] %s: %v", context, err)
	WriteError(w, http.StatusInternalServerError, "internal_error")
}
