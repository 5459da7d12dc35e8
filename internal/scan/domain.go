// Package scan resolves a scanned QR image or a typed identifier into a
// confirmed fitting record.
package scan

import (
	"time"
)

// InputKind says how the operator supplied the identifier.
type InputKind string

// Input kinds.
const (
	InputImage    InputKind = "image"
	InputManualID InputKind = "manual_id"
)

// Attempt is one submission. It is consumed once and never retried.
type Attempt struct {
	Kind     InputKind
	Image    []byte
	ManualID string
	At       time.Time
}

// ImageAttempt builds an attempt from raw image bytes.
func ImageAttempt(image []byte, at time.Time) Attempt {
	return Attempt{Kind: InputImage, Image: image, At: at}
}

// ManualAttempt builds an attempt from a typed identifier.
func ManualAttempt(id string, at time.Time) Attempt {
	return Attempt{Kind: InputManualID, ManualID: id, At: at}
}

// Resolution is the closed set of identification results: Decoded,
// Reconstructed or Failed. Consumers type-switch over it.
type Resolution interface {
	resolution()
	// Label names the variant for logs and metrics.
	Label() string
}

// Decoded is a fitting identifier read directly from the code or typed by hand.
type Decoded struct {
	FittingID string
}

// Reconstructed is an identifier recovered from a damaged code. Confidence
// is the collaborator's score in [0,1], carried verbatim.
type Reconstructed struct {
	FittingID  string
	Confidence float64
}

// Failed is an attempt that produced no fitting.
type Failed struct {
	Reason FailureReason
}

func (Decoded) resolution()       {}
func (Reconstructed) resolution() {}
func (Failed) resolution()        {}

// Label implements Resolution.
func (Decoded) Label() string { return "decoded" }

// Label implements Resolution.
func (Reconstructed) Label() string { return "reconstructed" }

// Label implements Resolution.
func (Failed) Label() string { return "failed" }

// FittingIDOf returns the identifier carried by a successful resolution.
func FittingIDOf(r Resolution) (string, bool) {
	switch v := r.(type) {
	case Decoded:
		return v.FittingID, true
	case Reconstructed:
		return v.FittingID, true
	default:
		return "", false
	}
}

// FailureReason classifies a Failed resolution.
type FailureReason string

// Failure reasons.
const (
	ReasonNoCodeFound          FailureReason = "no_code_found"
	ReasonReconstructionFailed FailureReason = "reconstruction_failed"
	ReasonLookupNotFound       FailureReason = "lookup_not_found"
	ReasonIOError              FailureReason = "io_error"
)

// OutcomeKind is what the decoding collaborator reported.
type OutcomeKind int

// Decoder outcomes.
const (
	OutcomeNoCode OutcomeKind = iota
	OutcomeDirect
	OutcomeReconstructed
	OutcomeReconstructionFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDirect:
		return "direct"
	case OutcomeReconstructed:
		return "reconstructed"
	case OutcomeReconstructionFailed:
		return "reconstruction_failed"
	default:
		return "no_code"
	}
}

// DecodeOutcome is the decoder's answer for one image.
type DecodeOutcome struct {
	Kind       OutcomeKind
	FittingID  string
	Confidence float64
}
