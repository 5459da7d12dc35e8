package scan

import (
	"errors"
)

// Confidence thresholds for reconstructed identifiers.
const (
	// MinReconstructionConfidence is the score below which a reconstruction is rejected.
	MinReconstructionConfidence = 0.40
	// ConfirmReconstructionConfidence is the score below which the operator must confirm.
	ConfirmReconstructionConfidence = 0.80
)

// Advice tells the presentation layer how to treat a resolution.
type Advice string

// Advice values.
const (
	AdviceAccept  Advice = "accept"
	AdviceConfirm Advice = "confirm"
	AdviceReject  Advice = "reject"
)

// Policy applies confidence thresholds. The resolver itself never filters on
// confidence; the policy is consulted when presenting a result.
type Policy struct {
	RejectBelow  float64
	ConfirmBelow float64
}

// DefaultPolicy uses the package thresholds.
var DefaultPolicy = Policy{
	RejectBelow:  MinReconstructionConfidence,
	ConfirmBelow: ConfirmReconstructionConfidence,
}

// ErrInvalidPolicy is returned by Validate for out-of-range thresholds.
var ErrInvalidPolicy = errors.New("scan: thresholds must satisfy 0 <= reject <= confirm <= 1")

// Validate checks threshold ordering.
func (p Policy) Validate() error {
	if p.RejectBelow < 0 || p.ConfirmBelow > 1 || p.RejectBelow > p.ConfirmBelow {
		return ErrInvalidPolicy
	}
	return nil
}

// Assess returns the advice for r.
func (p Policy) Assess(r Resolution) Advice {
	switch v := r.(type) {
	case Decoded:
		return AdviceAccept
	case Reconstructed:
		switch {
		case v.Confidence < p.RejectBelow:
			return AdviceReject
		case v.Confidence < p.ConfirmBelow:
			return AdviceConfirm
		default:
			return AdviceAccept
		}
	default:
		return AdviceReject
	}
}
