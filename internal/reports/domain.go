// Package reports holds fault reports raised against fittings.
package reports

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// Severity grades a fault.
type Severity string

// Severities, mildest first.
const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a severity, case-insensitively.
func ParseSeverity(raw string) (Severity, error) {
	switch s := Severity(strings.ToLower(strings.TrimSpace(raw))); s {
	case SeverityMinor, SeverityModerate, SeverityCritical:
		return s, nil
	}
	return "", shared.NewValidationError("severity", fmt.Sprintf("unknown severity %q", raw))
}

// Escalates reports whether reports of this severity raise an alert.
func (s Severity) Escalates() bool {
	return s == SeverityCritical || s == SeverityModerate
}

// FaultTypes lists the accepted fault classifications.
var FaultTypes = []string{
	"Loosening",
	"Crack",
	"Wear",
	"Corrosion",
	"Deformation",
	"Missing Component",
	"Improper Installation",
	"Material Failure",
	"Other",
}

var titleCaser = cases.Title(language.English)

// CanonicalFaultType normalises spacing and casing, returning false when the
// value is not one of FaultTypes.
func CanonicalFaultType(raw string) (string, bool) {
	normalized := titleCaser.String(strings.Join(strings.Fields(raw), " "))
	for _, ft := range FaultTypes {
		if ft == normalized {
			return ft, true
		}
	}
	return "", false
}

// FaultReport is immutable once submitted.
type FaultReport struct {
	ID           string    `json:"id,omitempty"`
	FittingID    string    `json:"fitting_id" validate:"required,max=64"`
	FaultType    string    `json:"fault_type" validate:"required,fault_type"`
	Severity     Severity  `json:"severity" validate:"required,oneof=minor moderate critical"`
	Description  string    `json:"description" validate:"max=2000"`
	Location     string    `json:"location" validate:"required,max=200"`
	ReportedBy   string    `json:"reported_by" validate:"required"`
	ReportedDate time.Time `json:"reported_date" validate:"required"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Normalize trims free text and canonicalises enumerations in place.
func (r *FaultReport) Normalize() {
	r.FittingID = strings.TrimSpace(r.FittingID)
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
	if ft, ok := CanonicalFaultType(r.FaultType); ok {
		r.FaultType = ft
	}
	if s, err := ParseSeverity(string(r.Severity)); err == nil {
		r.Severity = s
	}
	if !r.ReportedDate.IsZero() {
		y, m, d := r.ReportedDate.UTC().Date()
		r.ReportedDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// ErrNotFound is returned when a report ID is unknown.
var ErrNotFound = fmt.Errorf("fault report %w", shared.ErrNotFound)
