// Package fittings owns the read side of track-fitting records: the
// Postgres-backed store, a Redis read-through cache and the detail endpoint.
package fittings

import (
	"fmt"
	"time"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// ErrNotFound is returned by Lookup when no fitting carries the identifier.
var ErrNotFound = fmt.Errorf("fitting %w", shared.ErrNotFound)

// Fitting status values as recorded by maintenance staff.
const (
	StatusActive    = "Active"
	StatusAttention = "Attention"
	StatusCritical  = "Critical"
)

// Record is a fitting with its inspection history. Values returned by a
// store are snapshots; callers must not expect writes to flow back.
type Record struct {
	FittingID       string       `json:"fitting_id"`
	FittingType     string       `json:"fitting_type"`
	Material        string       `json:"material"`
	Specifications  string       `json:"specifications"`
	VendorName      string       `json:"vendor_name"`
	VendorCode      string       `json:"vendor_code"`
	BatchID         string       `json:"batch_id"`
	ManufactureDate *time.Time   `json:"manufacture_date,omitempty"`
	SupplyDate      *time.Time   `json:"supply_date,omitempty"`
	WarrantyMonths  int          `json:"warranty_months"`
	Status          string       `json:"status"`
	Location        string       `json:"location"`
	Inspections     []Inspection `json:"inspections"`
}

// Inspection is one entry of a fitting's maintenance history.
type Inspection struct {
	InspectionDate time.Time `json:"inspection_date"`
	InspectorName  string    `json:"inspector_name"`
	Section        string    `json:"section"`
	KMLocation     string    `json:"km_location"`
	FaultType      string    `json:"fault_type"`
	Severity       string    `json:"severity"`
	Status         string    `json:"status"`
}

// Warranty summarises warranty coverage at a point in time.
type Warranty struct {
	Known     bool       `json:"known"`
	Valid     bool       `json:"valid"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// WarrantyAt computes coverage from supply date plus warranty months. A
// fitting without a supply date has unknown coverage.
func (r Record) WarrantyAt(now time.Time) Warranty {
	if r.SupplyDate == nil {
		return Warranty{}
	}
	expires := r.SupplyDate.AddDate(0, r.WarrantyMonths, 0)
	return Warranty{Known: true, Valid: expires.After(now), ExpiresAt: &expires}
}

// LastInspection returns the most recent inspection, if any.
func (r Record) LastInspection() (Inspection, bool) {
	if len(r.Inspections) == 0 {
		return Inspection{}, false
	}
	return r.Inspections[len(r.Inspections)-1], true
}
