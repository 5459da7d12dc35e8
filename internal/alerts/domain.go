// Package alerts stores alerts raised from fault reports and records the
// approve/reject decisions taken on them.
package alerts

import (
	"fmt"
	"time"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// Status is the lifecycle state of an alert.
type Status string

// Alert statuses.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// StatusFor maps a decision onto the resulting status.
func StatusFor(d rbac.Decision) Status {
	if d == rbac.DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

var (
	// ErrNotFound is returned for unknown alert IDs.
	ErrNotFound = fmt.Errorf("alert %w", shared.ErrNotFound)
	// ErrAlreadyDecided is returned when deciding an alert that is no longer pending.
	ErrAlreadyDecided = fmt.Errorf("alert already decided: %w", shared.ErrConflict)
)

// Alert is a notification raised for a fitting.
type Alert struct {
	ID           int64            `json:"id"`
	FittingID    string           `json:"fitting_id"`
	ReportID     *string          `json:"report_id,omitempty"`
	Severity     reports.Severity `json:"severity"`
	FaultType    string           `json:"fault_type"`
	Location     string           `json:"location"`
	Inspector    string           `json:"inspector"`
	Description  string           `json:"description"`
	RaisedAt     time.Time        `json:"raised_at"`
	Status       Status           `json:"status"`
	AssignedRole *rbac.Role       `json:"assigned_role,omitempty"`
	DecidedBy    *int64           `json:"decided_by,omitempty"`
	DecidedAt    *time.Time       `json:"decided_at,omitempty"`
}

// Filter narrows alert listings. AssignedTo keeps only alerts routed to that
// role; it is a worklist view, not an access rule.
type Filter struct {
	Severity   reports.Severity
	Status     Status
	AssignedTo rbac.Role
	Limit      int
}

// RouteFor suggests which role should pick up an escalated report. The
// assignment only orders worklists: any role permitted act_on_alert may decide
// any alert. Critical faults are left unassigned.
func RouteFor(s reports.Severity) *rbac.Role {
	if s == reports.SeverityModerate {
		role := rbac.RoleSupervisor
		return &role
	}
	return nil
}
