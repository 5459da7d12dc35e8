// Package actions offers and dispatches the capability-gated actions that
// follow a fitting identification.
package actions

import (
	"fmt"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

var (
	// ErrDispatchInFlight is returned while the same session already has a
	// command of the same kind running.
	ErrDispatchInFlight = fmt.Errorf("actions: dispatch already in flight: %w", shared.ErrConflict)
	// ErrUnknownCommand indicates a Command implementation the router does not handle.
	ErrUnknownCommand = fmt.Errorf("actions: unknown command: %w", shared.ErrValidation)
)

// Command is the closed set of dispatchable operations.
type Command interface {
	// Action is the capability the command exercises.
	Action() rbac.Action
	command()
}

// ReportFault files a fault report against a fitting. The reporter and
// report date are taken from the dispatching principal and the router clock.
type ReportFault struct {
	FittingID      string           `json:"fitting_id"`
	FaultType      string           `json:"fault_type"`
	Severity       reports.Severity `json:"severity"`
	Description    string           `json:"description"`
	Location       string           `json:"location"`
	IdempotencyKey string           `json:"-"`
}

// AlertDecision approves or rejects a pending alert.
type AlertDecision struct {
	AlertID  int64         `json:"alert_id" validate:"required,gt=0"`
	Decision rbac.Decision `json:"decision" validate:"required,oneof=approve reject"`
	Note     string        `json:"note" validate:"max=500"`
}

// Action implements Command.
func (ReportFault) Action() rbac.Action { return rbac.ActionReportFault }

// Action implements Command.
func (AlertDecision) Action() rbac.Action { return rbac.ActionActOnAlert }

func (ReportFault) command()   {}
func (AlertDecision) command() {}

// Outcome describes what a dispatched command produced.
type Outcome struct {
	Action    rbac.Action      `json:"action"`
	ReportID  string           `json:"report_id,omitempty"`
	Severity  reports.Severity `json:"severity,omitempty"`
	Escalated bool             `json:"escalated,omitempty"`
	AlertID   int64            `json:"alert_id,omitempty"`
	Status    string           `json:"status,omitempty"`
}
