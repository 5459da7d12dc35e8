package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the single role a principal holds for a session.
type Role string

// The five roles of track maintenance personnel.
const (
	RoleWorker        Role = "worker"
	RoleSupervisor    Role = "supervisor"
	RolePWI           Role = "pwi"
	RoleStationMaster Role = "station_master"
	RoleAdmin         Role = "admin"
)

// Action is a capability named in the catalog.
type Action string

// Action catalog. Every value here has exactly one rule in the capability table.
const (
	ActionViewDashboard Action = "view_dashboard"
	ActionScan          Action = "scan"
	ActionReportFault   Action = "report_fault"
	ActionViewAlerts    Action = "view_alerts"
	ActionActOnAlert    Action = "act_on_alert"
	ActionViewReports   Action = "view_reports"
	ActionViewAuditLogs Action = "view_audit_logs"
)

// Decision is the payload of ActionActOnAlert.
type Decision string

// Alert decisions.
const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

var (
	// ErrUnknownRole is returned when parsing a role outside the five known roles.
	ErrUnknownRole = errors.New("rbac: unknown role")
	// ErrUnknownAction is returned when parsing an action outside the catalog.
	ErrUnknownAction = errors.New("rbac: unknown action")
	// ErrUnknownDecision is returned when parsing anything but approve/reject.
	ErrUnknownDecision = errors.New("rbac: unknown decision")
)

// Principal describes the authenticated actor. It is a value: sessions
// replace it wholesale on login and logout.
type Principal struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Can reports whether the principal's role holds the capability.
func (p Principal) Can(action Action) bool {
	return IsPermitted(p.Role, action)
}

// ParseRole validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range roles {
		if role == known {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

// ParseAction validates an action name against the catalog.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := rules[action]; ok {
		return action, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
}

// ParseDecision validates an alert decision.
func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(raw))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDecision, raw)
}
