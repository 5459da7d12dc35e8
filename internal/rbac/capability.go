package rbac

var roles = []Role{RoleWorker, RoleSupervisor, RolePWI, RoleStationMaster, RoleAdmin}

var catalog = []Action{
	ActionViewDashboard,
	ActionScan,
	ActionReportFault,
	ActionViewAlerts,
	ActionActOnAlert,
	ActionViewReports,
	ActionViewAuditLogs,
}

type roleSet map[Role]struct{}

func setOf(rs ...Role) roleSet {
	set := make(roleSet, len(rs))
	for _, r := range rs {
		set[r] = struct{}{}
	}
	return set
}

// rules is never mutated after package initialisation.
var rules = map[Action]roleSet{
	ActionViewDashboard: setOf(roles...),
	ActionScan:          setOf(roles...),
	ActionViewReports:   setOf(roles...),
	ActionReportFault:   setOf(RoleWorker, RoleSupervisor, RolePWI, RoleAdmin),
	ActionViewAlerts:    setOf(RoleSupervisor, RolePWI, RoleStationMaster, RoleAdmin),
	ActionActOnAlert:    setOf(RoleSupervisor, RolePWI, RoleStationMaster, RoleAdmin),
	ActionViewAuditLogs: setOf(RoleAdmin),
}

// IsPermitted reports whether role may perform action. Unknown roles and
// actions outside the catalog are denied.
func IsPermitted(role Role, action Action) bool {
	allowed, ok := rules[action]
	if !ok {
		return false
	}
	_, ok = allowed[role]
	return ok
}

// Permitted lists the actions a role holds, in catalog order.
func Permitted(role Role) []Action {
	out := make([]Action, 0, len(catalog))
	for _, a := range catalog {
		if IsPermitted(role, a) {
			out = append(out, a)
		}
	}
	return out
}

// Catalog returns a copy of the action catalog in canonical order.
func Catalog() []Action {
	out := make([]Action, len(catalog))
	copy(out, catalog)
	return out
}

// Roles returns a copy of the known roles.
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}
