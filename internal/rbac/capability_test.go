package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

func TestIsPermittedMatrix(t *testing.T) {
	expected := map[Action][]Role{
		ActionViewDashboard: {RoleWorker, RoleSupervisor, RolePWI, RoleStationMaster, RoleAdmin},
		ActionScan:          {RoleWorker, RoleSupervisor, RolePWI, RoleStationMaster, RoleAdmin},
		ActionViewReports:   {RoleWorker, RoleSupervisor, RolePWI, RoleStationMaster, RoleAdmin},
		ActionReportFault:   {RoleWorker, RoleSupervisor, RolePWI, RoleAdmin},
		ActionViewAlerts:    {RoleSupervisor, RolePWI, RoleStationMaster, RoleAdmin},
		ActionActOnAlert:    {RoleSupervisor, RolePWI, RoleStationMaster, RoleAdmin},
		ActionViewAuditLogs: {RoleAdmin},
	}
	require.Len(t, expected, len(Catalog()))

	for _, action := range Catalog() {
		allowed := make(map[Role]bool)
		for _, r := range expected[action] {
			allowed[r] = true
		}
		for _, role := range Roles() {
			assert.Equal(t, allowed[role], IsPermitted(role, action), "role=%s action=%s", role, action)
		}
	}
}

func TestEveryCatalogActionHasRule(t *testing.T) {
	for _, action := range Catalog() {
		_, ok := rules[action]
		assert.True(t, ok, "missing rule for %s", action)
	}
	assert.Len(t, rules, len(catalog))
}

func TestAdminHoldsEveryCapability(t *testing.T) {
	assert.Equal(t, Catalog(), Permitted(RoleAdmin))
}

func TestStationMasterCannotReportFault(t *testing.T) {
	assert.False(t, IsPermitted(RoleStationMaster, ActionReportFault))
	assert.True(t, IsPermitted(RoleStationMaster, ActionActOnAlert))
}

func TestUnknownRoleOrActionDenied(t *testing.T) {
	for _, action := range Catalog() {
		assert.False(t, IsPermitted(Role("guest"), action))
		assert.False(t, IsPermitted(Role(""), action))
	}
	for _, role := range Roles() {
		assert.False(t, IsPermitted(role, Action("delete_everything")))
	}
}

func TestIsPermittedIsStable(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.True(t, IsPermitted(RoleWorker, ActionReportFault))
		assert.False(t, IsPermitted(RoleWorker, ActionViewAlerts))
	}
}

func TestCatalogReturnsCopy(t *testing.T) {
	c := Catalog()
	c[0] = Action("tampered")
	assert.Equal(t, ActionViewDashboard, Catalog()[0])
}

func TestParseHelpers(t *testing.T) {
	role, err := ParseRole(" Station_Master ")
	require.NoError(t, err)
	assert.Equal(t, RoleStationMaster, role)

	_, err = ParseRole("guest")
	assert.ErrorIs(t, err, ErrUnknownRole)

	action, err := ParseAction("report_fault")
	require.NoError(t, err)
	assert.Equal(t, ActionReportFault, action)

	_, err = ParseAction("fly")
	assert.ErrorIs(t, err, ErrUnknownAction)

	d, err := ParseDecision("APPROVE")
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, d)

	_, err = ParseDecision("maybe")
	assert.ErrorIs(t, err, ErrUnknownDecision)
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize(Principal{Role: RolePWI}, ActionActOnAlert))

	err := Authorize(Principal{Role: RoleWorker}, ActionViewAuditLogs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAuthorizationDenied))
}
