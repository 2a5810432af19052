package permission

import (
	"testing"

	"github.com/kpicloud/taskflow/internal/domain/entity"
)

var allActions = []Action{
	ActionView, ActionCreate, ActionEdit,
	ActionDelete, ActionApprove, ActionImport,
}

func TestResolve_AdminHasEverything(t *testing.T) {
	profile := Resolve(RoleAdmin)

	for _, action := range allActions {
		if !profile.Allows(action) {
			t.Errorf("ADMIN should allow %s", action)
		}
	}
	if profile.Scope != ScopeAll {
		t.Errorf("ADMIN scope = %s, want %s", profile.Scope, ScopeAll)
	}
}

func TestResolve_UnknownRoleDeniesEverything(t *testing.T) {
	for _, role := range []Role{"", "INTERN", "root", "admin"} {
		profile := Resolve(role)
		for _, action := range allActions {
			if profile.Allows(action) {
				t.Errorf("unknown role %q should deny %s", role, action)
			}
		}
	}
}

func TestResolve_RoleTable(t *testing.T) {
	tests := []struct {
		role       Role
		canCreate  bool
		canDelete  bool
		canApprove bool
		scope      Scope
	}{
		{RoleCPO, false, false, true, ScopeAll},
		{RolePM, true, false, true, ScopeTeam},
		{RolePO, true, false, true, ScopeTeam},
		{RoleDev, false, false, false, ScopeOwn},
		{RoleSO, false, false, false, ScopeAll},
		{RoleBA, false, false, false, ScopeAll},
		{RoleTester, false, false, false, ScopeTeam},
		{RoleDevOps, false, false, false, ScopeTeam},
		{RoleBD, true, false, false, ScopeFunction},
		{RoleInv, true, false, false, ScopeFunction},
		{RoleSM, true, true, false, ScopeFunction},
		{RoleBULead, true, true, false, ScopeFunction},
		{RoleAdminStaff, true, true, false, ScopeFunction},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			profile := Resolve(tt.role)
			if !profile.CanView {
				t.Errorf("%s should at least view", tt.role)
			}
			if profile.CanCreate != tt.canCreate {
				t.Errorf("%s CanCreate = %v, want %v", tt.role, profile.CanCreate, tt.canCreate)
			}
			if profile.CanDelete != tt.canDelete {
				t.Errorf("%s CanDelete = %v, want %v", tt.role, profile.CanDelete, tt.canDelete)
			}
			if profile.CanApprove != tt.canApprove {
				t.Errorf("%s CanApprove = %v, want %v", tt.role, profile.CanApprove, tt.canApprove)
			}
			if profile.Scope != tt.scope {
				t.Errorf("%s Scope = %s, want %s", tt.role, profile.Scope, tt.scope)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	admin := entity.Identity{UserID: 1, RoleCode: "ADMIN"}
	dev := entity.Identity{UserID: 2, RoleCode: "DEV"}
	unknown := entity.Identity{UserID: 3, RoleCode: "NOPE"}

	if !Authorize(admin, ActionDelete) {
		t.Error("ADMIN should pass authorize for delete")
	}
	if !Authorize(dev, ActionView) {
		t.Error("DEV should pass authorize for view")
	}
	if Authorize(dev, ActionEdit) {
		t.Error("DEV should fail authorize for edit")
	}
	for _, action := range allActions {
		if Authorize(unknown, action) {
			t.Errorf("unknown role should fail authorize for %s", action)
		}
	}
}

func TestScopeFilter(t *testing.T) {
	base := entity.TaskFilters{}

	t.Run("team scope pins team", func(t *testing.T) {
		user := entity.Identity{UserID: 7, RoleCode: "PM", TeamID: 3}
		got := ScopeFilter(user, base)
		if got.TeamID == nil || *got.TeamID != 3 {
			t.Fatalf("expected team filter pinned to 3, got %v", got.TeamID)
		}
	})

	t.Run("own scope pins assignee", func(t *testing.T) {
		user := entity.Identity{UserID: 7, RoleCode: "DEV", TeamID: 3}
		got := ScopeFilter(user, base)
		if got.AssignedTo == nil || *got.AssignedTo != 7 {
			t.Fatalf("expected assignee filter pinned to 7, got %v", got.AssignedTo)
		}
	})

	t.Run("all scope leaves filters alone", func(t *testing.T) {
		user := entity.Identity{UserID: 7, RoleCode: "CPO", TeamID: 3}
		got := ScopeFilter(user, base)
		if got.TeamID != nil || got.AssignedTo != nil {
			t.Fatalf("expected untouched filters, got %+v", got)
		}
	})
}
