// Package permission resolves role codes to task capability profiles.
// Resolution is a pure function over a fixed role table; unknown roles
// deny everything rather than failing.
package permission

import "github.com/kpicloud/taskflow/internal/domain/entity"

// Role is a known role code from the role catalog.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleCPO        Role = "CPO"
	RolePM         Role = "PM"
	RolePO         Role = "PO"
	RoleDev        Role = "DEV"
	RoleSO         Role = "SO"
	RoleBA         Role = "BA"
	RoleTester     Role = "TESTER"
	RoleDevOps     Role = "DEVOPS"
	RoleBD         Role = "BD"
	RoleInv        Role = "INV"
	RoleSM         Role = "SM"
	RoleBULead     Role = "BU_LEAD"
	RoleAdminStaff Role = "ADMIN_STAFF"
)

// Action is a capability a role may hold on the task resource.
type Action string

const (
	ActionView    Action = "canView"
	ActionCreate  Action = "canCreate"
	ActionEdit    Action = "canEdit"
	ActionDelete  Action = "canDelete"
	ActionApprove Action = "canApprove"
	ActionImport  Action = "canImport"
)

// Scope is the breadth of records a role may act on.
type Scope string

const (
	// ScopeAll grants access to every task.
	ScopeAll Scope = "all"
	// ScopeTeam limits access to tasks owned by the caller's team.
	ScopeTeam Scope = "team"
	// ScopeOwn limits access to tasks assigned to the caller.
	ScopeOwn Scope = "own"
	// ScopeFunction is a role-specific functional area; it filters like
	// ScopeTeam.
	ScopeFunction Scope = "function"
)

// Profile is the capability set of a role.
type Profile struct {
	CanView    bool  `json:"canView"`
	CanCreate  bool  `json:"canCreate"`
	CanEdit    bool  `json:"canEdit"`
	CanDelete  bool  `json:"canDelete"`
	CanApprove bool  `json:"canApprove"`
	CanImport  bool  `json:"canImport"`
	Scope      Scope `json:"scope"`
}

// Allows returns true if the profile grants the action.
func (p Profile) Allows(action Action) bool {
	switch action {
	case ActionView:
		return p.CanView
	case ActionCreate:
		return p.CanCreate
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	case ActionApprove:
		return p.CanApprove
	case ActionImport:
		return p.CanImport
	default:
		return false
	}
}

// Resolve maps a role code to its capability profile. ADMIN is a hard
// override checked before the table; an unrecognized role resolves to the
// deny-everything profile.
func Resolve(role Role) Profile {
	if role == RoleAdmin {
		return Profile{
			CanView: true, CanCreate: true, CanEdit: true,
			CanDelete: true, CanApprove: true, CanImport: true,
			Scope: ScopeAll,
		}
	}

	switch role {
	case RoleCPO:
		return Profile{CanView: true, CanEdit: true, CanApprove: true, CanImport: true, Scope: ScopeAll}
	case RolePM, RolePO:
		return Profile{CanView: true, CanCreate: true, CanEdit: true, CanApprove: true, CanImport: true, Scope: ScopeTeam}
	case RoleDev:
		return Profile{CanView: true, Scope: ScopeOwn}
	case RoleSO, RoleBA:
		return Profile{CanView: true, Scope: ScopeAll}
	case RoleTester, RoleDevOps:
		return Profile{CanView: true, Scope: ScopeTeam}
	case RoleBD, RoleInv:
		return Profile{CanView: true, CanCreate: true, CanEdit: true, Scope: ScopeFunction}
	case RoleSM, RoleBULead, RoleAdminStaff:
		return Profile{CanView: true, CanCreate: true, CanEdit: true, CanDelete: true, Scope: ScopeFunction}
	default:
		// Deny by default: unknown roles get no capabilities.
		return Profile{Scope: ScopeOwn}
	}
}

// Authorize reports whether the caller may perform the action on tasks.
func Authorize(user entity.Identity, action Action) bool {
	return Resolve(Role(user.RoleCode)).Allows(action)
}

// ScopeFilter narrows list filters to the caller's visibility scope.
// Team and function scopes pin the team filter to the caller's team; own
// scope pins the assignee filter. ScopeAll leaves filters untouched.
func ScopeFilter(user entity.Identity, filters entity.TaskFilters) entity.TaskFilters {
	profile := Resolve(Role(user.RoleCode))
	switch profile.Scope {
	case ScopeTeam, ScopeFunction:
		teamID := user.TeamID
		filters.TeamID = &teamID
	case ScopeOwn:
		userID := user.UserID
		filters.AssignedTo = &userID
	}
	return filters
}
