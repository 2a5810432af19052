// Package catalog loads the role and team reference data shipped with the
// deployment. The catalogs are read once at startup; the database seeds and
// the permission table must agree with them.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kpicloud/taskflow/internal/domain/permission"
)

// Role is an entry of the role catalog.
type Role struct {
	RoleCode string `json:"role_code"`
	RoleName string `json:"role_name"`
}

// Team is an entry of the team catalog.
type Team struct {
	TeamCode string `json:"team_code"`
	TeamName string `json:"team_name"`
}

// Catalog holds the loaded reference data.
type Catalog struct {
	Roles []Role
	Teams []Team
}

// Load reads both catalog files and verifies every role grants at least one
// capability, so a typo in a role code cannot silently lock its users out.
func Load(rolesPath, teamsPath string) (*Catalog, error) {
	var roles []Role
	if err := readJSON(rolesPath, &roles); err != nil {
		return nil, fmt.Errorf("load role catalog: %w", err)
	}
	var teams []Team
	if err := readJSON(teamsPath, &teams); err != nil {
		return nil, fmt.Errorf("load team catalog: %w", err)
	}

	for _, role := range roles {
		profile := permission.Resolve(permission.Role(role.RoleCode))
		if !profile.CanView {
			return nil, fmt.Errorf("role catalog entry %q resolves to no capabilities", role.RoleCode)
		}
	}

	seen := make(map[string]bool, len(teams))
	for _, team := range teams {
		if team.TeamCode == "" {
			return nil, fmt.Errorf("team catalog entry %q has no team_code", team.TeamName)
		}
		if seen[team.TeamCode] {
			return nil, fmt.Errorf("duplicate team code %q", team.TeamCode)
		}
		seen[team.TeamCode] = true
	}

	return &Catalog{Roles: roles, Teams: teams}, nil
}

// TeamByCode looks up a team catalog entry.
func (c *Catalog) TeamByCode(code string) (Team, bool) {
	for _, team := range c.Teams {
		if team.TeamCode == code {
			return team, true
		}
	}
	return Team{}, false
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
