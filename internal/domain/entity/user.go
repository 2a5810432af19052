package entity

import "time"

// User is a member of the organization who can own, mutate and approve tasks.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	RoleCode     string    `json:"role_code"`
	TeamID       int64     `json:"team_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	TeamCode string `json:"team_code,omitempty"`
	TeamName string `json:"team_name,omitempty"`
}

// Identity is the verified caller of an operation, extracted from the
// session token. The engine trusts it as given.
type Identity struct {
	UserID   int64  `json:"user_id"`
	RoleCode string `json:"role_code"`
	TeamID   int64  `json:"team_id"`
	TeamCode string `json:"team_code"`
}

// Team is a row of the team catalog table.
type Team struct {
	ID       int64  `json:"id"`
	TeamCode string `json:"team_code"`
	TeamName string `json:"team_name"`
}

// Category is a row of the task category lookup table.
type Category struct {
	ID           int64  `json:"id"`
	CategoryCode string `json:"category_code"`
	CategoryName string `json:"category_name"`
	IsActive     bool   `json:"is_active"`
}
