package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kpicloud/taskflow/internal/application/port"
	"github.com/kpicloud/taskflow/internal/domain/entity"
)

const userColumns = `
	u.id, u.username, u.password_hash, u.full_name, u.role_code,
	u.team_id, u.is_active, u.created_at, u.updated_at,
	tm.team_code, tm.team_name`

const userJoins = `
	FROM users u
	LEFT JOIN teams tm ON u.team_id = tm.id`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT` + userColumns + userJoins + ` WHERE u.id = ?`

	user, err := r.scanUserRow(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get user: %v", entity.ErrStorage, err)
	}

	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	query := `SELECT` + userColumns + userJoins + ` WHERE u.username = ?`

	user, err := r.scanUserRow(getExecutor(ctx, r.db).QueryRowContext(ctx, query, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by username", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("%w: get user: %v", entity.ErrStorage, err)
	}

	return user, nil
}

// FindApprover picks the active user with the lowest ID holding one of the
// given role codes. A teamID of zero widens the search to every team.
// The lowest-id tie-break keeps approver selection deterministic.
func (r *UserRepository) FindApprover(ctx context.Context, roleCodes []string, teamID int64) (*entity.User, error) {
	if len(roleCodes) == 0 {
		return nil, fmt.Errorf("%w: at least one role code required", entity.ErrValidation)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(roleCodes)), ", ")
	var b strings.Builder
	b.WriteString(`SELECT` + userColumns + userJoins + `
		WHERE u.role_code IN (` + placeholders + `)
		AND u.is_active = TRUE`)

	params := make([]interface{}, 0, len(roleCodes)+1)
	for _, code := range roleCodes {
		params = append(params, code)
	}
	if teamID != 0 {
		b.WriteString(" AND u.team_id = ?")
		params = append(params, teamID)
	}
	b.WriteString(" ORDER BY u.id LIMIT 1")

	user, err := r.scanUserRow(getExecutor(ctx, r.db).QueryRowContext(ctx, b.String(), params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find approver",
			zap.Strings("role_codes", roleCodes),
			zap.Int64("team_id", teamID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: find approver: %v", entity.ErrStorage, err)
	}

	return user, nil
}

func (r *UserRepository) scanUserRow(row rowScanner) (*entity.User, error) {
	var user entity.User
	var teamCode, teamName sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.FullName,
		&user.RoleCode,
		&user.TeamID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&teamCode,
		&teamName,
	)
	if err != nil {
		return nil, err
	}

	user.TeamCode = teamCode.String
	user.TeamName = teamName.String

	return &user, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
