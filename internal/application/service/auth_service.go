package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kpicloud/taskflow/internal/application/port"
	"github.com/kpicloud/taskflow/internal/domain/entity"
)

// TokenClaims is the JWT payload identifying a session.
type TokenClaims struct {
	UserID   int64  `json:"user_id"`
	RoleCode string `json:"role_code"`
	TeamID   int64  `json:"team_id"`
	TeamCode string `json:"team_code"`
	jwt.RegisteredClaims
}

// AuthService verifies credentials and issues session tokens
type AuthService interface {
	// Login checks the password and returns the user with a signed token
	Login(ctx context.Context, username, password string) (*entity.User, string, error)

	// ParseToken validates a token string and recovers the caller identity
	ParseToken(tokenString string) (entity.Identity, error)
}

type authServiceImpl struct {
	userRepo port.UserRepository
	secret   []byte
	tokenTTL time.Duration
	logger   Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo port.UserRepository, secret string, tokenTTL time.Duration, logger Logger) AuthService {
	return &authServiceImpl{
		userRepo: userRepo,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *authServiceImpl) Login(ctx context.Context, username, password string) (*entity.User, string, error) {
	if username == "" || password == "" {
		return nil, "", fmt.Errorf("%w: username and password are required", entity.ErrValidation)
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	// Same error for unknown user and bad password
	if user == nil {
		return nil, "", fmt.Errorf("%w: invalid credentials", entity.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("%w: invalid credentials", entity.ErrUnauthorized)
	}

	now := s.now()
	claims := TokenClaims{
		UserID:   user.ID,
		RoleCode: user.RoleCode,
		TeamID:   user.TeamID,
		TeamCode: user.TeamCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID, "username", user.Username)
	return user, token, nil
}

func (s *authServiceImpl) ParseToken(tokenString string) (entity.Identity, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return entity.Identity{}, fmt.Errorf("%w: invalid token", entity.ErrUnauthorized)
	}

	return entity.Identity{
		UserID:   claims.UserID,
		RoleCode: claims.RoleCode,
		TeamID:   claims.TeamID,
		TeamCode: claims.TeamCode,
	}, nil
}
