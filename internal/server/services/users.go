// Package services contains server-side business logic: uploads, the
// file/folder metadata engine, share links and user accounts. Services take
// the pool and a RepositoryManager; mutations run in dbx transactions with
// repositories bound to the transaction.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/auth"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
)

// UserService registers accounts and exchanges credentials for access tokens.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

func validateCredentials(username, password string) error {
	var violations []string

	n := utf8.RuneCountInString(username)
	if n < 3 || n > 15 {
		violations = append(violations, "username must be between 3 and 15 characters")
	}
	for _, r := range username {
		if !unicode.IsLetter(r) {
			violations = append(violations, "username must contain only letters")
			break
		}
	}

	if n := utf8.RuneCountInString(password); n < 6 || n > 35 {
		violations = append(violations, "password must be between 6 and 35 characters")
	}

	return common.NewValidationError(violations...)
}

// Register creates a user. A taken username yields common.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{UserName: username, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login verifies credentials and returns a signed access token. Unknown
// users and wrong passwords both yield common.ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrUnauthorized
		}
		return "", fmt.Errorf("error loading user: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			return "", err
		}
		return "", fmt.Errorf("error checking password: %w", err)
	}

	return auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
}

// Authenticate resolves an access token to the acting user id.
func (s *UserService) Authenticate(token string) (int64, error) {
	return auth.GetUserIDFromToken(token, s.jwtSecret)
}
