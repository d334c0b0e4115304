package users

import (
	"context"
	"fmt"
	"time"

	"github.com/maisonnoire/trufflehouse-backend/pkg/auth"
	"github.com/maisonnoire/trufflehouse-backend/pkg/config"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
	"github.com/maisonnoire/trufflehouse-backend/pkg/security"
)

// Service handles the minimal account surface this backend needs: the
// seeded admin account and bearer-token login for the admin console.
type Service struct {
	repo   *Repository
	jwtCfg config.JWTConfig
	logg   *logger.Logger
}

func NewService(repo *Repository, jwtCfg config.JWTConfig, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &Service{repo: repo, jwtCfg: jwtCfg, logg: logg}, nil
}

// Authenticate verifies the credentials and mints an access token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	invalid := apperrors.New(apperrors.CodeUnauthorized, "invalid credentials")

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			return "", invalid
		}
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "looking up user")
	}
	if !user.IsActive {
		return "", invalid
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return "", invalid
	}

	token, err := auth.MintAccessToken(s.jwtCfg, time.Now().UTC(), auth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "minting token")
	}
	return token, nil
}

// SeedAdmin creates the configured admin account if no user owns the
// email yet. A blank seed config is a no-op.
func (s *Service) SeedAdmin(ctx context.Context, seed config.SeedConfig) error {
	if seed.AdminEmail == "" || seed.AdminPassword == "" {
		return nil
	}

	if _, err := s.repo.FindByEmail(ctx, seed.AdminEmail); err == nil {
		return nil
	} else if !db.IsNotFound(err) {
		return fmt.Errorf("checking for seeded admin: %w", err)
	}

	hash, err := security.HashPassword(seed.AdminPassword)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}

	user := &models.User{
		Email:        seed.AdminEmail,
		Username:     "admin",
		PasswordHash: hash,
		IsAdmin:      true,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return fmt.Errorf("creating seeded admin: %w", err)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "seeded admin account")
	}
	return nil
}
