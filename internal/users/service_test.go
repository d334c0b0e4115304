package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/maisonnoire/trufflehouse-backend/pkg/auth"
	"github.com/maisonnoire/trufflehouse-backend/pkg/config"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.User{}))

	svc, err := NewService(NewRepository(conn), config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "maisonnoire",
		ExpirationMinutes: 15,
	}, nil)
	require.NoError(t, err)
	return svc
}

func TestSeedAdminAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seed := config.SeedConfig{AdminEmail: "Admin@MaisonNoire.fr", AdminPassword: "s3cret-truffle"}
	require.NoError(t, svc.SeedAdmin(ctx, seed))

	// Seeding again must not create a duplicate account.
	require.NoError(t, svc.SeedAdmin(ctx, seed))

	token, err := svc.Authenticate(ctx, "admin@maisonnoire.fr", "s3cret-truffle")
	require.NoError(t, err)

	claims, err := auth.ParseAccessToken(svc.jwtCfg, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.True(t, claims.IsAdmin)
}

func TestSeedAdminBlankConfigIsNoop(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.SeedAdmin(context.Background(), config.SeedConfig{}))

	_, err := svc.repo.FindByEmail(context.Background(), "admin@maisonnoire.fr")
	require.Error(t, err)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seed := config.SeedConfig{AdminEmail: "admin@maisonnoire.fr", AdminPassword: "s3cret-truffle"}
	require.NoError(t, svc.SeedAdmin(ctx, seed))

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "admin@maisonnoire.fr", "wrong"},
		{"unknown user", "nobody@maisonnoire.fr", "s3cret-truffle"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tc.email, tc.password)
			require.Error(t, err)
			appErr := apperrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, apperrors.CodeUnauthorized, appErr.Code())
		})
	}
}

func TestAuthenticateRejectsInactiveUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seed := config.SeedConfig{AdminEmail: "admin@maisonnoire.fr", AdminPassword: "s3cret-truffle"}
	require.NoError(t, svc.SeedAdmin(ctx, seed))

	user, err := svc.repo.FindByEmail(ctx, seed.AdminEmail)
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, svc.repo.db.WithContext(ctx).Save(user).Error)

	_, err = svc.Authenticate(ctx, seed.AdminEmail, seed.AdminPassword)
	require.Error(t, err)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeUnauthorized, appErr.Code())
}
