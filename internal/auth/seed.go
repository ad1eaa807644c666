package auth

import (
	"context"
	"fmt"
	"log/slog"
)

// Default bootstrap administrator. These are published credentials;
// deployments must rotate them after first start.
const (
	DefaultAdminName     = "常用名字"
	DefaultAdminEmail    = "a@jwt.com"
	DefaultAdminPassword = "admin"
)

// AdminSeeder is the subset of the user store needed to bootstrap an admin.
type AdminSeeder interface {
	CountUsers(ctx context.Context) (int, error)
	CreateAdmin(ctx context.Context, name, email, password string) (*User, error)
}

// BootstrapAdmin holds the credentials of the first administrator.
type BootstrapAdmin struct {
	Name     string
	Email    string
	Password string
}

// withDefaults fills empty fields with the documented defaults.
func (b BootstrapAdmin) withDefaults() BootstrapAdmin {
	if b.Name == "" {
		b.Name = DefaultAdminName
	}
	if b.Email == "" {
		b.Email = DefaultAdminEmail
	}
	if b.Password == "" {
		b.Password = DefaultAdminPassword
	}
	return b
}

// SeedAdmin creates the bootstrap administrator when no users exist.
// It returns true if an account was created.
func SeedAdmin(ctx context.Context, seeder AdminSeeder, creds BootstrapAdmin, logger *slog.Logger) (bool, error) {
	count, err := seeder.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return false, nil
	}

	creds = creds.withDefaults()
	admin, err := seeder.CreateAdmin(ctx, creds.Name, creds.Email, creds.Password)
	if err != nil {
		return false, fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("bootstrap admin account created",
		"user_id", admin.ID,
		"email", admin.Email,
		"default_password", creds.Password == DefaultAdminPassword,
		"action_required", "change this password immediately",
	)

	return true, nil
}
