package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"solvermarket/internal/config"
	"solvermarket/internal/db"
	"solvermarket/internal/domain"
	"solvermarket/internal/engine"
	"solvermarket/internal/migrate"
	"solvermarket/internal/repo"
)

// Open opens the workspace database and brings the schema up to date.
func Open(workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

// LoadConfig reads the workspace config, falling back to defaults when the
// file is absent.
func LoadConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// SeedUser creates the user if the email is not yet registered and returns
// the stored row either way. The CLI uses this for idempotent seeding.
func SeedUser(ctx context.Context, e engine.Engine, email, name, role string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if u, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return u, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	return e.CreateUser(ctx, email, name, role)
}
