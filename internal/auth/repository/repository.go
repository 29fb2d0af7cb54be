// Package repository provides PostgreSQL persistence for portal users.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"handyman_portal_backend/internal/access"
	"handyman_portal_backend/platform/apperr"
)

const userNotFoundMessage = "user not found"

// User is a portal account. Exactly one external identity reference is set
// per identity provider; role is assigned at first login and never changed
// by the user themselves.
type User struct {
	ID         uuid.UUID
	Name       string
	Email      *string
	Role       access.Role
	CognitoID  *string
	LineUserID *string
	CreatedAt  time.Time
}

// Repository defines persistence operations for users.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByCognitoID(ctx context.Context, cognitoID string) (User, error)
	GetByLineUserID(ctx context.Context, lineUserID string) (User, error)
	Create(ctx context.Context, params CreateParams) (User, error)
}

// CreateParams holds the fields for a first-login user insert.
type CreateParams struct {
	Name       string
	Email      *string
	Role       access.Role
	CognitoID  *string
	LineUserID *string
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new users repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const userColumns = `id, name, email, role, cognito_id, line_user_id, created_at`

func (r *Repo) scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.CognitoID, &u.LineUserID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(userNotFoundMessage)
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = access.Role(role)
	return u, nil
}

// GetByID retrieves a user by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.scanUser(row)
}

// GetByCognitoID retrieves a user by their Cognito subject.
func (r *Repo) GetByCognitoID(ctx context.Context, cognitoID string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE cognito_id = $1`, cognitoID)
	return r.scanUser(row)
}

// GetByLineUserID retrieves a user by their LINE subject.
func (r *Repo) GetByLineUserID(ctx context.Context, lineUserID string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE line_user_id = $1`, lineUserID)
	return r.scanUser(row)
}

// Create inserts a user record at first provider login.
func (r *Repo) Create(ctx context.Context, params CreateParams) (User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, role, cognito_id, line_user_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		params.Name, params.Email, string(params.Role), params.CognitoID, params.LineUserID)
	user, err := r.scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
