// Package repository provides PostgreSQL persistence for cases and their
// message threads.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"handyman_portal_backend/internal/cases/domain"
	"handyman_portal_backend/platform/apperr"
)

const (
	caseNotFoundMessage = "case not found"
	caseConflictMessage = "case was modified concurrently"
)

// Case is a persisted work order. Handyman and client names are joined in
// for response shaping; the IDs remain the source of truth.
type Case struct {
	ID           uuid.UUID
	Title        string
	Description  string
	Address      *string
	ScheduledAt  *time.Time
	Status       domain.Status
	HandymanID   *uuid.UUID
	HandymanName *string
	ClientID     *uuid.UUID
	ClientName   *string
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one entry in a case's append-only message thread.
type Message struct {
	ID         uuid.UUID
	CaseID     uuid.UUID
	SenderID   uuid.UUID
	SenderName string
	Content    string
	CreatedAt  time.Time
}

// CreateParams holds the fields for a new case insert.
type CreateParams struct {
	Title       string
	Description string
	Address     *string
	ScheduledAt *time.Time
	Status      domain.Status
	HandymanID  *uuid.UUID
	ClientID    *uuid.UUID
}

// UpdateStatusParams describes a guarded status write. The write only
// applies when the row still carries ExpectedStatus; HandymanID, when set,
// replaces the assignment.
type UpdateStatusParams struct {
	ID             uuid.UUID
	ExpectedStatus domain.Status
	NewStatus      domain.Status
	CompletedAt    *time.Time
	HandymanID     *uuid.UUID
}

// ListFilter narrows the case list. Nil fields are unconstrained.
type ListFilter struct {
	Status     *domain.Status
	HandymanID *uuid.UUID
	ClientID   *uuid.UUID
}

// DashboardStats aggregates headquarters overview counts.
type DashboardStats struct {
	Pending        int
	Assigned       int
	InProgress     int
	CompletedToday int
	TotalActive    int
}

// Repository defines persistence operations for cases.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Case, error)
	List(ctx context.Context, filter ListFilter) ([]Case, error)
	Create(ctx context.Context, params CreateParams) (Case, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (Case, error)
	ListMessages(ctx context.Context, caseID uuid.UUID) ([]Message, error)
	CreateMessage(ctx context.Context, caseID, senderID uuid.UUID, content string) (Message, error)
	Stats(ctx context.Context) (DashboardStats, error)
	RecentCases(ctx context.Context, limit int) ([]Case, error)
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new cases repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const caseSelect = `
	SELECT c.id, c.title, c.description, c.address, c.scheduled_at, c.status,
	       c.handyman_id, h.name, c.client_id, cl.name,
	       c.completed_at, c.created_at, c.updated_at
	FROM cases c
	LEFT JOIN users h ON h.id = c.handyman_id
	LEFT JOIN users cl ON cl.id = c.client_id`

func scanCase(row pgx.Row) (Case, error) {
	var cs Case
	var status string
	err := row.Scan(
		&cs.ID, &cs.Title, &cs.Description, &cs.Address, &cs.ScheduledAt, &status,
		&cs.HandymanID, &cs.HandymanName, &cs.ClientID, &cs.ClientName,
		&cs.CompletedAt, &cs.CreatedAt, &cs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, apperr.NotFound(caseNotFoundMessage)
		}
		return Case{}, fmt.Errorf("scan case: %w", err)
	}
	cs.Status = domain.Status(status)
	return cs, nil
}

func scanCases(rows pgx.Rows) ([]Case, error) {
	defer rows.Close()
	cases := make([]Case, 0)
	for rows.Next() {
		cs, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return cases, nil
}

// GetByID retrieves a case with handyman and client names joined in.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Case, error) {
	row := r.pool.QueryRow(ctx, caseSelect+` WHERE c.id = $1`, id)
	return scanCase(row)
}

// List retrieves cases newest first, narrowed by the filter.
func (r *Repo) List(ctx context.Context, filter ListFilter) ([]Case, error) {
	query := caseSelect + ` WHERE 1=1`
	args := []any{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND c.status = $%d", len(args))
	}
	if filter.HandymanID != nil {
		args = append(args, *filter.HandymanID)
		query += fmt.Sprintf(" AND c.handyman_id = $%d", len(args))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		query += fmt.Sprintf(" AND c.client_id = $%d", len(args))
	}
	query += " ORDER BY c.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return scanCases(rows)
}

// Create inserts a new case and returns it with names joined.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Case, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cases (title, description, address, scheduled_at, status, handyman_id, client_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		params.Title, params.Description, params.Address, params.ScheduledAt,
		string(params.Status), params.HandymanID, params.ClientID,
	).Scan(&id)
	if err != nil {
		return Case{}, fmt.Errorf("create case: %w", err)
	}
	return r.GetByID(ctx, id)
}

// UpdateStatus applies a guarded status transition. The UPDATE only matches
// when the row still holds ExpectedStatus; a concurrent transition that won
// the race leaves zero rows and surfaces as a conflict.
func (r *Repo) UpdateStatus(ctx context.Context, params UpdateStatusParams) (Case, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cases
		 SET status = $3,
		     completed_at = $4,
		     handyman_id = COALESCE($5, handyman_id),
		     updated_at = now()
		 WHERE id = $1 AND status = $2`,
		params.ID, string(params.ExpectedStatus), string(params.NewStatus),
		params.CompletedAt, params.HandymanID,
	)
	if err != nil {
		return Case{}, fmt.Errorf("update case status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Case{}, apperr.Conflict(caseConflictMessage)
	}
	return r.GetByID(ctx, params.ID)
}

// ListMessages returns a case's message thread oldest first.
func (r *Repo) ListMessages(ctx context.Context, caseID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.case_id, m.sender_id, u.name, m.content, m.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.case_id = $1
		 ORDER BY m.created_at ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.CaseID, &m.SenderID, &m.SenderName, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// CreateMessage appends a message to a case thread.
func (r *Repo) CreateMessage(ctx context.Context, caseID, senderID uuid.UUID, content string) (Message, error) {
	row := r.pool.QueryRow(ctx,
		`WITH inserted AS (
		     INSERT INTO messages (case_id, sender_id, content)
		     VALUES ($1, $2, $3)
		     RETURNING id, case_id, sender_id, content, created_at
		 )
		 SELECT i.id, i.case_id, i.sender_id, u.name, i.content, i.created_at
		 FROM inserted i
		 JOIN users u ON u.id = i.sender_id`,
		caseID, senderID, content)

	var m Message
	if err := row.Scan(&m.ID, &m.CaseID, &m.SenderID, &m.SenderName, &m.Content, &m.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// Stats aggregates the headquarters dashboard counts in one round trip.
func (r *Repo) Stats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	err := r.pool.QueryRow(ctx,
		`SELECT
		     count(*) FILTER (WHERE status = 'PENDING'),
		     count(*) FILTER (WHERE status = 'ASSIGNED'),
		     count(*) FILTER (WHERE status = 'IN_PROGRESS'),
		     count(*) FILTER (WHERE status = 'COMPLETED' AND completed_at >= date_trunc('day', now())),
		     count(*) FILTER (WHERE status <> 'CANCELLED')
		 FROM cases`,
	).Scan(&stats.Pending, &stats.Assigned, &stats.InProgress, &stats.CompletedToday, &stats.TotalActive)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}

// RecentCases returns the most recent non-cancelled cases.
func (r *Repo) RecentCases(ctx context.Context, limit int) ([]Case, error) {
	rows, err := r.pool.Query(ctx,
		caseSelect+` WHERE c.status <> 'CANCELLED' ORDER BY c.created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent cases: %w", err)
	}
	return scanCases(rows)
}
