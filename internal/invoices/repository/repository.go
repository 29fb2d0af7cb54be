// Package repository provides PostgreSQL persistence for invoices and their
// line-item snapshots.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"handyman_portal_backend/internal/invoices/domain"
	"handyman_portal_backend/platform/apperr"
)

const (
	invoiceNotFoundMessage = "invoice not found"
	invoiceConflictMessage = "invoice was modified concurrently"
)

// Invoice is a persisted invoice or estimate with its line items. CaseTitle
// and IssuerName are joined in for response shaping.
type Invoice struct {
	ID          uuid.UUID
	CaseID      uuid.UUID
	CaseTitle   string
	IssuedByID  uuid.UUID
	IssuerName  string
	Type        domain.Type
	Status      domain.Status
	TotalAmount int64
	Note        *string
	Items       []Item
	IssuedAt    *time.Time
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Item is one billed line, snapshotted at invoice creation.
type Item struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	Name      string
	Quantity  int
	UnitPrice int64
	Amount    int64
	Position  int
}

// ItemParams holds one line for an invoice insert.
type ItemParams struct {
	Name      string
	Quantity  int
	UnitPrice int64
	Amount    int64
}

// CreateParams holds the fields for a new invoice insert. Items are written
// in the same transaction as the invoice row.
type CreateParams struct {
	CaseID      uuid.UUID
	IssuedByID  uuid.UUID
	Type        domain.Type
	Note        *string
	TotalAmount int64
	Items       []ItemParams
}

// AdvanceParams describes a guarded status write.
type AdvanceParams struct {
	ID             uuid.UUID
	ExpectedStatus domain.Status
	NewStatus      domain.Status
	StampIssuedAt  bool
}

// ListFilter narrows the invoice list. Nil fields are unconstrained.
type ListFilter struct {
	CaseID *uuid.UUID
}

// Repository defines persistence operations for invoices.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)
	Create(ctx context.Context, params CreateParams) (Invoice, error)
	Advance(ctx context.Context, params AdvanceParams) (Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (bool, error)
	ListByCaseIDs(ctx context.Context, caseIDs []uuid.UUID) ([]Invoice, error)
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new invoices repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const invoiceSelect = `
	SELECT i.id, i.case_id, c.title, i.issued_by_id, u.name, i.type, i.status,
	       i.total_amount, i.note, i.issued_at, i.paid_at, i.created_at, i.updated_at
	FROM invoices i
	JOIN cases c ON c.id = i.case_id
	JOIN users u ON u.id = i.issued_by_id`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var invType, status string
	err := row.Scan(
		&inv.ID, &inv.CaseID, &inv.CaseTitle, &inv.IssuedByID, &inv.IssuerName,
		&invType, &status, &inv.TotalAmount, &inv.Note,
		&inv.IssuedAt, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, apperr.NotFound(invoiceNotFoundMessage)
		}
		return Invoice{}, fmt.Errorf("scan invoice: %w", err)
	}
	inv.Type = domain.Type(invType)
	inv.Status = domain.Status(status)
	return inv, nil
}

// GetByID retrieves an invoice with its items.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, invoiceSelect+` WHERE i.id = $1`, id))
	if err != nil {
		return Invoice{}, err
	}
	if err := r.attachItems(ctx, []*Invoice{&inv}); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// List retrieves invoices newest first, with items attached.
func (r *Repo) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	query := invoiceSelect
	args := []any{}
	if filter.CaseID != nil {
		args = append(args, *filter.CaseID)
		query += " WHERE i.case_id = $1"
	}
	query += " ORDER BY i.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return r.collectWithItems(ctx, rows)
}

// ListByCaseIDs retrieves invoices for a set of cases, without items. Used
// for portal case summaries.
func (r *Repo) ListByCaseIDs(ctx context.Context, caseIDs []uuid.UUID) ([]Invoice, error) {
	if len(caseIDs) == 0 {
		return []Invoice{}, nil
	}
	rows, err := r.pool.Query(ctx,
		invoiceSelect+` WHERE i.case_id = ANY($1) ORDER BY i.created_at DESC`, caseIDs)
	if err != nil {
		return nil, fmt.Errorf("list invoices by case: %w", err)
	}
	defer rows.Close()

	invoices := make([]Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return invoices, nil
}

// Create inserts an invoice and its item snapshot in one transaction.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Invoice{}, fmt.Errorf("begin create invoice: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO invoices (case_id, issued_by_id, type, status, total_amount, note)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		params.CaseID, params.IssuedByID, string(params.Type), string(domain.StatusDraft),
		params.TotalAmount, params.Note,
	).Scan(&id)
	if err != nil {
		return Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}

	for pos, item := range params.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO invoice_items (invoice_id, name, quantity, unit_price, amount, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, item.Name, item.Quantity, item.UnitPrice, item.Amount, pos)
		if err != nil {
			return Invoice{}, fmt.Errorf("insert invoice item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, fmt.Errorf("commit create invoice: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Advance applies a guarded status transition. The write only matches when
// the row still holds ExpectedStatus.
func (r *Repo) Advance(ctx context.Context, params AdvanceParams) (Invoice, error) {
	query := `UPDATE invoices SET status = $3, updated_at = now()`
	if params.StampIssuedAt {
		query += `, issued_at = now()`
	}
	query += ` WHERE id = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, query,
		params.ID, string(params.ExpectedStatus), string(params.NewStatus))
	if err != nil {
		return Invoice{}, fmt.Errorf("advance invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Invoice{}, apperr.Conflict(invoiceConflictMessage)
	}
	return r.GetByID(ctx, params.ID)
}

// MarkPaid applies the absorbing PAID write. It reports whether this call
// moved the invoice to PAID; an invoice that is already PAID matches zero
// rows and keeps its original paid_at, making concurrent applications from
// the webhook and the manual path collapse into one. Only DRAFT and SENT
// invoices are payable: a late webhook for a cancelled invoice must not
// resurrect it.
func (r *Repo) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices
		 SET status = 'PAID', paid_at = COALESCE(paid_at, now()), updated_at = now()
		 WHERE id = $1 AND status IN ('DRAFT', 'SENT')`, id)
	if err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repo) collectWithItems(ctx context.Context, rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()

	invoices := make([]Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}

	refs := make([]*Invoice, len(invoices))
	for i := range invoices {
		refs[i] = &invoices[i]
	}
	if err := r.attachItems(ctx, refs); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *Repo) attachItems(ctx context.Context, invoices []*Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(invoices))
	byID := make(map[uuid.UUID]*Invoice, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		byID[inv.ID] = inv
		inv.Items = make([]Item, 0)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, invoice_id, name, quantity, unit_price, amount, position
		 FROM invoice_items
		 WHERE invoice_id = ANY($1)
		 ORDER BY position ASC`, ids)
	if err != nil {
		return fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Name, &item.Quantity,
			&item.UnitPrice, &item.Amount, &item.Position); err != nil {
			return fmt.Errorf("scan invoice item: %w", err)
		}
		if inv, ok := byID[item.InvoiceID]; ok {
			inv.Items = append(inv.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate invoice items: %w", err)
	}
	return nil
}
