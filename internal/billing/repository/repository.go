// Package repository provides postgres persistence for invoices, line items
// and payments.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agencycrm_backend/internal/billing/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("invoice not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Invoice struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	ProjectID   *uuid.UUID
	MilestoneID *uuid.UUID
	Title       string
	Status      domain.InvoiceStatus
	TotalCents  int64
	DueDate     *time.Time
	ExternalID  *string
	PaymentURL  *string
	SentAt      *time.Time
	ViewedAt    *time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type LineItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Description string
	Quantity    int
	UnitCents   int64
	AmountCents int64
}

type Payment struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	ClientID    uuid.UUID
	AmountCents int64
	Method      string
	ReceivedAt  time.Time
	CreatedAt   time.Time
}

const invoiceColumns = `id, client_id, project_id, milestone_id, title, status,
	total_cents, due_date, external_id, payment_url, sent_at, viewed_at,
	paid_at, cancelled_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.ClientID, &inv.ProjectID, &inv.MilestoneID, &inv.Title,
		&inv.Status, &inv.TotalCents, &inv.DueDate, &inv.ExternalID,
		&inv.PaymentURL, &inv.SentAt, &inv.ViewedAt, &inv.PaidAt,
		&inv.CancelledAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("scan invoice: %w", err)
	}
	return inv, nil
}

type LineItemParams struct {
	Description string
	Quantity    int
	UnitCents   int64
	AmountCents int64
}

type CreateInvoiceParams struct {
	ClientID    uuid.UUID
	ProjectID   *uuid.UUID
	MilestoneID *uuid.UUID
	Title       string
	TotalCents  int64
	DueDate     *time.Time
	LineItems   []LineItemParams
}

// Create inserts the invoice and its line items in one transaction. The
// unique partial index on milestone_id backs the one-invoice-per-milestone
// guarantee even under concurrent creation.
func (r *Repository) Create(ctx context.Context, params CreateInvoiceParams) (Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Invoice{}, fmt.Errorf("begin create invoice: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO invoices (client_id, project_id, milestone_id, title, total_cents, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+invoiceColumns,
		params.ClientID, params.ProjectID, params.MilestoneID,
		params.Title, params.TotalCents, params.DueDate,
	)
	invoice, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}

	for _, item := range params.LineItems {
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_line_items (invoice_id, description, quantity, unit_cents, amount_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			invoice.ID, item.Description, item.Quantity, item.UnitCents, item.AmountCents,
		); err != nil {
			return Invoice{}, fmt.Errorf("insert line item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, fmt.Errorf("commit create invoice: %w", err)
	}
	return invoice, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// FindByMilestone returns the invoice attributed to a milestone, if any.
func (r *Repository) FindByMilestone(ctx context.Context, milestoneID uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE milestone_id = $1`, milestoneID)
	return scanInvoice(row)
}

func (r *Repository) List(ctx context.Context, clientID *uuid.UUID) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	args := []any{}
	if clientID != nil {
		query += ` WHERE client_id = $1`
		args = append(args, *clientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
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
	return invoices, rows.Err()
}

func (r *Repository) ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_cents, amount_cents
		FROM invoice_line_items WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	items := make([]LineItem, 0)
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.Description, &li.Quantity, &li.UnitCents, &li.AmountCents); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// MarkSent stamps the provider linkage after a successful send.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, externalID, paymentURL *string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE invoices
		SET status = 'sent', sent_at = now(), external_id = $2, payment_url = $3
		WHERE id = $1
		RETURNING `+invoiceColumns, id, externalID, paymentURL)
	return scanInvoice(row)
}

func (r *Repository) MarkViewed(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE invoices SET status = 'viewed', viewed_at = now()
		WHERE id = $1
		RETURNING `+invoiceColumns, id)
	return scanInvoice(row)
}

// MarkPaid flips the status and appends the payment row atomically.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID, amountCents int64, method string) (Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Invoice{}, fmt.Errorf("begin mark paid: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE invoices SET status = 'paid', paid_at = now()
		WHERE id = $1
		RETURNING `+invoiceColumns, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO payments (invoice_id, client_id, amount_cents, method)
		VALUES ($1, $2, $3, $4)`,
		invoice.ID, invoice.ClientID, amountCents, method,
	); err != nil {
		return Invoice{}, fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, fmt.Errorf("commit mark paid: %w", err)
	}
	return invoice, nil
}

func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE invoices SET status = 'cancelled', cancelled_at = now()
		WHERE id = $1
		RETURNING `+invoiceColumns, id)
	return scanInvoice(row)
}

func (r *Repository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, client_id, amount_cents, method, received_at, created_at
		FROM payments WHERE invoice_id = $1
		ORDER BY received_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.ClientID, &p.AmountCents, &p.Method, &p.ReceivedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SweepOverdue flips sent and viewed invoices past their due date to
// overdue, returning how many rows moved.
func (r *Repository) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'overdue'
		WHERE status IN ('sent', 'viewed')
		  AND due_date IS NOT NULL
		  AND due_date < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue invoices: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
