// Package repository provides postgres persistence for proposals.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agencycrm_backend/internal/proposals/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("proposal not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Proposal struct {
	ID          uuid.UUID
	LeadID      *uuid.UUID
	ClientID    *uuid.UUID
	Title       string
	Content     *string
	AmountCents int64
	Status      domain.ProposalStatus
	SentAt      *time.Time
	ViewedAt    *time.Time
	AcceptedAt  *time.Time
	DeclinedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const proposalColumns = `id, lead_id, client_id, title, content, amount_cents,
	status, sent_at, viewed_at, accepted_at, declined_at, created_at, updated_at`

func scanProposal(row pgx.Row) (Proposal, error) {
	var p Proposal
	err := row.Scan(
		&p.ID, &p.LeadID, &p.ClientID, &p.Title, &p.Content, &p.AmountCents,
		&p.Status, &p.SentAt, &p.ViewedAt, &p.AcceptedAt, &p.DeclinedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("scan proposal: %w", err)
	}
	return p, nil
}

type CreateProposalParams struct {
	LeadID      *uuid.UUID
	ClientID    *uuid.UUID
	Title       string
	Content     *string
	AmountCents int64
}

func (r *Repository) Create(ctx context.Context, params CreateProposalParams) (Proposal, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO proposals (lead_id, client_id, title, content, amount_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+proposalColumns,
		params.LeadID, params.ClientID, params.Title, params.Content, params.AmountCents,
	)
	return scanProposal(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Proposal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	return scanProposal(row)
}

func (r *Repository) List(ctx context.Context, leadID, clientID *uuid.UUID) ([]Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals`
	conds := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if leadID != nil {
		args = append(args, *leadID)
		conds = append(conds, fmt.Sprintf("lead_id = $%d", len(args)))
	}
	if clientID != nil {
		args = append(args, *clientID)
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	proposals := make([]Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

type UpdateProposalParams struct {
	Title       *string
	Content     *string
	AmountCents *int64
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateProposalParams) (Proposal, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if params.Title != nil {
		add("title", *params.Title)
	}
	if params.Content != nil {
		add("content", params.Content)
	}
	if params.AmountCents != nil {
		add("amount_cents", *params.AmountCents)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE proposals SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), proposalColumns,
	), args...)
	return scanProposal(row)
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition flips the status and stamps the matching timestamp only if it
// is still unset, keeping lifecycle timestamps monotonic.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, status domain.ProposalStatus, stampColumn string) (Proposal, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE proposals
		SET status = $2, %s = COALESCE(%s, now())
		WHERE id = $1
		RETURNING %s`, stampColumn, stampColumn, proposalColumns),
		id, status)
	return scanProposal(row)
}
