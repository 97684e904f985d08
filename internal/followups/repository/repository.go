// Package repository provides postgres persistence for the follow-up queue.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("follow-up not found")

// Status values for a follow-up. Pending is the only live state; sent and
// dismissed are terminal.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDismissed = "dismissed"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type FollowUp struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	RemindAt      time.Time
	TriggerReason string
	DraftSubject  *string
	DraftBody     *string
	Status        string
	SentAt        *time.Time
	DismissedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const followUpColumns = `id, lead_id, remind_at, trigger_reason, draft_subject,
	draft_body, status, sent_at, dismissed_at, created_at, updated_at`

func scanFollowUp(row pgx.Row) (FollowUp, error) {
	var f FollowUp
	err := row.Scan(
		&f.ID, &f.LeadID, &f.RemindAt, &f.TriggerReason, &f.DraftSubject,
		&f.DraftBody, &f.Status, &f.SentAt, &f.DismissedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return FollowUp{}, ErrNotFound
	}
	if err != nil {
		return FollowUp{}, fmt.Errorf("scan follow-up: %w", err)
	}
	return f, nil
}

func (r *Repository) Create(ctx context.Context, leadID uuid.UUID, remindAt time.Time, triggerReason string) (FollowUp, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO follow_ups (lead_id, remind_at, trigger_reason)
		VALUES ($1, $2, $3)
		RETURNING `+followUpColumns,
		leadID, remindAt, triggerReason,
	)
	return scanFollowUp(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (FollowUp, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+followUpColumns+` FROM follow_ups WHERE id = $1`, id)
	return scanFollowUp(row)
}

// ListPending returns the active queue ordered by reminder time.
func (r *Repository) ListPending(ctx context.Context) ([]FollowUp, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+followUpColumns+` FROM follow_ups
		WHERE status = 'pending'
		ORDER BY remind_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending follow-ups: %w", err)
	}
	defer rows.Close()

	followUps := make([]FollowUp, 0)
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, err
		}
		followUps = append(followUps, f)
	}
	return followUps, rows.Err()
}

// ListDue returns pending follow-ups whose reminder fell inside the window.
// The dispatcher passes the previous scan time as from, so each follow-up is
// picked up exactly once.
func (r *Repository) ListDue(ctx context.Context, from, to time.Time) ([]FollowUp, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+followUpColumns+` FROM follow_ups
		WHERE status = 'pending' AND remind_at > $1 AND remind_at <= $2
		ORDER BY remind_at`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("list due follow-ups: %w", err)
	}
	defer rows.Close()

	followUps := make([]FollowUp, 0)
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, err
		}
		followUps = append(followUps, f)
	}
	return followUps, rows.Err()
}

// HasPendingForLead backs the stale-lead sweep's dedup: a lead with a
// pending follow-up does not get another one.
func (r *Repository) HasPendingForLead(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM follow_ups WHERE lead_id = $1 AND status = 'pending'
		)`, leadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending follow-up: %w", err)
	}
	return exists, nil
}

// AttachDraft stores the drafted subject and body. Only pending rows take a
// draft; a row that raced to terminal keeps whatever it had.
func (r *Repository) AttachDraft(ctx context.Context, id uuid.UUID, subject, body string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE follow_ups SET draft_subject = $2, draft_body = $3
		WHERE id = $1 AND status = 'pending'`,
		id, subject, body)
	if err != nil {
		return fmt.Errorf("attach draft: %w", err)
	}
	return nil
}

// ClaimTransition atomically moves a pending follow-up to a terminal state.
// The claimed flag is false when the row was no longer pending, which lets
// double submissions resolve to a no-op.
func (r *Repository) ClaimTransition(ctx context.Context, id uuid.UUID, target string) (FollowUp, bool, error) {
	stampColumn := "sent_at"
	if target == StatusDismissed {
		stampColumn = "dismissed_at"
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE follow_ups
		SET status = $2, %s = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s`, stampColumn, followUpColumns),
		id, target)
	claimed, err := scanFollowUp(row)
	if err == nil {
		return claimed, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return FollowUp{}, false, err
	}

	// Either the id does not exist or the row is already terminal.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return FollowUp{}, false, err
	}
	return current, false, nil
}
