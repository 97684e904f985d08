// Package repository provides postgres persistence for clients and the
// portal invite log.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("client not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Client mirrors the clients table. Portal access state is derived from the
// three portal_* fields at read time, never stored.
type Client struct {
	ID                  uuid.UUID
	Name                string
	Email               string
	Phone               *string
	Company             *string
	LeadID              *uuid.UUID
	PortalUserID        *string
	PortalInvitedAt     *time.Time
	PortalInviteCount   int
	PortalFirstLoginAt  *time.Time
	PortalAccessRevoked bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const clientColumns = `id, name, email, phone, company, lead_id,
	portal_user_id, portal_invited_at, portal_invite_count,
	portal_first_login_at, portal_access_revoked, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.LeadID,
		&c.PortalUserID, &c.PortalInvitedAt, &c.PortalInviteCount,
		&c.PortalFirstLoginAt, &c.PortalAccessRevoked, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("scan client: %w", err)
	}
	return c, nil
}

type CreateClientParams struct {
	Name    string
	Email   string
	Phone   *string
	Company *string
	LeadID  *uuid.UUID
}

func (r *Repository) Create(ctx context.Context, params CreateClientParams) (Client, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO clients (name, email, phone, company, lead_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+clientColumns,
		params.Name, params.Email, params.Phone, params.Company, params.LeadID,
	)
	return scanClient(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

// FindByEmail looks a client up by case-insensitive email. Conversion dedup
// depends on this matching the unique index on lower(email).
func (r *Repository) FindByEmail(ctx context.Context, email string) (Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE lower(email) = lower($1)`, email)
	return scanClient(row)
}

func (r *Repository) List(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

type UpdateClientParams struct {
	Name    *string
	Email   *string
	Phone   *string
	Company *string
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateClientParams) (Client, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Email != nil {
		add("email", *params.Email)
	}
	if params.Phone != nil {
		add("phone", params.Phone)
	}
	if params.Company != nil {
		add("company", params.Company)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE clients SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), clientColumns,
	), args...)
	return scanClient(row)
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPortalUserID stores the external identity provider's user id after
// provisioning.
func (r *Repository) SetPortalUserID(ctx context.Context, id uuid.UUID, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE clients SET portal_user_id = $2 WHERE id = $1`, id, userID)
	if err != nil {
		return fmt.Errorf("set portal user id: %w", err)
	}
	return nil
}

// CountInvitesSince counts invite log rows inside the rolling rate-limit
// window.
func (r *Repository) CountInvitesSince(ctx context.Context, clientID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM portal_invites WHERE client_id = $1 AND sent_at >= $2`,
		clientID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count portal invites: %w", err)
	}
	return count, nil
}

// RecordInvite appends to the invite log and updates the client's invite
// fields in one transaction. Sending an invite always clears the revoked
// flag.
func (r *Repository) RecordInvite(ctx context.Context, clientID uuid.UUID) (Client, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Client{}, fmt.Errorf("begin record invite: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO portal_invites (client_id) VALUES ($1)`, clientID); err != nil {
		return Client{}, fmt.Errorf("append portal invite: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE clients
		SET portal_invited_at = now(),
		    portal_invite_count = portal_invite_count + 1,
		    portal_access_revoked = false
		WHERE id = $1
		RETURNING `+clientColumns, clientID)
	client, err := scanClient(row)
	if err != nil {
		return Client{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Client{}, fmt.Errorf("commit record invite: %w", err)
	}
	return client, nil
}

func (r *Repository) SetRevoked(ctx context.Context, id uuid.UUID, revoked bool) (Client, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE clients SET portal_access_revoked = $2
		WHERE id = $1
		RETURNING `+clientColumns, id, revoked)
	return scanClient(row)
}

// MarkFirstLogin stamps the first login once; later logins are no-ops.
func (r *Repository) MarkFirstLogin(ctx context.Context, id uuid.UUID) (Client, error) {
	_, err := r.pool.Exec(ctx, `
		UPDATE clients SET portal_first_login_at = now()
		WHERE id = $1 AND portal_first_login_at IS NULL`, id)
	if err != nil {
		return Client{}, fmt.Errorf("mark first login: %w", err)
	}
	return r.GetByID(ctx, id)
}
