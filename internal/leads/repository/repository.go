package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agencycrm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                     uuid.UUID
	FirstName              string
	LastName               string
	Email                  string
	Phone                  *string
	Company                *string
	Source                 *string
	Score                  *string
	PipelineStage          domain.Stage
	PipelineStageChangedAt time.Time
	AssignedTo             *uuid.UUID
	ConvertedToClientID    *uuid.UUID
	Notes                  *string
	AIAnalysis             []byte
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// FullName joins the contact name fields for display and email salutation.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

const leadColumns = `id, first_name, last_name, email, phone, company, source, score,
	pipeline_stage, pipeline_stage_changed_at, assigned_to, converted_to_client_id,
	notes, ai_analysis, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(&lead.ID, &lead.FirstName, &lead.LastName, &lead.Email, &lead.Phone,
		&lead.Company, &lead.Source, &lead.Score, &lead.PipelineStage, &lead.PipelineStageChangedAt,
		&lead.AssignedTo, &lead.ConvertedToClientID, &lead.Notes, &lead.AIAnalysis,
		&lead.CreatedAt, &lead.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type CreateLeadParams struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      *string
	Company    *string
	Source     *string
	AssignedTo *uuid.UUID
	Notes      *string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (first_name, last_name, email, phone, company, source, assigned_to, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+leadColumns,
		params.FirstName, params.LastName, strings.TrimSpace(params.Email),
		params.Phone, params.Company, params.Source, params.AssignedTo, params.Notes)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// FindByEmail looks a lead up by normalized email. Returns ErrNotFound when
// no lead matches.
func (r *Repository) FindByEmail(ctx context.Context, email string) (Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE lower(email) = lower($1) ORDER BY created_at ASC LIMIT 1`,
		strings.TrimSpace(email))
	return scanLead(row)
}

// List returns leads, optionally filtered by pipeline stage.
func (r *Repository) List(ctx context.Context, stage *domain.Stage) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []any{}
	if stage != nil {
		query += ` WHERE pipeline_stage = $1`
		args = append(args, *stage)
	}
	query += ` ORDER BY pipeline_stage_changed_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

type UpdateLeadParams struct {
	FirstName     *string
	LastName      *string
	Email         *string
	Phone         *string
	Company       *string
	Source        *string
	Score         *string
	Notes         *string
	AssignedTo    *uuid.UUID
	AssignedToSet bool
	AIAnalysis    []byte
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	sets := make([]string, 0, 10)
	args := []any{id}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.FirstName != nil {
		appendSet("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		appendSet("last_name", *params.LastName)
	}
	if params.Email != nil {
		appendSet("email", strings.TrimSpace(*params.Email))
	}
	if params.Phone != nil {
		appendSet("phone", *params.Phone)
	}
	if params.Company != nil {
		appendSet("company", *params.Company)
	}
	if params.Source != nil {
		appendSet("source", *params.Source)
	}
	if params.Score != nil {
		appendSet("score", *params.Score)
	}
	if params.Notes != nil {
		appendSet("notes", *params.Notes)
	}
	if params.AssignedToSet {
		appendSet("assigned_to", params.AssignedTo)
	}
	if params.AIAnalysis != nil {
		appendSet("ai_analysis", params.AIAnalysis)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE leads SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+leadColumns,
		args...)
	return scanLead(row)
}

// SetStage moves the lead to a new pipeline stage and stamps the change time.
func (r *Repository) SetStage(ctx context.Context, id uuid.UUID, stage domain.Stage) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET pipeline_stage = $2, pipeline_stage_changed_at = now()
		WHERE id = $1
		RETURNING `+leadColumns, id, stage)
	return scanLead(row)
}

// AdvanceStage performs a guarded automatic advance in a single statement.
// The WHERE clause re-checks the current stage rank so two concurrent
// cascades cannot move the lead backward; a no-advance returns the current
// row unchanged with claimed=false.
func (r *Repository) AdvanceStage(ctx context.Context, id uuid.UUID, target domain.Stage) (Lead, bool, error) {
	// Re-fetch immediately before mutating; never trust a stage passed in
	// from a prior page load.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return Lead{}, false, err
	}

	if !domain.CanAutoAdvance(current.PipelineStage, target) {
		return current, false, nil
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET pipeline_stage = $2, pipeline_stage_changed_at = now()
		WHERE id = $1 AND pipeline_stage = $3
		RETURNING `+leadColumns, id, target, current.PipelineStage)
	lead, err := scanLead(row)
	if errors.Is(err, ErrNotFound) {
		// Lost the race to a concurrent transition; surface current state.
		refetched, ferr := r.GetByID(ctx, id)
		return refetched, false, ferr
	}
	return lead, err == nil, err
}

// ClaimConversion links the lead to a client exactly once. The conditional
// WHERE makes concurrent conversion calls race-safe: only one caller claims,
// the rest observe claimed=false and read the existing link.
func (r *Repository) ClaimConversion(ctx context.Context, id uuid.UUID, clientID uuid.UUID) (Lead, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET converted_to_client_id = $2,
			pipeline_stage = $3,
			pipeline_stage_changed_at = now()
		WHERE id = $1 AND converted_to_client_id IS NULL
		RETURNING `+leadColumns, id, clientID, domain.StageContractSigned)
	lead, err := scanLead(row)
	if errors.Is(err, ErrNotFound) {
		existing, ferr := r.GetByID(ctx, id)
		if ferr != nil {
			return Lead{}, false, ferr
		}
		return existing, false, nil
	}
	return lead, err == nil, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStale returns unconverted leads whose stage has not changed within the
// threshold and that have no pending follow-up yet. Used by the scheduler's
// stale-lead sweep.
func (r *Repository) ListStale(ctx context.Context, threshold time.Duration, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE l.converted_to_client_id IS NULL
		  AND l.pipeline_stage_changed_at < now() - $1::interval
		  AND NOT EXISTS (
			SELECT 1 FROM follow_ups f WHERE f.lead_id = l.id AND f.status = 'pending'
		  )
		ORDER BY l.pipeline_stage_changed_at ASC
		LIMIT $2
	`, threshold.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}
