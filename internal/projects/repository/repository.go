// Package repository provides postgres persistence for projects, phases and
// milestones.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agencycrm_backend/internal/projects/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrPhaseNotFound     = errors.New("phase not found")
	ErrMilestoneNotFound = errors.New("milestone not found")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Project struct {
	ID            uuid.UUID
	ClientID      uuid.UUID
	LeadID        *uuid.UUID
	ProposalID    *uuid.UUID
	Name          string
	Description   *string
	Status        domain.ProjectStatus
	StartDate     *time.Time
	TargetEndDate *time.Time
	ActualEndDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Phase struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Milestone struct {
	ID                 uuid.UUID
	ProjectID          uuid.UUID
	PhaseID            uuid.UUID
	Name               string
	Description        *string
	Status             domain.MilestoneStatus
	DueDate            *time.Time
	CompletedAt        *time.Time
	TriggersInvoice    bool
	InvoiceAmountCents *int64
	Position           int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const projectColumns = `id, client_id, lead_id, proposal_id, name, description,
	status, start_date, target_end_date, actual_end_date, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.ClientID, &p.LeadID, &p.ProposalID, &p.Name, &p.Description,
		&p.Status, &p.StartDate, &p.TargetEndDate, &p.ActualEndDate,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, ErrProjectNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("scan project: %w", err)
	}
	return p, nil
}

const milestoneColumns = `id, project_id, phase_id, name, description, status,
	due_date, completed_at, triggers_invoice, invoice_amount_cents, position,
	created_at, updated_at`

func scanMilestone(row pgx.Row) (Milestone, error) {
	var m Milestone
	err := row.Scan(
		&m.ID, &m.ProjectID, &m.PhaseID, &m.Name, &m.Description, &m.Status,
		&m.DueDate, &m.CompletedAt, &m.TriggersInvoice, &m.InvoiceAmountCents,
		&m.Position, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Milestone{}, ErrMilestoneNotFound
	}
	if err != nil {
		return Milestone{}, fmt.Errorf("scan milestone: %w", err)
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Projects

type CreateProjectParams struct {
	ClientID      uuid.UUID
	LeadID        *uuid.UUID
	ProposalID    *uuid.UUID
	Name          string
	Description   *string
	StartDate     *time.Time
	TargetEndDate *time.Time
}

func (r *Repository) CreateProject(ctx context.Context, params CreateProjectParams) (Project, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO projects (client_id, lead_id, proposal_id, name, description, start_date, target_end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+projectColumns,
		params.ClientID, params.LeadID, params.ProposalID, params.Name,
		params.Description, params.StartDate, params.TargetEndDate,
	)
	return scanProject(row)
}

func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

func (r *Repository) ListProjects(ctx context.Context, clientID *uuid.UUID) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	args := []any{}
	if clientID != nil {
		query += ` WHERE client_id = $1`
		args = append(args, *clientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

type UpdateProjectParams struct {
	Name          *string
	Description   *string
	StartDate     *time.Time
	TargetEndDate *time.Time
}

func (r *Repository) UpdateProject(ctx context.Context, id uuid.UUID, params UpdateProjectParams) (Project, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Description != nil {
		add("description", params.Description)
	}
	if params.StartDate != nil {
		add("start_date", params.StartDate)
	}
	if params.TargetEndDate != nil {
		add("target_end_date", params.TargetEndDate)
	}
	if len(sets) == 0 {
		return r.GetProject(ctx, id)
	}

	args = append(args, id)
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE projects SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), projectColumns,
	), args...)
	return scanProject(row)
}

// SetProjectStatus applies a plain status change. The completion cascade
// does not go through here, see CompleteProjectTx.
func (r *Repository) SetProjectStatus(ctx context.Context, id uuid.UUID, status domain.ProjectStatus) (Project, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE projects SET status = $2 WHERE id = $1
		RETURNING `+projectColumns, id, status)
	return scanProject(row)
}

func (r *Repository) DeleteProject(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// CompleteProjectTx runs the completion cascade atomically: every open
// milestone is forced to completed with a timestamp, then the project row
// flips, then the audit callback writes into the same transaction. All of it
// commits or none of it does.
func (r *Repository) CompleteProjectTx(ctx context.Context, id uuid.UUID, audit func(ctx context.Context, tx pgx.Tx, forced int) error) (Project, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Project{}, 0, fmt.Errorf("begin complete project: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE milestones
		SET status = 'completed', completed_at = now()
		WHERE project_id = $1 AND status <> 'completed'`, id)
	if err != nil {
		return Project{}, 0, fmt.Errorf("bulk complete milestones: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE projects
		SET status = 'completed', actual_end_date = now()
		WHERE id = $1
		RETURNING `+projectColumns, id)
	project, err := scanProject(row)
	if err != nil {
		return Project{}, 0, err
	}

	if audit != nil {
		if err := audit(ctx, tx, int(tag.RowsAffected())); err != nil {
			return Project{}, 0, fmt.Errorf("record project completion: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Project{}, 0, fmt.Errorf("commit complete project: %w", err)
	}
	return project, int(tag.RowsAffected()), nil
}

// Progress returns completed and total milestone counts for a project.
func (r *Repository) Progress(ctx context.Context, projectID uuid.UUID) (completed, total int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE status = 'completed'), count(*)
		FROM milestones WHERE project_id = $1`, projectID,
	).Scan(&completed, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("project progress: %w", err)
	}
	return completed, total, nil
}

// ---------------------------------------------------------------------------
// Phases

func (r *Repository) CreatePhase(ctx context.Context, projectID uuid.UUID, name string, position int) (Phase, error) {
	var p Phase
	err := r.pool.QueryRow(ctx, `
		INSERT INTO phases (project_id, name, position)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, name, position, created_at, updated_at`,
		projectID, name, position,
	).Scan(&p.ID, &p.ProjectID, &p.Name, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Phase{}, fmt.Errorf("create phase: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPhases(ctx context.Context, projectID uuid.UUID) ([]Phase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, name, position, created_at, updated_at
		FROM phases WHERE project_id = $1
		ORDER BY position, created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()

	phases := make([]Phase, 0)
	for rows.Next() {
		var p Phase
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Position, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

func (r *Repository) RenamePhase(ctx context.Context, id uuid.UUID, name string) (Phase, error) {
	var p Phase
	err := r.pool.QueryRow(ctx, `
		UPDATE phases SET name = $2 WHERE id = $1
		RETURNING id, project_id, name, position, created_at, updated_at`,
		id, name,
	).Scan(&p.ID, &p.ProjectID, &p.Name, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Phase{}, ErrPhaseNotFound
	}
	if err != nil {
		return Phase{}, fmt.Errorf("rename phase: %w", err)
	}
	return p, nil
}

// DeletePhase cascades to the phase's milestones via the FK.
func (r *Repository) DeletePhase(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM phases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete phase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPhaseNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Milestones

type CreateMilestoneParams struct {
	ProjectID          uuid.UUID
	PhaseID            uuid.UUID
	Name               string
	Description        *string
	DueDate            *time.Time
	TriggersInvoice    bool
	InvoiceAmountCents *int64
	Position           int
}

func (r *Repository) CreateMilestone(ctx context.Context, params CreateMilestoneParams) (Milestone, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO milestones (project_id, phase_id, name, description, due_date,
			triggers_invoice, invoice_amount_cents, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+milestoneColumns,
		params.ProjectID, params.PhaseID, params.Name, params.Description,
		params.DueDate, params.TriggersInvoice, params.InvoiceAmountCents, params.Position,
	)
	return scanMilestone(row)
}

func (r *Repository) GetMilestone(ctx context.Context, id uuid.UUID) (Milestone, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id)
	return scanMilestone(row)
}

func (r *Repository) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]Milestone, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE project_id = $1
		 ORDER BY position, created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	milestones := make([]Milestone, 0)
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

type UpdateMilestoneParams struct {
	Name               *string
	Description        *string
	Status             *domain.MilestoneStatus
	DueDate            *time.Time
	TriggersInvoice    *bool
	InvoiceAmountCents *int64
	Position           *int
	// SetCompletedAt, when non-nil, overwrites completed_at (a nil inner
	// value clears it). The service drives this from the status transition.
	SetCompletedAt **time.Time
}

// UpdateMilestone applies the patch and returns both the previous and the
// updated row. The row is locked for the duration so transition detection
// cannot race a concurrent patch.
func (r *Repository) UpdateMilestone(ctx context.Context, id uuid.UUID, params UpdateMilestoneParams) (previous, updated Milestone, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Milestone{}, Milestone{}, fmt.Errorf("begin update milestone: %w", err)
	}
	defer tx.Rollback(ctx)

	previous, err = scanMilestone(tx.QueryRow(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Milestone{}, Milestone{}, err
	}

	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Description != nil {
		add("description", params.Description)
	}
	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.DueDate != nil {
		add("due_date", params.DueDate)
	}
	if params.TriggersInvoice != nil {
		add("triggers_invoice", *params.TriggersInvoice)
	}
	if params.InvoiceAmountCents != nil {
		add("invoice_amount_cents", *params.InvoiceAmountCents)
	}
	if params.Position != nil {
		add("position", *params.Position)
	}
	if params.SetCompletedAt != nil {
		add("completed_at", *params.SetCompletedAt)
	}

	if len(sets) == 0 {
		return previous, previous, tx.Commit(ctx)
	}

	args = append(args, id)
	updated, err = scanMilestone(tx.QueryRow(ctx, fmt.Sprintf(
		`UPDATE milestones SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), milestoneColumns,
	), args...))
	if err != nil {
		return Milestone{}, Milestone{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Milestone{}, Milestone{}, fmt.Errorf("commit update milestone: %w", err)
	}
	return previous, updated, nil
}

func (r *Repository) DeleteMilestone(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM milestones WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete milestone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMilestoneNotFound
	}
	return nil
}

// CountStartedMilestonesForLead counts milestones that have ever started
// (in_progress or completed) across all projects linked to the lead,
// excluding one milestone. Zero means the excluded milestone is the lead's
// first.
func (r *Repository) CountStartedMilestonesForLead(ctx context.Context, leadID uuid.UUID, exclude uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM milestones m
		JOIN projects p ON p.id = m.project_id
		WHERE p.lead_id = $1
		  AND m.id <> $2
		  AND m.status IN ('in_progress', 'completed')`,
		leadID, exclude,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count started milestones: %w", err)
	}
	return count, nil
}
