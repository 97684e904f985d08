package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMemberNotFound = errors.New("team member not found")

// TeamMember is an internal user of the CRM.
type TeamMember struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Directory reads the internal team member roster. The portal guard uses it
// to ensure a client sharing an email with a team member never gets portal
// access.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// IsTeamEmail reports whether the email belongs to an internal team member.
func (d *Directory) IsTeamEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM team_members WHERE lower(email) = lower($1))
	`, strings.TrimSpace(email)).Scan(&exists)
	return exists, err
}

// GetByID returns a single team member.
func (d *Directory) GetByID(ctx context.Context, id uuid.UUID) (TeamMember, error) {
	var m TeamMember
	err := d.pool.QueryRow(ctx, `
		SELECT id, email, name, role, created_at FROM team_members WHERE id = $1
	`, id).Scan(&m.ID, &m.Email, &m.Name, &m.Role, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TeamMember{}, ErrMemberNotFound
	}
	return m, err
}

// List returns all team members ordered by name.
func (d *Directory) List(ctx context.Context) ([]TeamMember, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, email, name, role, created_at FROM team_members ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]TeamMember, 0)
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.Email, &m.Name, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
