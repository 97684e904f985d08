package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one immutable audit record. Rows are append-only; there is no
// update or delete path anywhere in the codebase.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    *uuid.UUID     `json:"actorId,omitempty"`
	ActorType  string         `json:"actorType"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   uuid.UUID      `json:"entityId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AppendParams describes a new audit record.
type AppendParams struct {
	ActorID    *uuid.UUID
	ActorType  string
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Metadata   map[string]any
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appendSQL = `
	INSERT INTO activity_log (actor_id, actor_type, action, entity_type, entity_id, metadata)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at
`

func (r *Repository) Append(ctx context.Context, p AppendParams) (Entry, error) {
	entry, args, err := buildEntry(p)
	if err != nil {
		return Entry{}, err
	}

	err = r.pool.QueryRow(ctx, appendSQL, args...).Scan(&entry.ID, &entry.CreatedAt)
	return entry, err
}

// AppendTx appends inside an existing transaction so the audit record
// commits or rolls back together with the state change it describes.
func (r *Repository) AppendTx(ctx context.Context, tx pgx.Tx, p AppendParams) (Entry, error) {
	entry, args, err := buildEntry(p)
	if err != nil {
		return Entry{}, err
	}

	err = tx.QueryRow(ctx, appendSQL, args...).Scan(&entry.ID, &entry.CreatedAt)
	return entry, err
}

func buildEntry(p AppendParams) (Entry, []any, error) {
	actorType := p.ActorType
	if actorType == "" {
		actorType = "user"
	}

	var metadata []byte
	if p.Metadata != nil {
		encoded, err := json.Marshal(p.Metadata)
		if err != nil {
			return Entry{}, nil, err
		}
		metadata = encoded
	}

	entry := Entry{
		ActorID:    p.ActorID,
		ActorType:  actorType,
		Action:     p.Action,
		EntityType: p.EntityType,
		EntityID:   p.EntityID,
		Metadata:   p.Metadata,
	}

	args := []any{p.ActorID, actorType, p.Action, p.EntityType, p.EntityID, metadata}
	return entry, args, nil
}

// ListByEntity returns the audit trail for one entity, newest first.
func (r *Repository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, actor_type, action, entity_type, entity_id, metadata, created_at
		FROM activity_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		var metadata []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorType, &entry.Action,
			&entry.EntityType, &entry.EntityID, &metadata, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
