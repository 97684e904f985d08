// Package activity provides the append-only audit log every workflow
// transition writes to. Recording is log-and-continue: a failed append never
// blocks or rolls back the state change it describes, except when the caller
// opts into the transactional variant.
package activity

import (
	"context"

	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Writer is the interface workflow services depend on.
type Writer interface {
	Record(ctx context.Context, p AppendParams)
	RecordTx(ctx context.Context, tx pgx.Tx, p AppendParams) error
}

type Service struct {
	repo *Repository
	log  *logger.Logger
}

func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Record appends an audit entry. Failures are logged and swallowed.
func (s *Service) Record(ctx context.Context, p AppendParams) {
	if _, err := s.repo.Append(ctx, p); err != nil {
		s.log.Error("activity append failed",
			"action", p.Action, "entityType", p.EntityType, "entityId", p.EntityID, "error", err)
	}
}

// RecordTx appends inside the caller's transaction. The error propagates so
// the caller's cascade rolls back as a unit.
func (s *Service) RecordTx(ctx context.Context, tx pgx.Tx, p AppendParams) error {
	_, err := s.repo.AppendTx(ctx, tx, p)
	return err
}

// ListByEntity returns the audit trail for one entity.
func (s *Service) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]Entry, error) {
	return s.repo.ListByEntity(ctx, entityType, entityID, limit)
}

var _ Writer = (*Service)(nil)
