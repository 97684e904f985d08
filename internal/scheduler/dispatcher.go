package scheduler

import (
	"context"
	"time"

	"agencycrm_backend/internal/followups/repository"
	"agencycrm_backend/platform/config"
	"agencycrm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	dueScanInterval = time.Minute
	sweepInterval   = time.Hour
)

// Dispatcher turns wall-clock time into queued work. It scans for follow-ups
// whose reminder just came due and enqueues the periodic sweeps.
type Dispatcher struct {
	client    *Client
	followUps *repository.Repository
	log       *logger.Logger
}

func NewDispatcher(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*Dispatcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		client:    client,
		followUps: repository.New(pool),
		log:       log,
	}, nil
}

func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	return d.client.Close()
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	dueTicker := time.NewTicker(dueScanInterval)
	defer dueTicker.Stop()
	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()

	// Catch up on anything that came due while the dispatcher was down.
	lastScan := time.Now().Add(-24 * time.Hour)
	d.enqueueSweeps(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-dueTicker.C:
			lastScan = d.dispatchDue(ctx, lastScan, now)
		case <-sweepTicker.C:
			d.enqueueSweeps(ctx)
		}
	}
}

func (d *Dispatcher) dispatchDue(ctx context.Context, from, to time.Time) time.Time {
	due, err := d.followUps.ListDue(ctx, from, to)
	if err != nil {
		d.log.Warn("due follow-up scan failed", "error", err)
		return from
	}

	for _, followUp := range due {
		err := d.client.EnqueueFollowUpDue(ctx, FollowUpDuePayload{
			FollowUpID: followUp.ID.String(),
			LeadID:     followUp.LeadID.String(),
		})
		if err != nil {
			d.log.Warn("enqueue follow-up due failed", "followUpId", followUp.ID, "error", err)
			// Shrink the window back so the next scan retries this one.
			return from
		}
	}
	return to
}

func (d *Dispatcher) enqueueSweeps(ctx context.Context) {
	if err := d.client.EnqueueStaleLeadCheck(ctx); err != nil {
		d.log.Warn("enqueue stale lead check failed", "error", err)
	}
	if err := d.client.EnqueueInvoiceOverdueSweep(ctx); err != nil {
		d.log.Warn("enqueue overdue sweep failed", "error", err)
	}
}
