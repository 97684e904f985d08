package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"agencycrm_backend/internal/events"
	followuptransport "agencycrm_backend/internal/followups/transport"
	leadrepo "agencycrm_backend/internal/leads/repository"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/config"
	"agencycrm_backend/platform/logger"
)

const staleLeadBatchSize = 100

// FollowUpScheduler enqueues follow-ups for stale leads.
type FollowUpScheduler interface {
	Create(ctx context.Context, req followuptransport.CreateFollowUpRequest) (followuptransport.FollowUpResponse, error)
}

// StaleLeadSource lists leads idle in their pipeline stage.
type StaleLeadSource interface {
	ListStale(ctx context.Context, threshold time.Duration, limit int) ([]leadrepo.Lead, error)
}

// OverdueSweeper flips sent and viewed invoices past their due date.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	bus       events.Bus
	followUps FollowUpScheduler
	leads     StaleLeadSource
	invoices  OverdueSweeper
	threshold time.Duration
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, followUps FollowUpScheduler, leads StaleLeadSource, invoices OverdueSweeper, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		bus:       bus,
		followUps: followUps,
		leads:     leads,
		invoices:  invoices,
		threshold: cfg.GetStaleLeadThreshold(),
		log:       log,
	}

	mux.HandleFunc(TaskFollowUpDispatchDue, w.handleFollowUpDue)
	mux.HandleFunc(TaskStaleLeadCheck, w.handleStaleLeadCheck)
	mux.HandleFunc(TaskInvoiceOverdueSweep, w.handleInvoiceOverdueSweep)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleFollowUpDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowUpDuePayload(task)
	if err != nil {
		return err
	}

	followUpID, err := uuid.Parse(payload.FollowUpID)
	if err != nil {
		return err
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	return w.bus.PublishSync(ctx, events.FollowUpDue{
		BaseEvent:  events.NewBaseEvent(),
		FollowUpID: followUpID,
		LeadID:     leadID,
	})
}

// handleStaleLeadCheck creates a follow-up for every lead whose stage has
// not moved within the configured threshold. Leads that already have a
// pending follow-up come back as a conflict, which is the dedup working as
// intended.
func (w *Worker) handleStaleLeadCheck(ctx context.Context, _ *asynq.Task) error {
	stale, err := w.leads.ListStale(ctx, w.threshold, staleLeadBatchSize)
	if err != nil {
		return err
	}

	var errs []error
	created := 0
	for _, lead := range stale {
		reason := fmt.Sprintf("no pipeline activity since %s", lead.PipelineStageChangedAt.Format("2006-01-02"))
		_, err := w.followUps.Create(ctx, followuptransport.CreateFollowUpRequest{
			LeadID:        lead.ID,
			RemindAt:      time.Now(),
			TriggerReason: reason,
		})
		if err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		created++
	}

	if created > 0 {
		w.log.Cascade("scheduler.stale_check", "followups.created", "lead", fmt.Sprintf("%d follow-ups", created))
	}
	return errors.Join(errs...)
}

func (w *Worker) handleInvoiceOverdueSweep(ctx context.Context, _ *asynq.Task) error {
	_, err := w.invoices.SweepOverdue(ctx)
	return err
}
