package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type names. Dispatch-due carries a single follow-up; the sweeps are
// parameterless scans.
const (
	TaskFollowUpDispatchDue = "followups.dispatch_due"
	TaskStaleLeadCheck      = "leads.stale_check"
	TaskInvoiceOverdueSweep = "invoices.overdue_sweep"
)

type FollowUpDuePayload struct {
	FollowUpID string `json:"followUpId"`
	LeadID     string `json:"leadId"`
}

func NewFollowUpDispatchDueTask(payload FollowUpDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowUpDispatchDue, data), nil
}

func ParseFollowUpDuePayload(task *asynq.Task) (FollowUpDuePayload, error) {
	var payload FollowUpDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowUpDuePayload{}, err
	}
	return payload, nil
}

func NewStaleLeadCheckTask() *asynq.Task {
	return asynq.NewTask(TaskStaleLeadCheck, nil)
}

func NewInvoiceOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskInvoiceOverdueSweep, nil)
}
