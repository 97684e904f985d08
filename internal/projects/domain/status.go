// Package domain holds the project and milestone lifecycle rules.
package domain

import "time"

type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectPaused     ProjectStatus = "paused"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

func ValidProjectStatus(s ProjectStatus) bool {
	switch s {
	case ProjectDraft, ProjectInProgress, ProjectPaused, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

// ProjectTransitionAllowed is the single transition gate for projects.
// Completed and cancelled are terminal: the completion cascade is one-way
// and has no defined reversal, so reopening is rejected outright.
func ProjectTransitionAllowed(from, to ProjectStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case ProjectCompleted, ProjectCancelled:
		return false
	}
	return ValidProjectStatus(to)
}

type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneCompleted  MilestoneStatus = "completed"
	// MilestoneOverdueStatus exists for explicit flagging only; the usual
	// overdue signal is derived, see Overdue.
	MilestoneOverdueStatus MilestoneStatus = "overdue"
)

func ValidMilestoneStatus(s MilestoneStatus) bool {
	switch s {
	case MilestonePending, MilestoneInProgress, MilestoneCompleted, MilestoneOverdueStatus:
		return true
	}
	return false
}

// Overdue reports whether an open milestone is past its due date. Derived at
// read time; completion always clears it.
func Overdue(status MilestoneStatus, due *time.Time, now time.Time) bool {
	if due == nil {
		return false
	}
	switch status {
	case MilestonePending, MilestoneInProgress:
		return due.Before(now)
	case MilestoneOverdueStatus:
		return true
	}
	return false
}
