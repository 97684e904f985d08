package domain

import (
	"testing"
	"time"
)

func TestProjectTransitionAllowed(t *testing.T) {
	tests := []struct {
		from, to ProjectStatus
		want     bool
	}{
		{ProjectDraft, ProjectInProgress, true},
		{ProjectInProgress, ProjectPaused, true},
		{ProjectPaused, ProjectInProgress, true},
		{ProjectInProgress, ProjectCompleted, true},
		{ProjectInProgress, ProjectCancelled, true},
		{ProjectCompleted, ProjectCompleted, true},
		{ProjectCompleted, ProjectInProgress, false},
		{ProjectCompleted, ProjectDraft, false},
		{ProjectCancelled, ProjectInProgress, false},
		{ProjectDraft, ProjectStatus("archived"), false},
	}

	for _, tt := range tests {
		if got := ProjectTransitionAllowed(tt.from, tt.to); got != tt.want {
			t.Errorf("ProjectTransitionAllowed(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOverdueIsDerived(t *testing.T) {
	now := time.Now()
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	tests := []struct {
		name   string
		status MilestoneStatus
		due    *time.Time
		want   bool
	}{
		{"pending past due", MilestonePending, &past, true},
		{"in progress past due", MilestoneInProgress, &past, true},
		{"pending not yet due", MilestonePending, &future, false},
		{"no due date", MilestoneInProgress, nil, false},
		{"completed past due", MilestoneCompleted, &past, false},
		{"explicitly flagged", MilestoneOverdueStatus, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overdue(tt.status, tt.due, now); got != tt.want {
				t.Errorf("Overdue(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
