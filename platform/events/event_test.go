package events

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewBaseEventAssignsIDAndTimestamp(t *testing.T) {
	first := NewBaseEvent()
	second := NewBaseEvent()

	if first.EventID() == uuid.Nil {
		t.Fatal("base event must carry a non-nil id")
	}
	if first.EventID() == second.EventID() {
		t.Errorf("event ids must be unique, got %s twice", first.EventID())
	}
	if first.OccurredAt().IsZero() {
		t.Error("base event must carry an occurrence timestamp")
	}
}
