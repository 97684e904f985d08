package inapp

import (
	"context"
	"testing"

	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	created    []CreateParams
	lastLimit  int
	lastOffset int
}

func (f *fakeStore) Create(_ context.Context, p CreateParams) (Notification, error) {
	f.created = append(f.created, p)
	return Notification{ID: uuid.New(), UserID: p.UserID, Title: p.Title, Content: p.Content}, nil
}

func (f *fakeStore) List(_ context.Context, _ uuid.UUID, limit, offset int) ([]Notification, int, error) {
	f.lastLimit = limit
	f.lastOffset = offset
	return nil, 0, nil
}

func (f *fakeStore) CountUnread(context.Context, uuid.UUID) (int, error) { return 0, nil }
func (f *fakeStore) MarkRead(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}
func (f *fakeStore) MarkAllRead(context.Context, uuid.UUID) error { return nil }

func TestSendDefaultsCategoryToInfo(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, logger.New("development"))

	err := svc.Send(context.Background(), SendParams{
		UserID:  uuid.New(),
		Title:   "Milestone completed",
		Content: "Launch finished.",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if store.created[0].Category != "info" {
		t.Fatalf("category = %q, want info", store.created[0].Category)
	}
	if store.created[0].ResourceType != nil {
		t.Fatal("empty resource type should be stored as NULL")
	}
}

func TestListClampsPaging(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, logger.New("development"))

	if _, _, err := svc.List(context.Background(), uuid.New(), 0, 500); err != nil {
		t.Fatalf("List: %v", err)
	}
	if store.lastLimit != 100 {
		t.Fatalf("limit = %d, want clamped to 100", store.lastLimit)
	}
	if store.lastOffset != 0 {
		t.Fatalf("offset = %d, want 0 for page 1", store.lastOffset)
	}
}
