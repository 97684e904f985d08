package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

type testSchedulerConfig struct {
	redisURL string
	queue    string
}

func (c testSchedulerConfig) GetRedisURL() string                  { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool            { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string            { return c.queue }
func (c testSchedulerConfig) GetStaleLeadThreshold() time.Duration { return 7 * 24 * time.Hour }

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + srv.Addr(), queue: "crm"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected an error without a redis url")
	}
}

func TestNewClientRejectsMalformedURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{redisURL: "not-a-url"}); err == nil {
		t.Fatal("expected an error for malformed redis url")
	}
}

func TestEnqueueFollowUpDueReachesQueue(t *testing.T) {
	client, srv := newTestClient(t)

	err := client.EnqueueFollowUpDue(context.Background(), FollowUpDuePayload{
		FollowUpID: uuid.NewString(),
		LeadID:     uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("EnqueueFollowUpDue: %v", err)
	}

	if !queueHasTask(srv, "crm") {
		t.Fatalf("no task landed in the crm queue, keys: %v", srv.Keys())
	}
}

func TestEnqueueSweepsReachQueue(t *testing.T) {
	client, srv := newTestClient(t)

	if err := client.EnqueueStaleLeadCheck(context.Background()); err != nil {
		t.Fatalf("EnqueueStaleLeadCheck: %v", err)
	}
	if err := client.EnqueueInvoiceOverdueSweep(context.Background()); err != nil {
		t.Fatalf("EnqueueInvoiceOverdueSweep: %v", err)
	}

	if !queueHasTask(srv, "crm") {
		t.Fatalf("no task landed in the crm queue, keys: %v", srv.Keys())
	}
}

func TestNilClientEnqueueIsNoOp(t *testing.T) {
	var client *Client
	if err := client.EnqueueStaleLeadCheck(context.Background()); err != nil {
		t.Fatalf("nil client enqueue: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("nil client close: %v", err)
	}
}

func queueHasTask(srv *miniredis.Miniredis, queue string) bool {
	for _, key := range srv.Keys() {
		if strings.Contains(key, "{"+queue+"}") {
			return true
		}
	}
	return false
}
