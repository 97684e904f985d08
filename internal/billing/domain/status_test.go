package domain

import "testing"

func TestCanSendOnlyFromDraft(t *testing.T) {
	for _, s := range []InvoiceStatus{InvoiceSent, InvoiceViewed, InvoicePaid, InvoiceCancelled, InvoiceOverdue} {
		if CanSend(s) {
			t.Errorf("CanSend(%q) = true, want false", s)
		}
	}
	if !CanSend(InvoiceDraft) {
		t.Error("CanSend(draft) = false, want true")
	}
}

func TestCanMarkPaid(t *testing.T) {
	tests := []struct {
		status InvoiceStatus
		want   bool
	}{
		{InvoiceDraft, true},
		{InvoiceSent, true},
		{InvoiceViewed, true},
		{InvoiceOverdue, true},
		{InvoicePaid, false},
		{InvoiceCancelled, false},
	}
	for _, tt := range tests {
		if got := CanMarkPaid(tt.status); got != tt.want {
			t.Errorf("CanMarkPaid(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSweepableToOverdue(t *testing.T) {
	for _, s := range []InvoiceStatus{InvoiceSent, InvoiceViewed} {
		if !SweepableToOverdue(s) {
			t.Errorf("SweepableToOverdue(%q) = false, want true", s)
		}
	}
	for _, s := range []InvoiceStatus{InvoiceDraft, InvoicePaid, InvoiceCancelled, InvoiceOverdue} {
		if SweepableToOverdue(s) {
			t.Errorf("SweepableToOverdue(%q) = true, want false", s)
		}
	}
}
