// Package domain holds the invoice status rules.
package domain

// InvoiceStatus is a forward-only display pipeline. The engine enforces two
// hard rules: sending is only valid from draft, and marking paid twice is a
// conflict. Everything else moves forward permissively.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoiceViewed    InvoiceStatus = "viewed"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceOverdue   InvoiceStatus = "overdue"
)

func ValidInvoiceStatus(s InvoiceStatus) bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoiceViewed, InvoicePaid, InvoiceCancelled, InvoiceOverdue:
		return true
	}
	return false
}

// CanSend reports whether the invoice can go out through the provider.
// Resending a non-draft invoice is an error, not a silent no-op.
func CanSend(s InvoiceStatus) bool {
	return s == InvoiceDraft
}

// CanMarkViewed gates the viewed transition. Already viewed or beyond is a
// quiet no-op at the service layer, so only sent and overdue move.
func CanMarkViewed(s InvoiceStatus) bool {
	return s == InvoiceSent || s == InvoiceOverdue
}

// CanMarkPaid allows payment from any live state. A second markPaid is a
// conflict; the follow-up queue's success-no-op style deliberately does not
// apply here.
func CanMarkPaid(s InvoiceStatus) bool {
	return s != InvoicePaid && s != InvoiceCancelled
}

// CanCancel allows cancellation any time before money changed hands.
func CanCancel(s InvoiceStatus) bool {
	return s != InvoicePaid && s != InvoiceCancelled
}

// SweepableToOverdue marks the statuses the overdue sweep may flip.
func SweepableToOverdue(s InvoiceStatus) bool {
	return s == InvoiceSent || s == InvoiceViewed
}
