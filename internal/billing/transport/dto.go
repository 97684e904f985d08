package transport

import (
	"time"

	"agencycrm_backend/internal/billing/repository"

	"github.com/google/uuid"
)

type LineItemInput struct {
	Description string `json:"description" validate:"required,min=1,max=500"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	UnitCents   int64  `json:"unitCents" validate:"required,gt=0"`
}

type CreateInvoiceRequest struct {
	ClientID   uuid.UUID       `json:"clientId" validate:"required"`
	ProjectID  *uuid.UUID      `json:"projectId"`
	Title      string          `json:"title" validate:"required,min=1,max=300"`
	DueDate    *time.Time      `json:"dueDate"`
	LineItems  []LineItemInput `json:"lineItems" validate:"required,min=1,dive"`
	TotalCents int64           `json:"totalCents" validate:"required,gt=0"`
}

type MarkPaidRequest struct {
	AmountCents *int64  `json:"amountCents" validate:"omitempty,gt=0"`
	Method      *string `json:"method" validate:"omitempty,oneof=manual square bank_transfer"`
}

type InvoiceResponse struct {
	ID          uuid.UUID  `json:"id"`
	ClientID    uuid.UUID  `json:"clientId"`
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
	MilestoneID *uuid.UUID `json:"milestoneId,omitempty"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	TotalCents  int64      `json:"totalCents"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	ExternalID  *string    `json:"externalId,omitempty"`
	PaymentURL  *string    `json:"paymentUrl,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	ViewedAt    *time.Time `json:"viewedAt,omitempty"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func ToInvoiceResponse(inv repository.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:          inv.ID,
		ClientID:    inv.ClientID,
		ProjectID:   inv.ProjectID,
		MilestoneID: inv.MilestoneID,
		Title:       inv.Title,
		Status:      string(inv.Status),
		TotalCents:  inv.TotalCents,
		DueDate:     inv.DueDate,
		ExternalID:  inv.ExternalID,
		PaymentURL:  inv.PaymentURL,
		SentAt:      inv.SentAt,
		ViewedAt:    inv.ViewedAt,
		PaidAt:      inv.PaidAt,
		CancelledAt: inv.CancelledAt,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

type LineItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	UnitCents   int64     `json:"unitCents"`
	AmountCents int64     `json:"amountCents"`
}

type InvoiceDetailResponse struct {
	InvoiceResponse
	LineItems []LineItemResponse `json:"lineItems"`
	Payments  []PaymentResponse  `json:"payments"`
}

type PaymentResponse struct {
	ID          uuid.UUID `json:"id"`
	AmountCents int64     `json:"amountCents"`
	Method      string    `json:"method"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

func ToDetailResponse(inv repository.Invoice, items []repository.LineItem, payments []repository.Payment) InvoiceDetailResponse {
	detail := InvoiceDetailResponse{
		InvoiceResponse: ToInvoiceResponse(inv),
		LineItems:       make([]LineItemResponse, 0, len(items)),
		Payments:        make([]PaymentResponse, 0, len(payments)),
	}
	for _, li := range items {
		detail.LineItems = append(detail.LineItems, LineItemResponse{
			ID:          li.ID,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitCents:   li.UnitCents,
			AmountCents: li.AmountCents,
		})
	}
	for _, p := range payments {
		detail.Payments = append(detail.Payments, PaymentResponse{
			ID:          p.ID,
			AmountCents: p.AmountCents,
			Method:      p.Method,
			ReceivedAt:  p.ReceivedAt,
		})
	}
	return detail
}
