package adapters

import (
	"context"

	"github.com/google/uuid"

	billingservice "agencycrm_backend/internal/billing/service"
	clientservice "agencycrm_backend/internal/clients/service"
	followupservice "agencycrm_backend/internal/followups/service"
	leadservice "agencycrm_backend/internal/leads/service"
	projectservice "agencycrm_backend/internal/projects/service"
	proposalservice "agencycrm_backend/internal/proposals/service"
)

// ContactReader resolves recipient contact details across the clients and
// leads modules. One adapter serves every module that only needs an email
// and a display name.
type ContactReader struct {
	clients *clientservice.Service
	leads   *leadservice.Service
}

func NewContactReader(clients *clientservice.Service, leads *leadservice.Service) *ContactReader {
	return &ContactReader{clients: clients, leads: leads}
}

func (r *ContactReader) GetContact(ctx context.Context, clientID uuid.UUID) (string, string, error) {
	return r.ClientContact(ctx, clientID)
}

func (r *ContactReader) ClientContact(ctx context.Context, clientID uuid.UUID) (string, string, error) {
	client, err := r.clients.GetByID(ctx, clientID)
	if err != nil {
		return "", "", err
	}
	return client.Email, client.Name, nil
}

func (r *ContactReader) LeadContact(ctx context.Context, leadID uuid.UUID) (string, string, error) {
	lead, err := r.leads.GetByID(ctx, leadID)
	if err != nil {
		return "", "", err
	}
	return lead.Email, lead.FirstName + " " + lead.LastName, nil
}

var (
	_ projectservice.ClientReader     = (*ContactReader)(nil)
	_ billingservice.ClientReader     = (*ContactReader)(nil)
	_ proposalservice.ContactResolver = (*ContactReader)(nil)
	_ followupservice.LeadContacts    = (*ContactReader)(nil)
)
