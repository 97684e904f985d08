// Package adapters wires bounded contexts together at the composition root.
// Each adapter satisfies a consumer-driven interface from one module by
// delegating to another module's service, so the modules themselves never
// import each other.
package adapters

import (
	"context"

	clientservice "agencycrm_backend/internal/clients/service"
	leadservice "agencycrm_backend/internal/leads/service"
)

// ClientConversionGateway lets the leads module resolve conversions through
// the clients module.
type ClientConversionGateway struct {
	clients *clientservice.Service
}

func NewClientConversionGateway(clients *clientservice.Service) *ClientConversionGateway {
	return &ClientConversionGateway{clients: clients}
}

func (g *ClientConversionGateway) ResolveForConversion(ctx context.Context, p leadservice.ConversionClientParams) (leadservice.ConvertedClient, bool, error) {
	client, created, err := g.clients.ResolveForConversion(ctx, clientservice.ResolveParams{
		LeadID: p.LeadID,
		Name:   p.Name,
		Email:  p.Email,
		Phone:  p.Phone,
	})
	if err != nil {
		return leadservice.ConvertedClient{}, false, err
	}
	return leadservice.ConvertedClient{
		ID:    client.ID,
		Email: client.Email,
		Name:  client.Name,
	}, created, nil
}

var _ leadservice.ClientGateway = (*ClientConversionGateway)(nil)
