package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agencycrm_backend/platform/config"
)

// HTTPProvider talks to the identity provider's admin REST API.
type HTTPProvider struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

// NewHTTPProvider creates an admin API client. Returns nil when the provider
// is not configured; callers treat a nil provider as "identity disabled" and
// skip provisioning (conversion still succeeds, per the workflow rules).
func NewHTTPProvider(cfg config.IdentityConfig) *HTTPProvider {
	if !cfg.IsIdentityEnabled() {
		return nil
	}
	return &HTTPProvider{
		baseURL:    cfg.GetIdentityAdminURL(),
		serviceKey: cfg.GetIdentityServiceKey(),
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

type createUserRequest struct {
	Email        string            `json:"email"`
	EmailConfirm bool              `json:"email_confirm"`
	UserMetadata map[string]string `json:"user_metadata,omitempty"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	BannedUntil string `json:"banned_until,omitempty"`
}

func (p *HTTPProvider) CreateUser(ctx context.Context, email string, metadata map[string]string) (string, error) {
	body, err := json.Marshal(createUserRequest{Email: email, EmailConfirm: true, UserMetadata: metadata})
	if err != nil {
		return "", err
	}

	resp, err := p.do(ctx, http.MethodPost, "/admin/users", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity {
		return "", ErrAlreadyExists
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("identity create user: status %d", resp.StatusCode)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", err
	}
	return user.ID, nil
}

func (p *HTTPProvider) BanUser(ctx context.Context, userID string) error {
	// "876000h" (~100 years) is the provider's idiom for an indefinite ban.
	return p.setBan(ctx, userID, "876000h")
}

func (p *HTTPProvider) UnbanUser(ctx context.Context, userID string) error {
	return p.setBan(ctx, userID, "none")
}

func (p *HTTPProvider) setBan(ctx context.Context, userID, duration string) error {
	body, err := json.Marshal(map[string]string{"ban_duration": duration})
	if err != nil {
		return err
	}

	resp, err := p.do(ctx, http.MethodPut, "/admin/users/"+userID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("identity ban update: status %d", resp.StatusCode)
	}
	return nil
}

func (p *HTTPProvider) ListUsers(ctx context.Context) ([]User, error) {
	resp, err := p.do(ctx, http.MethodGet, "/admin/users", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("identity list users: status %d", resp.StatusCode)
	}

	var payload struct {
		Users []userResponse `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	users := make([]User, 0, len(payload.Users))
	for _, u := range payload.Users {
		users = append(users, User{ID: u.ID, Email: u.Email, Banned: u.BannedUntil != ""})
	}
	return users, nil
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return p.client.Do(req)
}

var _ Provider = (*HTTPProvider)(nil)
