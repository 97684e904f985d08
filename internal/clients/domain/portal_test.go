package domain

import (
	"testing"
	"time"
)

func TestAccessStateOf(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name         string
		invitedAt    *time.Time
		firstLoginAt *time.Time
		revoked      bool
		want         AccessState
	}{
		{"never invited", nil, nil, false, AccessNotInvited},
		{"invited, no login", &now, nil, false, AccessAwaitingFirstLogin},
		{"logged in", &now, &now, false, AccessActive},
		{"revoked before invite", nil, nil, true, AccessRevoked},
		{"revoked while awaiting login", &now, nil, true, AccessRevoked},
		{"revoked while active", &now, &now, true, AccessRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AccessStateOf(tt.invitedAt, tt.firstLoginAt, tt.revoked); got != tt.want {
				t.Errorf("AccessStateOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRestoreReturnsToPriorState(t *testing.T) {
	now := time.Now()

	// Revoke then restore must land back on the state implied by the
	// untouched invite/login fields.
	if got := AccessStateOf(&now, nil, false); got != AccessAwaitingFirstLogin {
		t.Errorf("restore after revoke-while-awaiting = %q, want %q", got, AccessAwaitingFirstLogin)
	}
	if got := AccessStateOf(&now, &now, false); got != AccessActive {
		t.Errorf("restore after revoke-while-active = %q, want %q", got, AccessActive)
	}
}
