package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/infra/security"
)

func newTestSessionService(t *testing.T, store *stubSessionStore, events port.EventPublisher, cfg SessionConfig) *SessionService {
	t.Helper()
	return NewSessionService(store, events, cfg, zaptest.NewLogger(t))
}

func TestSessionIssueAndValidate(t *testing.T) {
	store := newStubSessionStore()
	svc := newTestSessionService(t, store, nil, SessionConfig{DefaultTTL: time.Hour})
	ctx := context.Background()

	session, token, err := svc.Issue(ctx, "u-1", IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("raw token should not be empty")
	}
	if session.TokenHash == token {
		t.Error("stored hash must differ from the raw token")
	}
	if session.TokenHash != security.HashToken(token) {
		t.Error("stored hash should be the SHA-256 of the raw token")
	}
	if got := session.ExpiresAt.Sub(session.CreatedAt); got != time.Hour {
		t.Errorf("lifetime = %v, want 1h", got)
	}

	validated, err := svc.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if validated.ID != session.ID {
		t.Errorf("validated id = %q, want %q", validated.ID, session.ID)
	}
}

func TestSessionValidateUnknownToken(t *testing.T) {
	svc := newTestSessionService(t, newStubSessionStore(), nil, SessionConfig{})
	if _, err := svc.Validate(context.Background(), "no-such-token"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionLazyExpiry(t *testing.T) {
	store := newStubSessionStore()
	svc := newTestSessionService(t, store, nil, SessionConfig{DefaultTTL: time.Hour})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	_, token, err := svc.Issue(ctx, "u-1", IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc.now = func() time.Time { return base.Add(59 * time.Minute) }
	if _, err := svc.Validate(ctx, token); err != nil {
		t.Fatalf("pre-expiry Validate: %v", err)
	}

	svc.now = func() time.Time { return base.Add(61 * time.Minute) }
	if _, err := svc.Validate(ctx, token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("post-expiry error = %v, want ErrSessionExpired", err)
	}
}

func TestSessionRefreshRolling(t *testing.T) {
	store := newStubSessionStore()
	svc := newTestSessionService(t, store, nil, SessionConfig{DefaultTTL: time.Hour, Rolling: true})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	_, token, err := svc.Issue(ctx, "u-1", IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc.now = func() time.Time { return base.Add(30 * time.Minute) }
	refreshed, err := svc.Refresh(ctx, token)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if want := base.Add(90 * time.Minute); !refreshed.ExpiresAt.Equal(want) {
		t.Errorf("expiry after refresh = %v, want %v", refreshed.ExpiresAt, want)
	}

	// Session stays valid past the original expiry.
	svc.now = func() time.Time { return base.Add(80 * time.Minute) }
	if _, err := svc.Validate(ctx, token); err != nil {
		t.Fatalf("Validate after refresh: %v", err)
	}
}

func TestSessionRefreshFixedLifetimeIsNoop(t *testing.T) {
	store := newStubSessionStore()
	svc := newTestSessionService(t, store, nil, SessionConfig{DefaultTTL: time.Hour, Rolling: false})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	issued, token, err := svc.Issue(ctx, "u-1", IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc.now = func() time.Time { return base.Add(30 * time.Minute) }
	refreshed, err := svc.Refresh(ctx, token)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !refreshed.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Errorf("fixed session expiry moved from %v to %v", issued.ExpiresAt, refreshed.ExpiresAt)
	}
}

func TestSessionRevoke(t *testing.T) {
	store := newStubSessionStore()
	events := &stubPublisher{}
	svc := newTestSessionService(t, store, events, SessionConfig{DefaultTTL: time.Hour})
	ctx := context.Background()

	_, token, err := svc.Issue(ctx, "u-1", IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.Revoke(ctx, token, RevokeReasonLogout); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// Revoked and not-found are indistinguishable to callers.
	if _, err := svc.Validate(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("post-revoke Validate error = %v, want ErrSessionNotFound", err)
	}
	if err := svc.Revoke(ctx, token, RevokeReasonLogout); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("double revoke error = %v, want ErrSessionNotFound", err)
	}

	if len(events.revoked) != 1 {
		t.Fatalf("revoked events = %d, want 1", len(events.revoked))
	}
	if events.revoked[0].Reason != RevokeReasonLogout {
		t.Errorf("event reason = %q", events.revoked[0].Reason)
	}
}

func TestSessionRevokeAll(t *testing.T) {
	store := newStubSessionStore()
	events := &stubPublisher{}
	svc := newTestSessionService(t, store, events, SessionConfig{DefaultTTL: time.Hour})
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		_, token, err := svc.Issue(ctx, "u-1", IssueOptions{})
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		tokens = append(tokens, token)
	}
	if _, _, err := svc.Issue(ctx, "u-2", IssueOptions{}); err != nil {
		t.Fatalf("Issue other user: %v", err)
	}

	revoked, err := svc.RevokeAll(ctx, "u-1", RevokeReasonLogoutAll)
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if revoked != 3 {
		t.Errorf("revoked = %d, want 3", revoked)
	}
	for _, token := range tokens {
		if _, err := svc.Validate(ctx, token); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("token still validates after RevokeAll: %v", err)
		}
	}

	remaining, err := svc.ListActive(ctx, "u-2")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("other user's sessions = %d, want 1", len(remaining))
	}
	if len(events.revoked) != 1 || events.revoked[0].SessionsRevoked != 3 {
		t.Errorf("revoked event = %+v, want one event covering 3 sessions", events.revoked)
	}
}

func TestSessionPurgeExpiredKeepsRetention(t *testing.T) {
	store := newStubSessionStore()
	svc := newTestSessionService(t, store, nil, SessionConfig{DefaultTTL: time.Hour, Retention: 2 * time.Hour})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	_, token, err := svc.Issue(ctx, "u-1", IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Inside the retention window the record survives the purge so expiry
	// stays distinguishable from absence.
	svc.now = func() time.Time { return base.Add(90 * time.Minute) }
	if _, err := svc.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if _, err := svc.Validate(ctx, token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("error inside retention = %v, want ErrSessionExpired", err)
	}

	svc.now = func() time.Time { return base.Add(4 * time.Hour) }
	purged, err := svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if _, err := svc.Validate(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error after purge = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionTokenUniqueness(t *testing.T) {
	svc := newTestSessionService(t, newStubSessionStore(), nil, SessionConfig{})
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		_, token, err := svc.Issue(context.Background(), "u-1", IssueOptions{})
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if seen[token] {
			t.Fatal("duplicate session token issued")
		}
		seen[token] = true
	}
}
