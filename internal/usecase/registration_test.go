package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/auth-gateway/internal/infra/security"
)

func TestRegister(t *testing.T) {
	users := newStubUserRepo()
	events := &stubPublisher{}
	svc := NewRegistrationService(users, stubHasher{}, nil, events, "gateway", zaptest.NewLogger(t))
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Username:    "Alice",
		Password:    "correct-horse-battery",
		Email:       "alice@example.com",
		DisplayName: "Alice A",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("username = %q, want lowercased alice", user.Username)
	}
	if user.PasswordHash != "" || user.DigestHA1 != nil {
		t.Error("secrets must not leak through the result")
	}

	stored, err := users.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if stored.PasswordHash != "hashed:correct-horse-battery" {
		t.Errorf("stored hash = %q", stored.PasswordHash)
	}
	if stored.DigestHA1 == nil {
		t.Fatal("digest HA1 missing with realm configured")
	}
	if want := security.ComputeHA1("alice", "gateway", "correct-horse-battery"); *stored.DigestHA1 != want {
		t.Errorf("stored HA1 = %q, want %q", *stored.DigestHA1, want)
	}

	if len(events.registered) != 1 {
		t.Fatalf("registration events = %d, want 1", len(events.registered))
	}
	if events.registered[0].Provider != SchemeCredentials {
		t.Errorf("event provider = %q", events.registered[0].Provider)
	}
}

func TestRegisterWithoutDigestRealm(t *testing.T) {
	users := newStubUserRepo()
	svc := NewRegistrationService(users, stubHasher{}, nil, nil, "", zaptest.NewLogger(t))

	if _, err := svc.Register(context.Background(), RegisterInput{
		Username: "bob",
		Password: "correct-horse-battery",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	stored, err := users.GetByUsername(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if stored.DigestHA1 != nil {
		t.Error("HA1 should not be stored without a digest realm")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	users := newStubUserRepo(testUser("u-1", "alice", "pw"))
	svc := NewRegistrationService(users, stubHasher{}, nil, nil, "", zaptest.NewLogger(t))

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Password: "correct-horse-battery",
	})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("error = %v, want ErrDuplicateUsername", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	users := newStubUserRepo()
	svc := NewRegistrationService(users, stubHasher{}, nil, nil, "", zaptest.NewLogger(t))

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "carol",
		Password: "short",
	})
	var policyErr *security.PasswordValidationError
	if !errors.As(err, &policyErr) {
		t.Fatalf("error = %v, want a password policy violation", err)
	}
	if _, lookupErr := users.GetByUsername(context.Background(), "carol"); lookupErr == nil {
		t.Error("account must not be created on policy violation")
	}
}
