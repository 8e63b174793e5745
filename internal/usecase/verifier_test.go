package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/infra/security"
)

func testUser(id, username, password string) domain.User {
	return domain.User{
		ID:           id,
		Username:     username,
		PasswordHash: "hashed:" + password,
		PasswordAlgo: security.PasswordAlgo,
		Status:       domain.UserStatusActive,
	}
}

func TestVerifyPassword(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
		wantUser string
	}{
		{
			name:     "correct password",
			username: "alice",
			password: "s3cret-pass",
			wantUser: "u-1",
		},
		{
			name:     "wrong password",
			username: "alice",
			password: "not-the-password",
			wantErr:  ErrInvalidCredential,
		},
		{
			name:     "unknown username",
			username: "nobody",
			password: "whatever",
			wantErr:  ErrInvalidCredential,
		},
		{
			name:     "empty password",
			username: "alice",
			password: "",
			wantErr:  ErrInvalidCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newStubUserRepo(testUser("u-1", "alice", "s3cret-pass"))
			v := NewCredentialVerifier(users, newStubAttemptStore(), stubHasher{},
				VerifierConfig{MaxAttempts: 5}, zaptest.NewLogger(t))

			user, err := v.VerifyPassword(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("VerifyPassword error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyPassword: %v", err)
			}
			if user.ID != tt.wantUser {
				t.Errorf("user id = %q, want %q", user.ID, tt.wantUser)
			}
		})
	}
}

func TestVerifyPasswordLockout(t *testing.T) {
	users := newStubUserRepo(testUser("u-1", "alice", "s3cret-pass"))
	attempts := newStubAttemptStore()
	v := NewCredentialVerifier(users, attempts, stubHasher{},
		VerifierConfig{MaxAttempts: 3}, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := v.VerifyPassword(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("attempt %d error = %v, want ErrInvalidCredential", i+1, err)
		}
	}

	// Third failure reaches the budget.
	if _, err := v.VerifyPassword(ctx, "alice", "wrong"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("third failure error = %v, want ErrAccountLocked", err)
	}

	// Correct password no longer helps while locked.
	if _, err := v.VerifyPassword(ctx, "alice", "s3cret-pass"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("locked login error = %v, want ErrAccountLocked", err)
	}
}

func TestVerifyPasswordResetsCounterOnSuccess(t *testing.T) {
	users := newStubUserRepo(testUser("u-1", "alice", "s3cret-pass"))
	attempts := newStubAttemptStore()
	v := NewCredentialVerifier(users, attempts, stubHasher{},
		VerifierConfig{MaxAttempts: 3}, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := v.VerifyPassword(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("failure error = %v", err)
	}
	if _, err := v.VerifyPassword(ctx, "alice", "s3cret-pass"); err != nil {
		t.Fatalf("success error = %v", err)
	}
	if count, _ := attempts.Count(ctx, "alice"); count != 0 {
		t.Errorf("counter after success = %d, want 0", count)
	}
}

func TestVerifyPasswordCounterFaultDegrades(t *testing.T) {
	users := newStubUserRepo(testUser("u-1", "alice", "s3cret-pass"))
	attempts := newStubAttemptStore()
	attempts.incrementErr = errors.New("redis down")
	v := NewCredentialVerifier(users, attempts, stubHasher{},
		VerifierConfig{MaxAttempts: 3}, zaptest.NewLogger(t))

	if _, err := v.VerifyPassword(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("error = %v, want ErrInvalidCredential when counter is unavailable", err)
	}
}

func TestVerifyDigestProof(t *testing.T) {
	const (
		realm    = "gateway"
		password = "digest-pass-1"
	)
	ha1 := security.ComputeHA1("alice", realm, password)
	user := testUser("u-1", "alice", password)
	user.DigestHA1 = &ha1

	proofFor := func(username, secret string) security.DigestProof {
		proof := security.DigestProof{
			Username: username,
			Realm:    realm,
			Nonce:    "abc123",
			URI:      "/api/v1/auth/login",
			Qop:      "auth",
			NC:       "00000001",
			Cnonce:   "deadbeef",
			Method:   "POST",
		}
		proof.Response = security.DigestResponse(security.ComputeHA1(username, realm, secret), proof)
		return proof
	}

	tests := []struct {
		name    string
		proof   security.DigestProof
		wantErr error
	}{
		{name: "valid proof", proof: proofFor("alice", password)},
		{name: "wrong password", proof: proofFor("alice", "wrong"), wantErr: ErrInvalidCredential},
		{name: "unknown user", proof: proofFor("mallory", password), wantErr: ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newStubUserRepo(user)
			v := NewCredentialVerifier(users, newStubAttemptStore(), stubHasher{},
				VerifierConfig{MaxAttempts: 5, DigestRealm: realm}, zaptest.NewLogger(t))

			got, err := v.VerifyDigestProof(context.Background(), tt.proof)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("VerifyDigestProof error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyDigestProof: %v", err)
			}
			if got.ID != "u-1" {
				t.Errorf("user id = %q", got.ID)
			}
		})
	}
}

func TestVerifyDigestProofNoStoredHA1(t *testing.T) {
	user := testUser("u-1", "alice", "pass")
	users := newStubUserRepo(user)
	v := NewCredentialVerifier(users, newStubAttemptStore(), stubHasher{},
		VerifierConfig{MaxAttempts: 5, DigestRealm: "gateway"}, zaptest.NewLogger(t))

	proof := security.DigestProof{
		Username: "alice",
		Realm:    "gateway",
		Nonce:    "abc",
		URI:      "/",
		Response: "0123456789abcdef0123456789abcdef",
		Method:   "GET",
	}
	if _, err := v.VerifyDigestProof(context.Background(), proof); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("error = %v, want ErrInvalidCredential for account without HA1", err)
	}
}

func TestVerifierClockInjection(t *testing.T) {
	v := NewCredentialVerifier(newStubUserRepo(), newStubAttemptStore(), stubHasher{},
		VerifierConfig{}, zaptest.NewLogger(t))
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return fixed }
	if got := v.now(); !got.Equal(fixed) {
		t.Fatalf("now = %v, want %v", got, fixed)
	}
}
