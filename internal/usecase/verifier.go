package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/infra/security"
	"github.com/arklim/auth-gateway/internal/repository"
)

// Credential schemes accepted by the verifier.
const (
	SchemeCredentials = "credentials"
	SchemeBasic       = "basic"
	SchemeDigest      = "digest"
)

// VerifierConfig bounds the failed-attempt lockout.
type VerifierConfig struct {
	MaxAttempts int
	DigestRealm string
}

// CredentialVerifier checks local credentials against stored secrets and
// enforces the consecutive-failure lockout.
type CredentialVerifier struct {
	users    port.UserRepository
	attempts port.FailedAttemptStore
	hasher   port.PasswordHasher
	cfg      VerifierConfig
	logger   *zap.Logger

	now func() time.Time
}

// NewCredentialVerifier constructs a CredentialVerifier.
func NewCredentialVerifier(
	users port.UserRepository,
	attempts port.FailedAttemptStore,
	hasher port.PasswordHasher,
	cfg VerifierConfig,
	logger *zap.Logger,
) *CredentialVerifier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialVerifier{
		users:    users,
		attempts: attempts,
		hasher:   hasher,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// VerifyPassword checks a plaintext password for the credentials and basic
// schemes. Unknown usernames and wrong passwords both come back as
// ErrInvalidCredential; the unknown-username path still runs a hash
// verification against a decoy so its timing matches the mismatch path.
func (v *CredentialVerifier) VerifyPassword(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredential
	}

	if err := v.requireUnlocked(ctx, username); err != nil {
		return nil, err
	}

	user, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_, _ = v.hasher.Verify(password, security.DecoyHash())
			return nil, v.recordFailure(ctx, username)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.HasLocalCredential() {
		_, _ = v.hasher.Verify(password, security.DecoyHash())
		return nil, v.recordFailure(ctx, username)
	}

	ok, err := v.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, v.recordFailure(ctx, username)
	}

	v.resetFailures(ctx, username)
	return user, nil
}

// VerifyDigestProof checks an RFC 7616 digest response against the stored HA1
// secret. Accounts created before a digest realm was configured have no HA1
// and cannot use the digest scheme until the next password change.
func (v *CredentialVerifier) VerifyDigestProof(ctx context.Context, proof security.DigestProof) (*domain.User, error) {
	if proof.Username == "" || proof.Response == "" {
		return nil, ErrInvalidCredential
	}

	if err := v.requireUnlocked(ctx, proof.Username); err != nil {
		return nil, err
	}

	user, err := v.users.GetByUsername(ctx, proof.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			security.VerifyDigest(decoyHA1(), proof)
			return nil, v.recordFailure(ctx, proof.Username)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.DigestHA1 == nil || *user.DigestHA1 == "" {
		security.VerifyDigest(decoyHA1(), proof)
		return nil, v.recordFailure(ctx, proof.Username)
	}

	if !security.VerifyDigest(*user.DigestHA1, proof) {
		return nil, v.recordFailure(ctx, proof.Username)
	}

	v.resetFailures(ctx, proof.Username)
	return user, nil
}

// requireUnlocked rejects verification attempts for usernames that already
// exhausted the failure budget. The counter window expires in storage.
func (v *CredentialVerifier) requireUnlocked(ctx context.Context, username string) error {
	count, err := v.attempts.Count(ctx, username)
	if err != nil {
		return fmt.Errorf("read attempt counter: %w", err)
	}
	if count >= v.cfg.MaxAttempts {
		return ErrAccountLocked
	}
	return nil
}

// recordFailure bumps the failure counter and picks the caller-visible error:
// the attempt that reaches the budget reports the lockout, earlier ones report
// an invalid credential. Counter faults are logged and degrade to the invalid
// credential answer rather than blocking sign-in entirely.
func (v *CredentialVerifier) recordFailure(ctx context.Context, username string) error {
	count, err := v.attempts.Increment(ctx, username)
	if err != nil {
		v.logger.Warn("failed to record auth failure", zap.Error(err))
		return ErrInvalidCredential
	}
	if count >= v.cfg.MaxAttempts {
		return ErrAccountLocked
	}
	return ErrInvalidCredential
}

func (v *CredentialVerifier) resetFailures(ctx context.Context, username string) {
	if err := v.attempts.Reset(ctx, username); err != nil {
		v.logger.Warn("failed to reset attempt counter", zap.Error(err))
	}
}

// decoyHA1 yields a stable digest secret for the unknown-username path.
func decoyHA1() string {
	return security.ComputeHA1("nobody", "decoy", security.DecoyHash())
}
