package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/repository"
)

// stubUserRepo is an in-memory port.UserRepository for usecase tests.
type stubUserRepo struct {
	mu         sync.Mutex
	byID       map[string]*domain.User
	byUsername map[string]string
	byIdentity map[string]string
	identities map[string][]domain.ExternalIdentity
	roles      map[string][]string

	createErr error
	linkErr   error
}

func newStubUserRepo(users ...domain.User) *stubUserRepo {
	r := &stubUserRepo{
		byID:       map[string]*domain.User{},
		byUsername: map[string]string{},
		byIdentity: map[string]string{},
		identities: map[string][]domain.ExternalIdentity{},
		roles:      map[string][]string{},
	}
	for i := range users {
		u := users[i]
		r.byID[u.ID] = &u
		r.byUsername[u.Username] = u.ID
	}
	return r
}

func identityKey(provider, externalID string) string {
	return provider + "/" + externalID
}

func (r *stubUserRepo) Create(ctx context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byUsername[user.Username]; ok {
		return repository.ErrDuplicateKey
	}
	r.byID[user.ID] = &user
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *stubUserRepo) CreateWithExternalIdentity(ctx context.Context, user domain.User, identity domain.ExternalIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	key := identityKey(identity.Provider, identity.ExternalID)
	if _, ok := r.byIdentity[key]; ok {
		return repository.ErrAlreadyLinked
	}
	if _, ok := r.byUsername[user.Username]; ok {
		return repository.ErrDuplicateKey
	}
	r.byID[user.ID] = &user
	r.byUsername[user.Username] = user.ID
	r.byIdentity[key] = user.ID
	r.identities[user.ID] = append(r.identities[user.ID], identity)
	return nil
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byUsername[username]; ok {
		copied := *r.byID[id]
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) GetByExternalIdentity(ctx context.Context, provider, externalID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byIdentity[identityKey(provider, externalID)]; ok {
		copied := *r.byID[id]
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) LinkExternalIdentity(ctx context.Context, identity domain.ExternalIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linkErr != nil {
		return r.linkErr
	}
	key := identityKey(identity.Provider, identity.ExternalID)
	if _, ok := r.byIdentity[key]; ok {
		return repository.ErrAlreadyLinked
	}
	r.byIdentity[key] = identity.UserID
	r.identities[identity.UserID] = append(r.identities[identity.UserID], identity)
	return nil
}

func (r *stubUserRepo) ListExternalIdentities(ctx context.Context, userID string) ([]domain.ExternalIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ExternalIdentity(nil), r.identities[userID]...), nil
}

func (r *stubUserRepo) RolesOf(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roles[userID]...), nil
}

func (r *stubUserRepo) AssignRole(ctx context.Context, userID, roleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[userID]; !ok {
		return repository.ErrNotFound
	}
	r.roles[userID] = append(r.roles[userID], roleName)
	return nil
}

func (r *stubUserRepo) UpdatePassword(ctx context.Context, id, passwordHash, passwordAlgo string, digestHA1 *string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordAlgo = passwordAlgo
	u.DigestHA1 = digestHA1
	u.LastPasswordChange = changedAt
	return nil
}

func (r *stubUserRepo) RecordLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (r *stubUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byUsername, u.Username)
	delete(r.byID, id)
	return nil
}

var _ port.UserRepository = (*stubUserRepo)(nil)

// stubSessionStore keeps sessions in a map keyed by token hash.
type stubSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	saveErr error
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: map[string]*domain.Session{}}
}

func (s *stubSessionStore) Save(ctx context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[session.TokenHash] = &session
	return nil
}

func (s *stubSessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[tokenHash]; ok {
		copied := *sess
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubSessionStore) Extend(ctx context.Context, tokenHash string, expiresAt, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return repository.ErrNotFound
	}
	sess.ExpiresAt = expiresAt
	sess.LastSeen = lastSeen
	return nil
}

func (s *stubSessionStore) Revoke(ctx context.Context, tokenHash, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return repository.ErrNotFound
	}
	sess.Revoke(at, reason)
	return nil
}

func (s *stubSessionStore) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.IsActive(at) {
			sess.Revoke(at, reason)
			revoked++
		}
	}
	return revoked, nil
}

func (s *stubSessionStore) ListActiveByUser(ctx context.Context, userID string, at time.Time) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.IsActive(at) {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *stubSessionStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for hash, sess := range s.sessions {
		if sess.ExpiresAt.Before(cutoff) {
			delete(s.sessions, hash)
			purged++
		}
	}
	return purged, nil
}

var _ port.SessionStore = (*stubSessionStore)(nil)

// stubAttemptStore counts failures in memory without a window.
type stubAttemptStore struct {
	mu     sync.Mutex
	counts map[string]int

	incrementErr error
}

func newStubAttemptStore() *stubAttemptStore {
	return &stubAttemptStore{counts: map[string]int{}}
}

func (s *stubAttemptStore) Increment(ctx context.Context, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrementErr != nil {
		return 0, s.incrementErr
	}
	s.counts[username]++
	return s.counts[username], nil
}

func (s *stubAttemptStore) Count(ctx context.Context, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[username], nil
}

func (s *stubAttemptStore) Reset(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, username)
	return nil
}

var _ port.FailedAttemptStore = (*stubAttemptStore)(nil)

// stubHasher compares plaintext with a "hashed:" prefix so tests avoid the
// cost of real Argon2 work.
type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (stubHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "hashed:"+password, nil
}

var _ port.PasswordHasher = stubHasher{}

// stubPublisher records published events.
type stubPublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	loggedIn   []domain.UserLoggedInEvent
	revoked    []domain.SessionRevokedEvent
}

func (p *stubPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return nil
}

func (p *stubPublisher) PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedIn = append(p.loggedIn, event)
	return nil
}

func (p *stubPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, event)
	return nil
}

var _ port.EventPublisher = (*stubPublisher)(nil)

// stubProvider returns a canned claim or error.
type stubProvider struct {
	name  string
	claim domain.IdentityClaim
	err   error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Exchange(ctx context.Context, payload port.CallbackPayload) (domain.IdentityClaim, error) {
	if p.err != nil {
		return domain.IdentityClaim{}, p.err
	}
	return p.claim, nil
}

var _ port.IdentityProvider = (*stubProvider)(nil)
