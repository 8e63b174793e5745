package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/repository"
)

func newUserFixture(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewUserRepository(mock)
}

func sampleUser() domain.User {
	registeredAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return domain.User{
		ID:                 "user-123",
		Username:           "alice",
		Email:              "alice@example.com",
		PasswordHash:       "argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		PasswordAlgo:       "argon2id",
		Status:             domain.UserStatusActive,
		RegisteredAt:       registeredAt,
		LastPasswordChange: registeredAt,
	}
}

func TestUserRepository_Create(t *testing.T) {
	mock, repo := newUserFixture(t)
	user := sampleUser()

	mock.ExpectExec(`INSERT INTO auth\.users`).
		WithArgs(
			user.ID,
			user.Username,
			user.Email,
			nil,
			user.PasswordHash,
			user.PasswordAlgo,
			nil,
			user.Status,
			user.RegisteredAt,
			nil,
			user.LastPasswordChange,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateDuplicateUsername(t *testing.T) {
	mock, repo := newUserFixture(t)

	mock.ExpectExec(`INSERT INTO auth\.users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := repo.Create(context.Background(), sampleUser())
	if !errors.Is(err, repository.ErrDuplicateKey) {
		t.Fatalf("error = %v, want ErrDuplicateKey", err)
	}
}

func TestUserRepository_GetByUsernameNotFound(t *testing.T) {
	mock, repo := newUserFixture(t)

	mock.ExpectQuery(`SELECT .+ FROM auth\.users`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	mock, repo := newUserFixture(t)
	user := sampleUser()
	ha1 := "6c1cc3f2c224e2c5e1b9a7c69f0e1b7a"

	rows := pgxmock.NewRows([]string{
		"id", "username", "email", "display_name", "password_hash",
		"password_algo", "digest_ha1", "status", "registered_at",
		"last_login", "last_password_change",
	}).AddRow(
		user.ID, user.Username, user.Email, "", user.PasswordHash,
		user.PasswordAlgo, ha1, user.Status, user.RegisteredAt,
		(*time.Time)(nil), user.LastPasswordChange,
	)

	mock.ExpectQuery(`SELECT .+ FROM auth\.users`).
		WithArgs(user.Username).
		WillReturnRows(rows)

	got, err := repo.GetByUsername(context.Background(), user.Username)
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("id = %q, want %q", got.ID, user.ID)
	}
	if got.DigestHA1 == nil || *got.DigestHA1 != ha1 {
		t.Errorf("digest HA1 = %v, want %q", got.DigestHA1, ha1)
	}
}

func TestUserRepository_LinkExternalIdentityAlreadyLinked(t *testing.T) {
	mock, repo := newUserFixture(t)

	mock.ExpectExec(`INSERT INTO auth\.external_identities`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: "external_identities_provider_external_id_key",
		})

	err := repo.LinkExternalIdentity(context.Background(), domain.ExternalIdentity{
		ID: "link-1", UserID: "user-123", Provider: "github", ExternalID: "9001",
		CreatedAt: time.Now().UTC(),
	})
	if !errors.Is(err, repository.ErrAlreadyLinked) {
		t.Fatalf("error = %v, want ErrAlreadyLinked", err)
	}
}

func TestUserRepository_CreateWithExternalIdentity(t *testing.T) {
	mock, repo := newUserFixture(t)
	user := sampleUser()
	identity := domain.ExternalIdentity{
		ID:         "link-1",
		UserID:     user.ID,
		Provider:   "github",
		ExternalID: "9001",
		CreatedAt:  user.RegisteredAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO auth\.users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO auth\.external_identities`).
		WithArgs(identity.ID, identity.UserID, identity.Provider, identity.ExternalID,
			nil, pgxmock.AnyArg(), identity.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.CreateWithExternalIdentity(context.Background(), user, identity); err != nil {
		t.Fatalf("CreateWithExternalIdentity: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateWithExternalIdentityRollsBackOnConflict(t *testing.T) {
	mock, repo := newUserFixture(t)
	user := sampleUser()
	identity := domain.ExternalIdentity{
		ID: "link-1", UserID: user.ID, Provider: "github", ExternalID: "9001",
		CreatedAt: user.RegisteredAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO auth\.users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO auth\.external_identities`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: "external_identities_provider_external_id_key",
		})
	mock.ExpectRollback()

	err := repo.CreateWithExternalIdentity(context.Background(), user, identity)
	if !errors.Is(err, repository.ErrAlreadyLinked) {
		t.Fatalf("error = %v, want ErrAlreadyLinked", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_RecordLoginNotFound(t *testing.T) {
	mock, repo := newUserFixture(t)

	mock.ExpectExec(`UPDATE auth\.users`).
		WithArgs(pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.RecordLogin(context.Background(), "ghost", time.Now().UTC())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
