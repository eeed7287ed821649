//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/repository"
)

func setupPostgresManager(t *testing.T) *repository.Manager {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("accounts_test"),
		postgres.WithUsername("accounts"),
		postgres.WithPassword("accounts"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := repository.Open(repository.DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, repository.Migrate(ctx, db, nil))
	return repository.NewRepositoryManager(db)
}

func TestPostgres_UniqueViolationsAreConflicts(t *testing.T) {
	m := setupPostgresManager(t)
	ctx := context.Background()

	_, err := m.Accounts().Create(ctx, newAccount("alice", "alice@x.com"))
	require.NoError(t, err)

	_, err = m.Accounts().Create(ctx, newAccount("alice", "other@x.com"))
	storeErr := storeKind(t, err)
	assert.Equal(t, accounts.StoreConflict, storeErr.Kind)
	assert.Equal(t, "username", storeErr.Field)

	_, err = m.Accounts().Create(ctx, newAccount("bob", "alice@x.com"))
	assert.Equal(t, "email", storeKind(t, err).Field)
}

func TestPostgres_FullLifecycle(t *testing.T) {
	m := setupPostgresManager(t)
	box := &mailbox{}
	life := newLifecycle(t, m, box)
	ctx := context.Background()

	require.NoError(t, life.Signup.Execute(ctx, accounts.SignupMessage{
		Username: "alice",
		Password: "longpassword1",
		Email:    "alice@x.com",
	}))

	require.NoError(t, life.Activate.Execute(ctx, accounts.ActivateMessage{Token: box.last(t)}))

	var login *accounts.LoginResponse
	require.NoError(t, life.Login.Execute(ctx, accounts.LoginMessage{
		Username:   "alice",
		Password:   "longpassword1",
		OnResponse: func(r *accounts.LoginResponse) { login = r },
	}))
	require.NotNil(t, login)
	assert.NotEmpty(t, login.Session.AccessToken)
}
