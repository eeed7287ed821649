package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-accounts"
	"github.com/uptrace/bun"
)

// Manager bundles the bun backed stores and the transactions spanning them.
type Manager struct {
	db       *bun.DB
	accounts *accountStore
	tokens   *tokenStore
}

var _ accounts.Stores = (*Manager)(nil)

func NewRepositoryManager(db *bun.DB) *Manager {
	return &Manager{
		db: db,
		accounts: &accountStore{
			Repository: NewAccountsRepository(db),
			db:         db,
		},
		tokens: &tokenStore{
			Repository: NewOneTimeTokensRepository(db),
			db:         db,
		},
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return accounts.Unavailable(ctx.Err())
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *Manager) Accounts() accounts.AccountStore {
	return m.accounts
}

func (m *Manager) Tokens() accounts.OneTimeTokenStore {
	return m.tokens
}

// DB returns the underlying connection.
func (m *Manager) DB() *bun.DB {
	return m.db
}
