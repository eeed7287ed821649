package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewAccountsRepository returns the generic bun repository for accounts.
func NewAccountsRepository(db *bun.DB) repository.Repository[*accounts.Account] {
	return repository.NewRepository[*accounts.Account](db, repository.ModelHandlers[*accounts.Account]{
		NewRecord: func() *accounts.Account { return &accounts.Account{} },
		GetID: func(a *accounts.Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *accounts.Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})
}

type accountStore struct {
	repository.Repository[*accounts.Account]
	db *bun.DB
}

var _ accounts.AccountStore = (*accountStore)(nil)

func (s *accountStore) Create(ctx context.Context, account *accounts.Account) (*accounts.Account, error) {
	return s.CreateTx(ctx, s.db, account)
}

func (s *accountStore) CreateTx(ctx context.Context, tx bun.IDB, account *accounts.Account) (*accounts.Account, error) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	// inserted on tx only: sqlite runs on a single connection and a lookup
	// through the pool would block until the transaction ends
	if _, err := tx.NewInsert().Model(account).Exec(ctx); err != nil {
		return nil, classify(err)
	}
	return account, nil
}

func (s *accountStore) FindByID(ctx context.Context, id uuid.UUID) (*accounts.Account, bool, error) {
	record, err := s.Repository.GetByID(ctx, id.String())
	return found(record, err)
}

// FindActiveByUsername only resolves activated accounts. Pending accounts
// are indistinguishable from unknown ones.
func (s *accountStore) FindActiveByUsername(ctx context.Context, username string) (*accounts.Account, bool, error) {
	record := &accounts.Account{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		Where("?TableAlias.is_activated = ?", true).
		Limit(1).
		Scan(ctx)
	return found(record, err)
}

// MarkActivated flips the account to active. The first activation time is
// kept when the account was already active.
func (s *accountStore) MarkActivated(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*accounts.Account)(nil)).
		Set("is_activated = ?", true).
		Set("activated_at = COALESCE(activated_at, ?)", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

func found[T any](record *T, err error) (*T, bool, error) {
	if err == nil {
		return record, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return nil, false, nil
	}
	return nil, false, classify(err)
}
