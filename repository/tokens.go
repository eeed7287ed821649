package repository

import (
	"context"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewOneTimeTokensRepository returns the generic bun repository for
// one-time tokens.
func NewOneTimeTokensRepository(db *bun.DB) repository.Repository[*accounts.OneTimeToken] {
	return repository.NewRepository[*accounts.OneTimeToken](db, repository.ModelHandlers[*accounts.OneTimeToken]{
		NewRecord: func() *accounts.OneTimeToken { return &accounts.OneTimeToken{} },
		GetID: func(t *accounts.OneTimeToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *accounts.OneTimeToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})
}

type tokenStore struct {
	repository.Repository[*accounts.OneTimeToken]
	db *bun.DB
}

var _ accounts.OneTimeTokenStore = (*tokenStore)(nil)

func (s *tokenStore) Create(ctx context.Context, token *accounts.OneTimeToken) (*accounts.OneTimeToken, error) {
	return s.CreateTx(ctx, s.db, token)
}

func (s *tokenStore) CreateTx(ctx context.Context, tx bun.IDB, token *accounts.OneTimeToken) (*accounts.OneTimeToken, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if _, err := tx.NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, classify(err)
	}
	return token, nil
}

// FindByGrant looks a token up by the value of its purpose grant.
func (s *tokenStore) FindByGrant(ctx context.Context, purpose accounts.Purpose, token string) (*accounts.OneTimeToken, bool, error) {
	if _, err := (&accounts.OneTimeToken{}).Grant(purpose); err != nil {
		return nil, false, err
	}
	if token == "" {
		return nil, false, nil
	}

	record := &accounts.OneTimeToken{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(accounts.GrantColumn(purpose)), token).
		Limit(1).
		Scan(ctx)
	return found(record, err)
}

// UpdateGrant persists the purpose grant of token, leaving the other grant
// untouched.
func (s *tokenStore) UpdateGrant(ctx context.Context, token *accounts.OneTimeToken, purpose accounts.Purpose) (*accounts.OneTimeToken, error) {
	if _, err := token.Grant(purpose); err != nil {
		return nil, err
	}

	columns := []string{
		accounts.GrantColumn(purpose),
		string(purpose) + "_expires_at",
	}
	if token.UpdatedAt != nil {
		columns = append(columns, "updated_at")
	}

	res, err := s.db.NewUpdate().
		Model(token).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, classify(err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return nil, classify(err)
	} else if n == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": token.ID.String(),
			})
	}

	return token, nil
}
