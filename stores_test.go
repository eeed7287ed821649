package accounts_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// memoryStores is an in-process accounts.Stores used by lifecycle tests.
type memoryStores struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*accounts.Account
	tokens   map[uuid.UUID]*accounts.OneTimeToken
	failWith error
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		accounts: map[uuid.UUID]*accounts.Account{},
		tokens:   map[uuid.UUID]*accounts.OneTimeToken{},
	}
}

func (m *memoryStores) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *memoryStores) Accounts() accounts.AccountStore { return (*memoryAccounts)(m) }

func (m *memoryStores) Tokens() accounts.OneTimeTokenStore { return (*memoryTokens)(m) }

func (m *memoryStores) account(username string) *accounts.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == username {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (m *memoryStores) tokenFor(accountID uuid.UUID) *accounts.OneTimeToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.CreatorID == accountID {
			cp := *t
			return &cp
		}
	}
	return nil
}

type memoryAccounts memoryStores

func (s *memoryAccounts) Create(ctx context.Context, account *accounts.Account) (*accounts.Account, error) {
	return s.CreateTx(ctx, nil, account)
}

func (s *memoryAccounts) CreateTx(_ context.Context, _ bun.IDB, account *accounts.Account) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, accounts.Unavailable(s.failWith)
	}
	if _, taken := s.accounts[account.ID]; taken && account.ID != uuid.Nil {
		return nil, accounts.Conflict("id", errors.New("duplicate primary key"))
	}
	for _, existing := range s.accounts {
		if existing.Username == account.Username {
			return nil, accounts.Conflict("username", errors.New("duplicate username"))
		}
		if existing.Email == account.Email {
			return nil, accounts.Conflict("email", errors.New("duplicate email"))
		}
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return account, nil
}

func (s *memoryAccounts) FindByID(_ context.Context, id uuid.UUID) (*accounts.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

func (s *memoryAccounts) FindActiveByUsername(_ context.Context, username string) (*accounts.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == username && a.IsActivated {
			cp := *a
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (s *memoryAccounts) MarkActivated(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return false, nil
	}
	a.IsActivated = true
	if a.ActivatedAt == nil {
		a.ActivatedAt = &at
	}
	return true, nil
}

type memoryTokens memoryStores

func (s *memoryTokens) Create(ctx context.Context, token *accounts.OneTimeToken) (*accounts.OneTimeToken, error) {
	return s.CreateTx(ctx, nil, token)
}

func (s *memoryTokens) CreateTx(_ context.Context, _ bun.IDB, token *accounts.OneTimeToken) (*accounts.OneTimeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	cp := *token
	s.tokens[token.ID] = &cp
	return token, nil
}

func (s *memoryTokens) FindByGrant(_ context.Context, purpose accounts.Purpose, raw string) (*accounts.OneTimeToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		grant, err := t.Grant(purpose)
		if err != nil {
			return nil, false, err
		}
		if grant.Token == raw {
			cp := *t
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (s *memoryTokens) UpdateGrant(_ context.Context, token *accounts.OneTimeToken, purpose accounts.Purpose) (*accounts.OneTimeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token.ID]
	if !ok {
		return nil, accounts.Unavailable(errors.New("token not stored"))
	}
	src, err := token.Grant(purpose)
	if err != nil {
		return nil, err
	}
	dst, _ := stored.Grant(purpose)
	*dst = *src
	cp := *stored
	return &cp, nil
}
