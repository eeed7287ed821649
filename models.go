package accounts

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Purpose names the sub-record of a OneTimeToken a grant belongs to.
type Purpose string

const (
	// PurposeActivation confirms the account's email address
	PurposeActivation Purpose = "activation"
	// PurposeReset is reserved for a password reset flow
	PurposeReset Purpose = "reset"
)

func (p Purpose) String() string { return string(p) }

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActivated   bool       `bun:"is_activated,notnull" json:"is_activated"`
	ActivatedAt   *time.Time `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// TokenGrant is a single-use token scoped to one purpose.
type TokenGrant struct {
	Token     string     `bun:"token,nullzero" json:"token,omitempty"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
}

// IsZero reports whether the grant was never issued.
func (g TokenGrant) IsZero() bool {
	return g.Token == "" && g.ExpiresAt == nil
}

// OneTimeToken holds the per-purpose grants issued to an account.
type OneTimeToken struct {
	bun.BaseModel `bun:"table:one_time_tokens,alias:ott"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	CreatorID     uuid.UUID  `bun:"creator_id,notnull,type:uuid" json:"creator_id,omitempty"`
	Creator       *Account   `bun:"rel:belongs-to,join:creator_id=id" json:"creator,omitempty"`
	Activation    TokenGrant `bun:"embed:activation_" json:"activation"`
	Reset         TokenGrant `bun:"embed:reset_" json:"reset"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Grant returns the sub-record for purpose.
func (t *OneTimeToken) Grant(purpose Purpose) (*TokenGrant, error) {
	switch purpose {
	case PurposeActivation:
		return &t.Activation, nil
	case PurposeReset:
		return &t.Reset, nil
	}
	return nil, goerrors.New("unknown token purpose", goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"purpose": string(purpose)})
}

// GrantColumn returns the token column backing purpose.
func GrantColumn(purpose Purpose) string {
	return string(purpose) + "_token"
}
