package accounts

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Messages surfaced to callers.
const (
	MessageInvalidData          = "Invalid request data."
	MessageCheckEmail           = "Check your email."
	MessageActivated            = "The user has been activated successfully."
	MessageTokenRegenerated     = "The previous token has expired. Check the email and go to the new link."
	MessageTokenInvalid         = "Token does not exist."
	MessageUsernameTaken        = "Username is already taken."
	MessageEmailTaken           = "Email is already taken."
	MessageInvalidCredentials   = "Username or password is invalid."
	MessageInvalidRefreshToken  = "Invalid refresh token."
	MessageInvalidAuthorization = "Invalid authorization."
	MessageInternal             = "Internal server error."
)

const (
	TextCodeValidationFailed   = "VALIDATION_FAILED"
	TextCodeAlreadyTaken       = "ALREADY_TAKEN"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeTokenInvalid       = "TOKEN_INVALID"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeRefreshInvalid     = "REFRESH_TOKEN_INVALID"
	TextCodeAccountLookup      = "ACCOUNT_LOOKUP_FAILED"
)

// ErrInvalidCredentials is returned by login for unknown, pending and
// mismatched credentials alike.
var ErrInvalidCredentials = goerrors.New(MessageInvalidCredentials, goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrTokenInvalid is returned when no one-time token matches.
var ErrTokenInvalid = goerrors.New(MessageTokenInvalid, goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeTokenInvalid)

// ErrAccountLookup is returned when an authenticated account id resolves to nothing.
var ErrAccountLookup = goerrors.New("account lookup failed", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal).
	WithTextCode(TextCodeAccountLookup)

// ErrTokenExpired is returned when a session token is past its expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned when a session token cannot be verified.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrRefreshTokenInvalid is returned by refresh for any unusable refresh token.
var ErrRefreshTokenInvalid = goerrors.New(MessageInvalidRefreshToken, goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeRefreshInvalid)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeValidationFailed)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash.
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// NewValidationError builds the 400 outcome for field violations.
func NewValidationError(violations []FieldViolation) *goerrors.Error {
	return goerrors.New(MessageInvalidData, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidationFailed).
		WithMetadata(map[string]any{"violations": violations})
}

// NewConflictError builds the 409 outcome for a taken unique field.
func NewConflictError(field string) *goerrors.Error {
	msg := MessageInvalidData
	switch field {
	case "username":
		msg = MessageUsernameTaken
	case "email":
		msg = MessageEmailTaken
	}
	return goerrors.New(msg, goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(TextCodeAlreadyTaken).
		WithMetadata(map[string]any{"field": field})
}

// ViolationsFrom returns the field violations attached by NewValidationError.
func ViolationsFrom(err error) []FieldViolation {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	v, _ := richErr.Metadata["violations"].([]FieldViolation)
	return v
}

// IsTokenExpiredError will check for expired session tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed session tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}
