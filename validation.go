package accounts

import (
	"errors"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	MinUsernameLength = 4
	MinEmailLength    = 4
	MinPasswordLength = 8
)

var usernameLetters = regexp.MustCompile(`(?i)[a-z]`)

// FieldViolation describes a single rejected field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AccountInput is the candidate shape of an account before hashing.
type AccountInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidateAccount checks an account candidate and returns every violation
// found, ordered by field name. Uniqueness is left to the store.
func ValidateAccount(in AccountInput) []FieldViolation {
	err := validation.ValidateStruct(&in,
		validation.Field(
			&in.Username,
			validation.Required.Error("username is required"),
			validation.Length(MinUsernameLength, 0).Error("username must be at least 4 characters"),
			validation.Match(usernameLetters).Error("username must contain a letter"),
		),
		validation.Field(
			&in.Email,
			validation.Required.Error("email is required"),
			validation.Length(MinEmailLength, 0).Error("email must be at least 4 characters"),
			is.Email.Error("email must be a valid address"),
		),
		validation.Field(
			&in.Password,
			validation.Required.Error("password is required"),
			validation.Length(MinPasswordLength, 0).Error("password must be at least 8 characters"),
		),
	)
	return violationsFromOzzo(err)
}

func violationsFromOzzo(err error) []FieldViolation {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return []FieldViolation{{Message: err.Error()}}
	}

	out := make([]FieldViolation, 0, len(errs))
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		out = append(out, FieldViolation{Field: field, Message: fieldErr.Error()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
