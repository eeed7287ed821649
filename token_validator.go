package accounts

import "github.com/goliatone/go-accounts/middleware/jwtware"

// AccessTokenValidator exposes the access side of a TokenService to the
// jwtware middleware.
func AccessTokenValidator(ts *TokenService) jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
		claims, err := ts.ValidateAccess(raw)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}
