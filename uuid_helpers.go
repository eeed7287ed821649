package accounts

import "github.com/google/uuid"

// AccountUUID returns the account id carried by claims as a UUID.
func AccountUUID(claims AuthClaims) (uuid.UUID, bool) {
	if claims == nil {
		return uuid.Nil, false
	}
	return parseAccountID(claims.AccountID())
}

// HasAccountUUID reports whether AccountUUID will succeed.
func HasAccountUUID(claims AuthClaims) bool {
	_, ok := AccountUUID(claims)
	return ok
}

func parseAccountID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
