// Package accounts provides account registration, credential verification,
// session token issuance and email-confirmed activation.
//
// Account lifecycle:
//   - Signup persists an Account in the pending state (IsActivated false)
//     together with a OneTimeToken carrying an activation grant, then hands
//     the token to a Notifier.
//   - Login only ever sees activated accounts. Unknown usernames, pending
//     accounts and wrong passwords all collapse into ErrInvalidCredentials.
//   - Activate consumes an activation token. A token that has reached its
//     expiry is regenerated in place and re-sent instead of being honored.
//
// One-time tokens:
//   - A OneTimeToken owns one TokenGrant per Purpose. Activation is the only
//     purpose exercised today; the reset grant is stored but never issued.
//   - TokenKeeper generates, evaluates and regenerates grants using an
//     injectable clock so expiry can be simulated in tests.
//
// Stores:
//   - AccountStore and OneTimeTokenStore report lookups as (record, found,
//     err) and classify write failures as *StoreError (conflict, invalid,
//     unavailable). The repository subpackage provides bun implementations.
//
// Activity sinks:
//   - ActivitySink receives signup, login, activation, regeneration and
//     refresh events. Sinks run best-effort (errors are logged).
package accounts
