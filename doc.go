// Package auth manages users, the keys that link external identities to
// them, and sessions, on top of a pluggable storage Adapter.
//
// Storage:
//   - Adapter bundles UserAdapter and SessionAdapter. Adapters report domain
//     conditions with the package error values (ErrUserNotFound,
//     ErrDuplicateKey, NewConstraintViolation...). Anything else is classified
//     as transient (timeouts, connectivity) or as an adapter failure.
//   - CreateUserWithKey is the atomic composite operation: a user and its first
//     key are stored together or not at all.
//   - Adapters implementing Transactor run user deletion in one transaction.
//     CombineAdapters pairs a user store with a separate session store.
//
// Users and keys:
//   - Auth.CreateUser generates the id, pre-checks collisions and delegates
//     the atomic insert. The AttributeMapper projects stored records into the
//     attributes callers see, the id is always re-injected from storage.
//   - Auth.UseKey verifies a secret and fails with ErrInvalidCredentials
//     whether the key is missing or the secret is wrong.
//
// Sessions:
//   - Expiration is evaluated when a session is read, expired sessions are
//     never returned and are deleted best effort.
//   - Auth.UpdateUserAttributes never revokes sessions on its own. Call
//     Auth.InvalidateAllUserSessions after privilege or password changes.
//
// Activity sinks:
//   - ActivitySink receives audit events for user, key and session changes.
//     Sinks run best-effort (errors are logged).
package auth
