// Package creds persists the client's access token and cached user
// profile between runs. The store is a small local SQLite database:
// loaded at startup, saved on login, cleared on logout. Tokens are
// opaque to the sync layer; the only introspection is an unverified
// expiry check so the client knows when to prompt for re-login.
package creds
