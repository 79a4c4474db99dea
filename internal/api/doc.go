// Package api provides HTTP clients for the two remote collaborators of
// the sync layer: the message service (durable conversations/messages,
// server-side translation on send) and the translation service (manual
// text translation for the voice bridge).
//
// # Error taxonomy
//
// Failures map onto the classes the session controller distinguishes:
//
//   - ErrNetworkUnavailable: the request never reached the server
//   - ErrNotFound: the entity does not exist (404)
//   - PersistError: the durable write failed; retryable, surfaced to
//     the caller of SendMessage
//   - TranslationError: translation failed; absorbed by callers, which
//     fall back to source-language text
//
// All errors support errors.Is/errors.As.
package api
