// Package voice bridges a speech recognizer into the message compose
// path. Interim recognition results are discarded; only segments the
// recognizer marks final are committed. In auto-translate mode each
// final segment passes through the translation service before commit,
// falling back to the original text if translation fails, and at most
// one translation is in flight per bridge so fragments never interleave
// out of order.
package voice
