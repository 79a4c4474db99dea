// Package reconcile merges messages arriving from the durable API path
// and the live channel into one ordered, duplicate-free sequence.
//
// A candidate is a duplicate of an admitted message when their
// server-assigned ids match, or when text and sender match within a
// one-second timestamp window. The window rule exists because the
// optimistic local echo and the channel echo of the same send can both
// arrive before they share an id; it can misclassify two genuinely
// distinct identical messages sent inside one second, which is why
// outbound sends additionally carry client-generated idempotency keys
// that the reconciler tracks exactly.
package reconcile
