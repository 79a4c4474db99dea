// ABOUTME: Message reconciler: admission-ordered, duplicate-free message sequence.
// ABOUTME: Dedupes by server id, idempotency key, or text+sender time window.

package reconcile

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/crosstalk-chat/crosstalk/internal/chat"
)

// AdmitResult is the outcome of offering a message to the reconciler.
type AdmitResult int

const (
	// Accepted means the message was appended; callers should re-render.
	Accepted AdmitResult = iota
	// Duplicate means the message was already admitted; no-op.
	Duplicate
	// Rejected means the candidate was malformed; dropped and logged.
	Rejected
)

func (r AdmitResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

const (
	// duplicateWindow is the timestamp tolerance under which a same-text
	// same-sender candidate is treated as an echo of an admitted message.
	duplicateWindow = time.Second

	keyTTL    = 5 * time.Minute
	maxKeys   = 10_000
	maxRecent = 256
)

// Reconciler merges messages from the API and channel paths into one
// ordered sequence. Admission order is arrival order; no re-sorting.
// Safe for concurrent use.
type Reconciler struct {
	mu        sync.RWMutex
	messages  []chat.Message
	indexByID map[string]int

	// recent holds indexes of the latest admissions for the time-window
	// duplicate check, pruned against each candidate's timestamp so a
	// single admit stays O(1) with respect to history length.
	recent *list.List

	keys   *keyCache
	logger *slog.Logger
}

// New creates an empty reconciler. Pass nil logger for the default.
func New(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		indexByID: make(map[string]int),
		recent:    list.New(),
		keys:      newKeyCache(keyTTL, maxKeys),
		logger:    logger.With("component", "reconciler"),
	}
}

// Admit offers a message to the sequence. Duplicates are no-ops;
// malformed candidates are rejected and logged. Never panics.
func (r *Reconciler) Admit(m chat.Message) AdmitResult {
	return r.AdmitKeyed(m, "")
}

// AdmitKeyed is Admit for messages that carry a client-generated
// idempotency key: a repeated key is a duplicate regardless of the
// window heuristic.
func (r *Reconciler) AdmitKeyed(m chat.Message, idempotencyKey string) AdmitResult {
	if m.SenderID == "" || m.Text == "" {
		r.logger.Warn("rejecting malformed message",
			"message_id", m.ID,
			"has_sender", m.SenderID != "",
			"has_text", m.Text != "",
		)
		return Rejected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if idempotencyKey != "" && r.keys.checkAndMark(idempotencyKey) {
		return Duplicate
	}

	if r.isDuplicateLocked(m) {
		return Duplicate
	}

	idx := len(r.messages)
	r.messages = append(r.messages, m)
	if m.ID != "" {
		r.indexByID[m.ID] = idx
	}

	r.recent.PushBack(idx)
	r.pruneRecentLocked(m.Timestamp)

	return Accepted
}

// isDuplicateLocked applies the dedup rule: equal non-empty ids, or
// same text+sender within the duplicate window.
func (r *Reconciler) isDuplicateLocked(m chat.Message) bool {
	if m.ID != "" {
		if _, ok := r.indexByID[m.ID]; ok {
			return true
		}
	}

	for e := r.recent.Front(); e != nil; e = e.Next() {
		idx, _ := e.Value.(int)
		existing := r.messages[idx]
		if existing.Text == m.Text && existing.SenderID == m.SenderID &&
			absDuration(m.Timestamp.Sub(existing.Timestamp)) < duplicateWindow {
			return true
		}
	}
	return false
}

// pruneRecentLocked drops recent-window entries that can no longer match
// any future candidate: older than the window relative to the newest
// admission, or beyond the size cap.
func (r *Reconciler) pruneRecentLocked(newest time.Time) {
	for r.recent.Len() > maxRecent {
		r.recent.Remove(r.recent.Front())
	}
	for front := r.recent.Front(); front != nil; front = r.recent.Front() {
		idx, _ := front.Value.(int)
		if newest.Sub(r.messages[idx].Timestamp) <= duplicateWindow {
			return
		}
		r.recent.Remove(front)
	}
}

// Messages returns a copy of the admitted sequence in admission order.
func (r *Reconciler) Messages() []chat.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chat.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Len returns the number of admitted messages.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// MarkRead flips the read flag of an admitted message. This is the only
// permitted mutation after admission. Returns false if the id is unknown.
func (r *Reconciler) MarkRead(messageID string) bool {
	if messageID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.indexByID[messageID]
	if !ok {
		return false
	}
	r.messages[idx].Read = true
	return true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
