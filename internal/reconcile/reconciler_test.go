// ABOUTME: Tests for reconciler admission, dedup, and read-state mutation.
// ABOUTME: Covers echo suppression, idempotency keys, and malformed rejection.

package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstalk-chat/crosstalk/internal/chat"
)

func testMessage(id, sender, text string, ts time.Time) chat.Message {
	return chat.Message{
		ID:             id,
		ConversationID: "conv-1",
		SenderID:       sender,
		Text:           text,
		Timestamp:      ts,
	}
}

func TestReconciler_AdmitIdempotentByID(t *testing.T) {
	r := New(nil)
	now := time.Now()

	m := testMessage("srv1", "alice", "hello", now)
	assert.Equal(t, Accepted, r.Admit(m))
	assert.Equal(t, Duplicate, r.Admit(m))
	assert.Equal(t, 1, r.Len())
}

func TestReconciler_NearDuplicateSuppression(t *testing.T) {
	// Optimistic local echo has no id yet; the channel echo of the same
	// send arrives 300ms later with a server id. Only one survives.
	r := New(nil)
	now := time.Now()

	local := testMessage("", "alice", "hi", now)
	remote := testMessage("srv123", "alice", "hi", now.Add(300*time.Millisecond))

	assert.Equal(t, Accepted, r.Admit(local))
	assert.Equal(t, Duplicate, r.Admit(remote))

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestReconciler_DistinctMessagesOutsideWindow(t *testing.T) {
	// Same text and sender, but 2s apart: two genuine messages.
	r := New(nil)
	now := time.Now()

	first := testMessage("srv1", "alice", "ok", now)
	second := testMessage("srv2", "alice", "ok", now.Add(2*time.Second))

	assert.Equal(t, Accepted, r.Admit(first))
	assert.Equal(t, Accepted, r.Admit(second))
	assert.Equal(t, 2, r.Len())
}

func TestReconciler_AdmissionOrderPreserved(t *testing.T) {
	r := New(nil)
	now := time.Now()

	// Arrival order wins even when timestamps disagree.
	assert.Equal(t, Accepted, r.Admit(testMessage("b", "alice", "second", now.Add(5*time.Second))))
	assert.Equal(t, Accepted, r.Admit(testMessage("a", "bob", "first", now)))

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Text)
	assert.Equal(t, "first", msgs[1].Text)
}

func TestReconciler_RejectsMalformed(t *testing.T) {
	r := New(nil)
	now := time.Now()

	assert.Equal(t, Rejected, r.Admit(testMessage("m1", "", "hello", now)))
	assert.Equal(t, Rejected, r.Admit(testMessage("m2", "alice", "", now)))
	assert.Equal(t, 0, r.Len())
}

func TestReconciler_IdempotencyKeyDuplicate(t *testing.T) {
	r := New(nil)
	now := time.Now()

	// Identical sends inside the window are indistinguishable to the
	// heuristic, so the client key is what separates retry from intent.
	first := testMessage("srv1", "alice", "yes", now)
	retry := testMessage("srv2", "alice", "yes", now.Add(5*time.Second))

	assert.Equal(t, Accepted, r.AdmitKeyed(first, "key-1"))
	assert.Equal(t, Duplicate, r.AdmitKeyed(retry, "key-1"))
	assert.Equal(t, 1, r.Len())
}

func TestReconciler_MarkRead(t *testing.T) {
	r := New(nil)
	now := time.Now()

	require.Equal(t, Accepted, r.Admit(testMessage("srv1", "alice", "hello", now)))

	assert.True(t, r.MarkRead("srv1"))
	assert.True(t, r.Messages()[0].Read)

	assert.False(t, r.MarkRead("unknown"))
	assert.False(t, r.MarkRead(""))
}

func TestReconciler_MessagesReturnsCopy(t *testing.T) {
	r := New(nil)
	require.Equal(t, Accepted, r.Admit(testMessage("srv1", "alice", "hello", time.Now())))

	msgs := r.Messages()
	msgs[0].Text = "mutated"

	assert.Equal(t, "hello", r.Messages()[0].Text)
}

func TestReconciler_RecentWindowBounded(t *testing.T) {
	// A long-lived session must not scan the whole history per admit:
	// admission stays correct after far more messages than the recent cap.
	r := New(nil)
	now := time.Now()

	for i := 0; i < maxRecent*2; i++ {
		m := testMessage(fmt.Sprintf("srv%d", i), "alice", fmt.Sprintf("msg %d", i),
			now.Add(time.Duration(i)*2*time.Second))
		require.Equal(t, Accepted, r.Admit(m))
	}
	assert.Equal(t, maxRecent*2, r.Len())
	assert.LessOrEqual(t, r.recent.Len(), maxRecent)

	// Dedup still applies to the newest admission.
	last := testMessage("", "alice", fmt.Sprintf("msg %d", maxRecent*2-1),
		now.Add(time.Duration(maxRecent*2-1)*2*time.Second))
	assert.Equal(t, Duplicate, r.Admit(last))
}

func TestKeyCache_ExpiryAndEviction(t *testing.T) {
	c := newKeyCache(50*time.Millisecond, 2)

	assert.False(t, c.checkAndMark("a"))
	assert.True(t, c.checkAndMark("a"))

	// Capacity 2: inserting a third key evicts the oldest.
	assert.False(t, c.checkAndMark("b"))
	assert.False(t, c.checkAndMark("c"))
	assert.False(t, c.checkAndMark("a"), "oldest key evicted")

	time.Sleep(60 * time.Millisecond)
	assert.False(t, c.checkAndMark("c"), "expired key counts as unseen")
}
