// ABOUTME: Tests for conversation partner resolution and message helpers.
// ABOUTME: Covers the unordered participant pair and translation fallback.

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversation_Partner(t *testing.T) {
	conv := Conversation{
		ID:             "c1",
		Participant1ID: "alice",
		Participant2ID: "bob",
	}

	assert.Equal(t, "bob", conv.Partner("alice"))
	assert.Equal(t, "alice", conv.Partner("bob"))
	assert.Equal(t, "", conv.Partner("mallory"), "non-participant has no partner")
}

func TestMessage_DisplayText(t *testing.T) {
	m := Message{Text: "Hello", Language: "english"}
	assert.Equal(t, "Hello", m.DisplayText())

	m.TranslatedText = "नमस्ते"
	m.TranslatedLanguage = "hindi"
	assert.Equal(t, "नमस्ते", m.DisplayText())
}

func TestMessage_Confirmed(t *testing.T) {
	assert.False(t, Message{}.Confirmed())
	assert.True(t, Message{ID: "m1"}.Confirmed())
}
