// ABOUTME: Message and Conversation model types shared across the client.
// ABOUTME: Mirrors the remote message service's JSON wire format.

package chat

import (
	"time"
)

// Message is a single chat message. Once the remote message service has
// assigned ID and Timestamp the message is immutable; only Read may flip
// to true after admission.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`

	// Text is the original-language body; Language is its BCP-ish tag
	// (the backend uses plain names such as "english", "hindi").
	Text     string `json:"text"`
	Language string `json:"language"`

	// TranslatedText/TranslatedLanguage are filled server-side when the
	// recipient's preferred language differs from Language.
	TranslatedText     string `json:"translated_text,omitempty"`
	TranslatedLanguage string `json:"translated_language,omitempty"`

	// Sentiment is an optional label the backend may attach. The client
	// passes it through untouched.
	Sentiment string `json:"sentiment,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Confirmed reports whether the message carries a server-assigned id.
// A message without one is a local optimistic echo.
func (m Message) Confirmed() bool {
	return m.ID != ""
}

// DisplayText returns the translated body when present, falling back to
// the original text.
func (m Message) DisplayText() string {
	if m.TranslatedText != "" {
		return m.TranslatedText
	}
	return m.Text
}

// Conversation is a two-party durable chat thread.
type Conversation struct {
	ID             string    `json:"id"`
	Participant1ID string    `json:"participant1_id"`
	Participant2ID string    `json:"participant2_id"`
	LastMessageAt  time.Time `json:"last_message_at"`
}

// Partner resolves the other participant for the given viewer. The
// participant pair is unordered; whichever id is not the viewer's is the
// partner. Returns "" if the viewer is not a participant.
func (c Conversation) Partner(viewerID string) string {
	switch viewerID {
	case c.Participant1ID:
		return c.Participant2ID
	case c.Participant2ID:
		return c.Participant1ID
	default:
		return ""
	}
}

// Presence is the live state of one user as observed over the channel.
type Presence struct {
	Online bool
	Typing bool
}

// Profile is the cached user profile read at session start. It is
// opaque to the sync layer beyond the id and preferred language.
type Profile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	PreferredLanguage string `json:"preferred_language"`
	PhotoURL          string `json:"photo_url,omitempty"`
}
