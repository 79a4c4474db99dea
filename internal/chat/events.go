// ABOUTME: Wire event names and payloads for the realtime channel.
// ABOUTME: Outbound and inbound events share one JSON envelope format.

package chat

// Channel event names. Outbound events are emitted by this client;
// inbound events are dispatched to registered handlers. The server
// echoes send_message back to conversation members as new_message.
const (
	// Outbound.
	EventUserOnline        = "user_online"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTyping            = "typing"
	EventMessageRead       = "message_read"

	// Inbound.
	EventNewMessage         = "new_message"
	EventUserTyping         = "user_typing"
	EventUserOffline        = "user_offline"
	EventJoinedConversation = "joined_conversation"
)

// PresencePayload announces a user coming online or going offline.
type PresencePayload struct {
	UserID string `json:"user_id"`
}

// JoinPayload scopes the connection to a conversation's event stream.
// The same shape is used for join, leave, and the joined confirmation.
type JoinPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// TypingPayload signals a typing-indicator change.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// ReadPayload acknowledges that a specific message was read.
type ReadPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	UserID         string `json:"user_id"`
}
