// ABOUTME: Message service client: durable conversation and message operations.
// ABOUTME: The server translates on send and assigns ids and timestamps.

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/crosstalk-chat/crosstalk/internal/chat"
)

// MessageService is the request/response interface for durable
// conversation and message state. The session controller depends on
// this rather than the concrete client so tests can substitute fakes.
type MessageService interface {
	CreateConversation(ctx context.Context, participant1ID, participant2ID string) (chat.Conversation, error)
	GetConversation(ctx context.Context, id string) (chat.Conversation, error)
	GetConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	SendMessage(ctx context.Context, req SendMessageRequest) (chat.Message, error)
	GetMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	MarkMessageRead(ctx context.Context, messageID string) error
}

// SendMessageRequest is the payload for persisting one outbound message.
// TargetLanguage overrides the recipient's preferred language when set.
// IdempotencyKey is client-generated; the server ignores repeats.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	Language       string `json:"language,omitempty"`
	TargetLanguage string `json:"translated_language,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// MessageClient implements MessageService against the chat backend.
type MessageClient struct {
	*Client
}

// NewMessageClient wraps a Client as a MessageService.
func NewMessageClient(c *Client) *MessageClient {
	return &MessageClient{Client: c}
}

var _ MessageService = (*MessageClient)(nil)

// conversationCreate is the POST /chat/conversations body.
type conversationCreate struct {
	Participant1ID string `json:"participant1_id"`
	Participant2ID string `json:"participant2_id"`
}

// persistErr maps a failed write to a PersistError.
func persistErr(status int, detail string) error {
	return &PersistError{StatusCode: status, Message: detail}
}

// CreateConversation creates a conversation between the two participants,
// or returns the existing one (the server treats the pair as unordered).
func (c *MessageClient) CreateConversation(ctx context.Context, participant1ID, participant2ID string) (chat.Conversation, error) {
	if participant1ID == "" || participant2ID == "" {
		return chat.Conversation{}, fmt.Errorf("both participant ids are required")
	}

	var conv chat.Conversation
	err := c.doJSON(ctx, http.MethodPost, "/chat/conversations",
		conversationCreate{Participant1ID: participant1ID, Participant2ID: participant2ID},
		&conv, persistErr)
	if err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches one conversation by id.
func (c *MessageClient) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	var conv chat.Conversation
	err := c.doJSON(ctx, http.MethodGet, "/chat/conversations/"+id, nil, &conv, persistErr)
	if err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

// GetConversations lists all conversations the user participates in.
func (c *MessageClient) GetConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	var convs []chat.Conversation
	err := c.doJSON(ctx, http.MethodGet, "/chat/conversations/user/"+userID, nil, &convs, persistErr)
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// SendMessage persists one message. The server translates the text for
// the recipient, attaches sentiment, and assigns id and timestamp; the
// returned Message is the confirmed record to broadcast and admit.
func (c *MessageClient) SendMessage(ctx context.Context, req SendMessageRequest) (chat.Message, error) {
	if strings.TrimSpace(req.Text) == "" {
		return chat.Message{}, fmt.Errorf("text is required")
	}
	if req.ConversationID == "" {
		return chat.Message{}, fmt.Errorf("conversation_id is required")
	}
	if req.SenderID == "" {
		return chat.Message{}, fmt.Errorf("sender_id is required")
	}

	var msg chat.Message
	err := c.doJSON(ctx, http.MethodPost, "/chat/messages", req, &msg, persistErr)
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// GetMessages fetches the message backlog for a conversation, oldest first.
func (c *MessageClient) GetMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var msgs []chat.Message
	err := c.doJSON(ctx, http.MethodGet, "/chat/messages/"+conversationID, nil, &msgs, persistErr)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkMessageRead flips the durable read flag for one message.
func (c *MessageClient) MarkMessageRead(ctx context.Context, messageID string) error {
	return c.doJSON(ctx, http.MethodPut, "/chat/messages/"+messageID+"/read", nil, nil, persistErr)
}
