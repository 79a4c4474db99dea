// ABOUTME: Conversation session controller: lifecycle, presence, typing, sends.
// ABOUTME: Sequences persist, channel broadcast, and reconciler admission.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crosstalk-chat/crosstalk/internal/api"
	"github.com/crosstalk-chat/crosstalk/internal/chat"
	"github.com/crosstalk-chat/crosstalk/internal/reconcile"
	"github.com/crosstalk-chat/crosstalk/internal/transport"
)

// State is the lifecycle phase of a session.
type State int

const (
	Idle State = iota
	Connecting
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotActive is returned for operations on a session that has not
	// finished opening or has been closed.
	ErrNotActive = errors.New("session is not active")
	// ErrEmptyMessage is returned when a send's text is empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")
)

// UpdateKind tells a renderer what changed.
type UpdateKind int

const (
	// UpdateMessages means the admitted message sequence changed.
	UpdateMessages UpdateKind = iota
	// UpdatePresence means a presence or typing flag changed.
	UpdatePresence
	// UpdateDegraded means the channel gave up reconnecting.
	UpdateDegraded
)

// Update is one change notification delivered on Updates().
type Update struct {
	Kind UpdateKind
}

const (
	// DefaultTypingIdle is how long after the last NoteActivity call the
	// typing indicator is cleared.
	DefaultTypingIdle = time.Second

	updateBufferSize = 64
)

// Options tunes a session controller.
type Options struct {
	// TypingIdle overrides the idle threshold for clearing the typing
	// indicator. Zero means DefaultTypingIdle.
	TypingIdle time.Duration
	// TargetLanguage is sent with every persist request, typically the
	// partner's preferred language. Empty lets the server translate for
	// the recipient's stored preference.
	TargetLanguage string
}

// handlerReg records one channel subscription so Close can detach it.
type handlerReg struct {
	event string
	id    string
}

// Controller owns the state of one open conversation. All mutable
// state lives behind one mutex; channel handlers and callers may touch
// it from any goroutine.
type Controller struct {
	conv           chat.Conversation
	userID         string
	language       string
	targetLanguage string

	channel  transport.Channel
	svc      api.MessageService
	messages *reconcile.Reconciler
	logger   *slog.Logger

	typingIdle time.Duration
	updates    chan Update

	mu            sync.Mutex
	state         State
	presence      map[string]chat.Presence
	pending       int
	degraded      bool
	restoredInput string
	subs          []handlerReg
	typingActive  bool
	typingTimer   *time.Timer
}

// New creates a controller for one conversation. The channel and
// message service are injected so tests can substitute fakes; the
// controller never owns the channel's connection lifetime beyond
// joining and leaving its conversation scope.
func New(conv chat.Conversation, userID, language string, ch transport.Channel, svc api.MessageService, opts Options, logger *slog.Logger) *Controller {
	if opts.TypingIdle <= 0 {
		opts.TypingIdle = DefaultTypingIdle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		conv:           conv,
		userID:         userID,
		language:       language,
		targetLanguage: opts.TargetLanguage,
		channel:        ch,
		svc:            svc,
		messages:       reconcile.New(logger),
		logger:         logger.With("component", "session", "conversation_id", conv.ID),
		typingIdle:     opts.TypingIdle,
		updates:        make(chan Update, updateBufferSize),
		presence:       make(map[string]chat.Presence),
	}
}

// Open connects the channel, announces presence, joins the conversation
// scope, and seeds the reconciler with the persisted backlog. It is the
// Idle -> Connecting -> Active transition; a session can be opened once.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("session already %s", state)
	}
	c.state = Connecting
	c.mu.Unlock()

	c.channel.NotifyDegraded(c.onDegraded)

	// A failed connect degrades live signaling but the session still
	// opens: sends persist through the message service regardless.
	if err := c.channel.Connect(ctx); err != nil {
		c.logger.Warn("channel connect failed, continuing degraded", "error", err)
	}

	c.subscribe(chat.EventNewMessage, c.onNewMessage)
	c.subscribe(chat.EventUserTyping, c.onUserTyping)
	c.subscribe(chat.EventUserOnline, c.onUserOnline)
	c.subscribe(chat.EventUserOffline, c.onUserOffline)
	c.subscribe(chat.EventJoinedConversation, c.onJoinedConversation)

	c.channel.Emit(chat.EventUserOnline, chat.PresencePayload{UserID: c.userID})
	c.channel.Emit(chat.EventJoinConversation, chat.JoinPayload{
		ConversationID: c.conv.ID,
		UserID:         c.userID,
	})

	backlog, err := c.svc.GetMessages(ctx, c.conv.ID)
	if err != nil {
		c.detach()
		c.mu.Lock()
		c.state = Idle
		c.mu.Unlock()
		return fmt.Errorf("fetching message backlog: %w", err)
	}
	for _, m := range backlog {
		c.messages.Admit(m)
	}

	c.mu.Lock()
	c.state = Active
	c.mu.Unlock()

	c.logger.Info("session active", "backlog", len(backlog))
	c.notify(UpdateMessages)
	return nil
}

// Close leaves the conversation scope and detaches all channel handlers
// synchronously; no callbacks fire after Close returns. The underlying
// connection stays open for reuse. Closing twice is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.typingActive = false
	c.mu.Unlock()

	c.detach()
	c.channel.Emit(chat.EventLeaveConversation, chat.JoinPayload{
		ConversationID: c.conv.ID,
		UserID:         c.userID,
	})
	c.logger.Info("session closed")
}

// SendMessage persists one outbound message, broadcasts the confirmed
// record over the channel, and admits it locally. The typing indicator
// is cleared before the send so the partner never sees a stale "is
// typing" race the message itself. On persist failure the typed text is
// saved for TakeRestoredInput and nothing is admitted.
func (c *Controller) SendMessage(ctx context.Context, text string) (chat.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return chat.Message{}, ErrNotActive
	}
	c.clearTypingLocked()
	c.pending++
	c.mu.Unlock()

	c.emitTyping(false)

	key := uuid.New().String()
	msg, err := c.svc.SendMessage(ctx, api.SendMessageRequest{
		ConversationID: c.conv.ID,
		SenderID:       c.userID,
		Text:           trimmed,
		Language:       c.language,
		TargetLanguage: c.targetLanguage,
		IdempotencyKey: key,
	})

	c.mu.Lock()
	c.pending--
	stale := c.state != Active
	if err != nil {
		c.restoredInput = text
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("send failed", "error", err)
		return chat.Message{}, fmt.Errorf("sending message: %w", err)
	}
	if stale {
		// The session closed while the persist was in flight; the write
		// is durable but this session discards the result.
		c.logger.Debug("discarding send result after close", "message_id", msg.ID)
		return chat.Message{}, ErrNotActive
	}

	c.channel.Emit(chat.EventSendMessage, msg)
	if c.messages.AdmitKeyed(msg, key) == reconcile.Accepted {
		c.notify(UpdateMessages)
	}
	return msg, nil
}

// NoteActivity marks the local user as typing and (re)arms the idle
// timer that clears the indicator. The first call in an idle period
// emits typing:true; the timer emits typing:false after the threshold.
func (c *Controller) NoteActivity() {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return
	}
	wasTyping := c.typingActive
	c.typingActive = true
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingTimer = time.AfterFunc(c.typingIdle, c.typingIdleExpired)
	c.mu.Unlock()

	if !wasTyping {
		c.emitTyping(true)
	}
}

// typingIdleExpired clears the typing indicator after inactivity.
func (c *Controller) typingIdleExpired() {
	c.mu.Lock()
	if !c.typingActive || c.state != Active {
		c.mu.Unlock()
		return
	}
	c.typingActive = false
	c.typingTimer = nil
	c.mu.Unlock()

	c.emitTyping(false)
}

// MarkRead acknowledges one inbound message: flips the durable flag,
// emits the receipt, and updates the local copy. Callers only invoke it
// for messages not authored by the local user.
func (c *Controller) MarkRead(ctx context.Context, messageID string) error {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.mu.Unlock()

	if err := c.svc.MarkMessageRead(ctx, messageID); err != nil {
		return fmt.Errorf("marking message read: %w", err)
	}
	c.channel.Emit(chat.EventMessageRead, chat.ReadPayload{
		ConversationID: c.conv.ID,
		MessageID:      messageID,
		UserID:         c.userID,
	})
	if c.messages.MarkRead(messageID) {
		c.notify(UpdateMessages)
	}
	return nil
}

// Messages returns the admitted sequence in admission order.
func (c *Controller) Messages() []chat.Message {
	return c.messages.Messages()
}

// PartnerPresence returns the live state of the conversation partner.
func (c *Controller) PartnerPresence() chat.Presence {
	partner := c.conv.Partner(c.userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence[partner]
}

// Presence returns the live state of one user by id.
func (c *Controller) Presence(userID string) chat.Presence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence[userID]
}

// Pending returns the number of sends awaiting confirmation.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Degraded reports whether the channel has given up reconnecting.
func (c *Controller) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TakeRestoredInput returns and clears text saved from a failed send,
// so the compose buffer can be repopulated instead of losing the input.
func (c *Controller) TakeRestoredInput() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	text := c.restoredInput
	c.restoredInput = ""
	return text
}

// Updates delivers change notifications for renderers. Notifications
// are dropped, not queued, when the receiver falls behind.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

func (c *Controller) subscribe(event string, h transport.Handler) {
	id := c.channel.On(event, h)
	c.mu.Lock()
	c.subs = append(c.subs, handlerReg{event: event, id: id})
	c.mu.Unlock()
}

// detach removes every channel subscription this session registered.
func (c *Controller) detach() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		c.channel.Off(s.event, s.id)
	}
}

func (c *Controller) emitTyping(isTyping bool) {
	c.channel.Emit(chat.EventTyping, chat.TypingPayload{
		ConversationID: c.conv.ID,
		UserID:         c.userID,
		IsTyping:       isTyping,
	})
}

// clearTypingLocked cancels the idle timer and resets the typing flag.
// The caller holds the mutex and emits typing:false afterwards.
func (c *Controller) clearTypingLocked() {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.typingActive = false
}

// notify pushes one update, dropping it if the receiver is behind.
func (c *Controller) notify(kind UpdateKind) {
	select {
	case c.updates <- Update{Kind: kind}:
	default:
	}
}

func (c *Controller) onDegraded() {
	c.mu.Lock()
	already := c.degraded
	c.degraded = true
	c.mu.Unlock()

	if !already {
		c.logger.Warn("channel degraded, live signaling suspended")
		c.notify(UpdateDegraded)
	}
}

// onNewMessage admits a live message echo. Events for other
// conversations, or arriving after Close, are discarded.
func (c *Controller) onNewMessage(data json.RawMessage) {
	var msg chat.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("dropping malformed new_message event", "error", err)
		return
	}
	if !c.accepting(msg.ConversationID) {
		return
	}
	if c.messages.Admit(msg) == reconcile.Accepted {
		c.notify(UpdateMessages)
	}
}

func (c *Controller) onUserTyping(data json.RawMessage) {
	var p chat.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("dropping malformed user_typing event", "error", err)
		return
	}
	if p.UserID == c.userID || !c.accepting(p.ConversationID) {
		return
	}

	c.mu.Lock()
	pres := c.presence[p.UserID]
	pres.Typing = p.IsTyping
	c.presence[p.UserID] = pres
	c.mu.Unlock()

	c.notify(UpdatePresence)
}

// onJoinedConversation logs the server's confirmation that this
// connection joined the conversation's event scope.
func (c *Controller) onJoinedConversation(data json.RawMessage) {
	var p chat.JoinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("dropping malformed joined_conversation event", "error", err)
		return
	}
	if !c.accepting(p.ConversationID) {
		return
	}
	c.logger.Info("conversation scope joined", "user_id", p.UserID)
}

func (c *Controller) onUserOnline(data json.RawMessage) {
	c.setOnline(data, true)
}

func (c *Controller) onUserOffline(data json.RawMessage) {
	c.setOnline(data, false)
}

// setOnline applies a presence event to the user-id-keyed map. Keying
// by id means the event lands even if the partner profile has not been
// resolved yet; last writer wins.
func (c *Controller) setOnline(data json.RawMessage, online bool) {
	var p chat.PresencePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("dropping malformed presence event", "error", err)
		return
	}
	if p.UserID == "" || p.UserID == c.userID || !c.accepting("") {
		return
	}

	c.mu.Lock()
	pres := c.presence[p.UserID]
	pres.Online = online
	if !online {
		pres.Typing = false
	}
	c.presence[p.UserID] = pres
	c.mu.Unlock()

	c.notify(UpdatePresence)
}

// accepting reports whether an event scoped to the given conversation
// (or unscoped, "") should still be processed by this session.
func (c *Controller) accepting(conversationID string) bool {
	if conversationID != "" && conversationID != c.conv.ID {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Active || c.state == Connecting
}
