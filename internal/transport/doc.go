// Package transport maintains the persistent bidirectional event
// channel used for live chat events (presence, typing, message echo).
//
// # Channel
//
// The Channel interface exposes emit/subscribe semantics over one
// reconnecting websocket connection:
//
//	ch := transport.NewWebsocketChannel(url, cfg, logger)
//	err := ch.Connect(ctx)
//	id := ch.On(chat.EventNewMessage, handler)
//	ch.Emit(chat.EventTyping, payload)
//	ch.Off(chat.EventNewMessage, id)
//
// Connect and Disconnect are idempotent. When the connection drops the
// channel retries a fixed number of times with a fixed backoff; once
// retries are exhausted it goes degraded: registered degrade callbacks
// fire and further Emit calls silently no-op. Message persistence is
// unaffected; it flows over the request/response API, not the channel.
//
// Malformed inbound frames are dropped and logged. A panicking handler
// is recovered so later events still dispatch.
package transport
