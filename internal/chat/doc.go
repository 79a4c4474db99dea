// Package chat defines the shared data model for the crosstalk client:
// messages, conversations, presence, and the wire events exchanged with
// the realtime channel. The types mirror the JSON shapes of the remote
// message service and the channel protocol.
package chat
