// Package session owns the lifecycle of one open conversation: it
// connects the realtime channel, tracks partner presence and typing,
// drives the message reconciler, and sequences outbound sends through
// persistence, channel broadcast, and local admission.
//
// A controller moves Idle -> Connecting -> Active -> Closed. Closing
// detaches all channel handlers synchronously but keeps the underlying
// connection alive for the next session. Channel degradation (the
// transport gave up reconnecting) never blocks sends: messages still
// persist through the message service, only the live signaling goes
// quiet.
package session
