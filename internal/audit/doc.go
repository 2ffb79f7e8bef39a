// Package audit records security-relevant session events.
//
// [Log] keeps a bounded, newest-first queryable history in memory and
// persists the newest events through a [Store]. Every logged event is also
// handed to an optional [Dispatcher], which relays it asynchronously to a
// [Sink] (channel, JSON lines, Kafka).
//
// The package does not decide which events to record; the session engine
// does.
package audit
