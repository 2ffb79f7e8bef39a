// Package storage persists session state behind a small key/value contract.
//
// Three backends cover the runtime contexts the engine runs in: MemoryBackend
// for servers and tests, RedisBackend for short-lived client state that
// should expire on its own, and SQLiteBackend for the durable default. Every
// value passes through a Codec on its way in and out, so at-rest encoding is
// chosen independently of the backend.
//
// AuthStorage layers typed accessors for the four session records on top of
// Storage. Records that fail to decode or validate are removed and reported
// absent, never returned as errors.
package storage
