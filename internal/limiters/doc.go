// Package limiters holds the login lockout policy.
//
// [Lockout] decides, from the persisted security counters and the current
// time, whether a login attempt may proceed and how a failure or success
// changes the counters. It performs no I/O: the engine reads and writes the
// counters through storage.AuthStorage.UpdateSecurity so concurrent updates
// to the same record cannot race.
package limiters
