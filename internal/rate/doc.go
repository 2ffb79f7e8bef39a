// Package rate throttles bursts of attempts per identifier with token
// buckets from golang.org/x/time/rate. It complements the persisted lockout
// policy: lockout counts failures across restarts, while this limiter only
// smooths rapid-fire attempts within one process.
package rate
