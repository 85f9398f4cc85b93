// Package ratelimit guards authentication attempts with a per-key
// sliding-attempt limiter.
//
// Two policies are supported: fixed-delay, which rejects a key until a
// configured interval has passed since its last attempt, and
// attempt-counted, which admits a bounded number of attempts per window.
// State lives in a TTL-evicting store so probe traffic cannot grow memory
// without bound.
package ratelimit
