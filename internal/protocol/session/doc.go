// Package session owns one TCP connection to the editor bridge.
//
// Ownership boundary:
// - dial and socket options
// - send/receive deadlines
// - driving the framer until one response is complete
// - best-effort teardown
// - retry/backoff primitives shared by connect and command retries
package session
