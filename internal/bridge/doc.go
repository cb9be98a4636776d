// Package bridge owns the single connection to the editor bridge and the
// retrying command dispatcher built on it.
//
// A Manager serializes callers on one mutex for a whole round trip and tears
// the session down after every command. A Dispatcher encodes a command once,
// drives round trips through the Manager, decodes and normalizes the reply,
// and retries transport-class failures with exponential backoff. Dispatch
// never returns an error value: every outcome is a protocol.Response.
package bridge
