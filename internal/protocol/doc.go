// Package protocol owns the editor bridge wire contract.
//
// Ownership boundary:
// - command envelope encoding
// - response decoding and normalization
// - the transport/remote error taxonomy shared by session and bridge
//
// The wire carries one UTF-8 JSON object per direction with no length prefix
// and no delimiter. Message boundaries are found by the frame package.
package protocol
