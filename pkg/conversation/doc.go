// Package conversation persists conversations and their ordered messages.
//
// Invariants:
// - Message order is insertion order.
// - History returns at most the requested number of the most recent
//   messages, oldest first.
// - Only the owning user may read, append to or delete from a conversation.
package conversation
