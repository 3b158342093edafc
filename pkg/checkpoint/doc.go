// Package checkpoint stores agent state per conversation between turns.
//
// Invariants:
// - Load of an unknown conversation returns an empty state, not an error.
// - Save caps PDFContext and Summary, keeping the most recent tail.
// - AppendPDFContext never replaces earlier documents.
//
// Usage:
//
//	store := checkpoint.NewMemoryStore(checkpoint.Limits{MaxPDFContext: 200000})
//	state, _ := store.Load(ctx, conversationID)
//	_ = store.Save(ctx, conversationID, state)
package checkpoint
