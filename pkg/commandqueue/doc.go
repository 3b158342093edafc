// Package commandqueue serializes tasks per lane with FIFO ordering.
//
// Invariants:
// - Tasks in the same lane execute one at a time, in FIFO order.
// - Tasks in different lanes may execute concurrently.
// - A lane exists only while it has queued or running work.
// - A caller whose context ends while its task is still queued gets ctx.Err()
//   and the task never runs.
//
// Usage:
//
//	queue := commandqueue.New()
//	defer queue.Close()
//	result, err := queue.Enqueue(ctx, commandqueue.ConversationLane(id), func(ctx context.Context) (interface{}, error) {
//		return "ok", nil
//	})
package commandqueue
