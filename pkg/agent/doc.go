// Package agent runs the legal assistant's model/tool loop.
//
// Invariants:
// - Backends are tried strictly in chain order; each gets one attempt per call.
// - An exhausted chain yields the apology text as a successful response.
// - Tool calls route through toolexecutor only.
// - The loop stops once more than MaxToolCallMessages messages carry tool calls.
//
// Usage:
//
//	invoker, _ := agent.NewInvoker(chain, logger)
//	loop, _ := agent.NewLoop(agent.LoopConfig{Invoker: invoker, Tools: executor})
//	state, _ := loop.Run(ctx, agent.State{Messages: history}, "Thủ tục ly hôn?", sink)
//	_ = state.FinalAnswer()
package agent
