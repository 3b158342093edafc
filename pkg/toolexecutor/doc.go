// Package toolexecutor registers and executes the chatbot's named tools.
//
// Invariants:
// - Tool names are unique.
// - Arguments are schema-validated, then decoded into a typed Call before the handler runs.
// - Execute never returns an error: every failure becomes a ToolResult whose Text is a diagnostic.
//
// Usage:
//
//	exec := toolexecutor.New(logger)
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name:        toolexecutor.ToolWebSearch,
//		Description: "Search the web",
//		Parameters:  []toolexecutor.ToolParameter{{Name: "query", Type: "string", Description: "query", Required: true}},
//		Handler: func(ctx context.Context, call toolexecutor.Call) (string, error) {
//			return call.(toolexecutor.WebSearchCall).Query, nil
//		},
//	})
//	text := exec.Execute(ctx, "web_search", `{"query":"luật đất đai"}`).Text()
package toolexecutor
