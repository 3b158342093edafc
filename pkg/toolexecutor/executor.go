package toolexecutor

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
)

// DefaultTimeout bounds a single handler run when the call carries no timeout.
const DefaultTimeout = 30 * time.Second

const maxOutputSize = 10 * 1024

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// ToolHandler runs one decoded call and returns the text shown to the model.
type ToolHandler func(ctx context.Context, call Call) (string, error)

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Tool      string        `json:"tool"`
	Success   bool          `json:"success"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Text is what gets appended to the conversation as the tool message.
func (r ToolResult) Text() string {
	if r.Success {
		return r.Output
	}
	return fmt.Sprintf("Error: %s", r.Error)
}

// ToolExecutor manages and executes tools
type ToolExecutor struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	logger  zerolog.Logger
	mu      sync.RWMutex
}

// New creates a new ToolExecutor
func New(logger zerolog.Logger) *ToolExecutor {
	return &ToolExecutor{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  logger.With().Str("component", "toolexecutor").Logger(),
	}
}

// RegisterTool registers a new tool
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.JSONSchema()))
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	te.tools[def.Name] = &def
	te.schemas[def.Name] = schema

	te.logger.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// GetTool retrieves a tool definition
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()
	return te.tools[name]
}

// ListTools returns the registered tool names in sorted order.
func (te *ToolExecutor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	names := make([]string, 0, len(te.tools))
	for name := range te.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns a copy of every definition, sorted by name.
func (te *ToolExecutor) Definitions() []ToolDefinition {
	names := te.ListTools()

	te.mu.RLock()
	defer te.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		if def, ok := te.tools[name]; ok {
			defs = append(defs, *def)
		}
	}
	return defs
}

// JSONSchema renders the parameters as a JSON schema object.
func (def ToolDefinition) JSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Execute validates and runs one call. rawArgs is the model-produced JSON
// argument object; an empty string means no arguments.
func (te *ToolExecutor) Execute(ctx context.Context, toolName, rawArgs string) ToolResult {
	start := time.Now()
	logger := tracing.LoggerFromContext(ctx, te.logger).With().Str("tool", toolName).Logger()

	result := te.execute(ctx, toolName, rawArgs, logger)
	result.Tool = toolName
	result.Duration = time.Since(start)

	observability.RecordToolExecution(toolName, result.Duration, result.Success)
	if result.Success {
		logger.Debug().Dur("duration", result.Duration).Bool("truncated", result.Truncated).Msg("Tool execution completed")
	} else {
		logger.Warn().Dur("duration", result.Duration).Str("error", result.Error).Msg("Tool execution failed")
	}
	return result
}

func (te *ToolExecutor) execute(ctx context.Context, toolName, rawArgs string, logger zerolog.Logger) ToolResult {
	te.mu.RLock()
	tool := te.tools[toolName]
	schema := te.schemas[toolName]
	te.mu.RUnlock()

	if tool == nil {
		return ToolResult{Error: fmt.Sprintf("tool not found: %s", toolName)}
	}

	params, err := parseArguments(rawArgs)
	if err != nil {
		return ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if err := validateParameters(schema, params); err != nil {
		return ToolResult{Error: fmt.Sprintf("parameter validation failed: %v", err)}
	}

	call, err := DecodeCall(toolName, params)
	if err != nil {
		return ToolResult{Error: err.Error()}
	}

	timeout := DefaultTimeout
	if execCtx := ExecContextFromContext(ctx); execCtx != nil && execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Tool handler panicked")
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		text, err := tool.Handler(timeoutCtx, call)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return ToolResult{Error: out.err.Error()}
		}
		output, truncated := truncateOutput(out.text)
		return ToolResult{Success: true, Output: output, Truncated: truncated}
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return ToolResult{Error: fmt.Sprintf("tool execution cancelled: %v", ctx.Err())}
		}
		return ToolResult{Error: fmt.Sprintf("tool execution timeout after %v", timeout)}
	}
}

func parseArguments(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]interface{}{}, nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return params, nil
}

func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %q for %s", param.Type, param.Name)
		}
	}
	return nil
}

func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

func truncateOutput(output string) (string, bool) {
	if len(output) <= maxOutputSize {
		return output, false
	}
	cut := maxOutputSize
	for cut > 0 && !utf8.RuneStart(output[cut]) {
		cut--
	}
	return output[:cut] + "\n... [output truncated]", true
}
