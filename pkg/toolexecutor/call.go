package toolexecutor

import (
	"errors"
	"fmt"
)

// Known tool names.
const (
	ToolLegalAssistant = "legal_assistant"
	ToolWebSearch      = "web_search"
	ToolCalculateFee   = "calculate_fee"
	ToolDateInfo       = "get_date_info"
	ToolFormatDocument = "format_document"
)

// ErrUnknownTool is returned when a call names a tool outside the known set.
var ErrUnknownTool = errors.New("unknown tool")

// Call is the decoded, validated argument record of one tool invocation.
// Exactly one concrete type exists per known tool name.
type Call interface {
	ToolName() string
	isCall()
}

type LegalAssistantCall struct {
	Query string
}

type WebSearchCall struct {
	Query string
}

type CalculateFeeCall struct {
	Service string
	Details string
}

// DateInfoCall defaults Query to "today".
type DateInfoCall struct {
	Query string
}

type FormatDocumentCall struct {
	DocumentType string
}

func (LegalAssistantCall) ToolName() string { return ToolLegalAssistant }
func (WebSearchCall) ToolName() string      { return ToolWebSearch }
func (CalculateFeeCall) ToolName() string   { return ToolCalculateFee }
func (DateInfoCall) ToolName() string       { return ToolDateInfo }
func (FormatDocumentCall) ToolName() string { return ToolFormatDocument }

func (LegalAssistantCall) isCall() {}
func (WebSearchCall) isCall()      {}
func (CalculateFeeCall) isCall()   {}
func (DateInfoCall) isCall()       {}
func (FormatDocumentCall) isCall() {}

// DecodeCall maps schema-validated parameters onto the typed record for name.
func DecodeCall(name string, params map[string]interface{}) (Call, error) {
	switch name {
	case ToolLegalAssistant:
		q, err := requiredString(params, "query")
		if err != nil {
			return nil, err
		}
		return LegalAssistantCall{Query: q}, nil
	case ToolWebSearch:
		q, err := requiredString(params, "query")
		if err != nil {
			return nil, err
		}
		return WebSearchCall{Query: q}, nil
	case ToolCalculateFee:
		s, err := requiredString(params, "service")
		if err != nil {
			return nil, err
		}
		return CalculateFeeCall{Service: s, Details: optionalString(params, "details", "")}, nil
	case ToolDateInfo:
		return DateInfoCall{Query: optionalString(params, "query", "today")}, nil
	case ToolFormatDocument:
		d, err := requiredString(params, "document_type")
		if err != nil {
			return nil, err
		}
		return FormatDocumentCall{DocumentType: d}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

func requiredString(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func optionalString(params map[string]interface{}, key, def string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return def
}
