// Package legaltools implements the five tools the legal assistant can call
// and registers them with a toolexecutor.
package legaltools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/PVL-Linh/LegalBot-AI/pkg/search"
	"github.com/PVL-Linh/LegalBot-AI/pkg/toolexecutor"
)

// Retriever looks a query up in the legal corpus. It always returns text.
type Retriever interface {
	Lookup(ctx context.Context, query string) string
}

// WebSearcher runs a web query.
type WebSearcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
}

// Options configures the tool set.
type Options struct {
	Retriever Retriever
	Searcher  WebSearcher
	Region    string
	Now       func() time.Time
	Logger    zerolog.Logger
}

// Tools holds the tool dependencies. Each method is callable on its own.
type Tools struct {
	retriever Retriever
	searcher  WebSearcher
	region    string
	now       func() time.Time
	logger    zerolog.Logger
}

// New validates dependencies and builds the tool set.
func New(opts Options) (*Tools, error) {
	if opts.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if opts.Searcher == nil {
		return nil, errors.New("web searcher is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Region == "" {
		opts.Region = "vn-vi"
	}
	return &Tools{
		retriever: opts.Retriever,
		searcher:  opts.Searcher,
		region:    opts.Region,
		now:       opts.Now,
		logger:    opts.Logger.With().Str("component", "legaltools").Logger(),
	}, nil
}

// Definitions returns the tool definitions in registration order.
func (t *Tools) Definitions() []toolexecutor.ToolDefinition {
	return []toolexecutor.ToolDefinition{
		{
			Name: toolexecutor.ToolLegalAssistant,
			Description: "Tra cứu thủ tục hành chính và văn bản pháp luật Việt Nam (kết hôn, ly hôn, GPLX, kinh doanh, đất đai, thừa kế, tạm trú, giao thông...). " +
				"LUÔN dùng công cụ này trước tiên cho mọi câu hỏi pháp lý. Không dùng cho tin tức thời sự hoặc tính lệ phí.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "query", Type: "string", Description: "Câu hỏi của người dùng", Required: true},
			},
			Handler: func(ctx context.Context, call toolexecutor.Call) (string, error) {
				return t.LegalAssistant(ctx, call.(toolexecutor.LegalAssistantCall).Query), nil
			},
		},
		{
			Name: toolexecutor.ToolWebSearch,
			Description: "Tìm kiếm thông tin pháp luật mới nhất trên internet (tin tức, luật mới, án lệ). " +
				"Chỉ dùng khi legal_assistant trả về [FALLBACK_SIGNAL] hoặc khi cần dữ liệu thời sự. Không dùng cho thủ tục đã có trong cơ sở dữ liệu.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "query", Type: "string", Description: "Nội dung cần tìm kiếm", Required: true},
			},
			Handler: func(ctx context.Context, call toolexecutor.Call) (string, error) {
				return t.WebSearch(ctx, call.(toolexecutor.WebSearchCall).Query), nil
			},
		},
		{
			Name: toolexecutor.ToolCalculateFee,
			Description: "Tra bảng lệ phí cho dịch vụ hành chính (đăng ký kinh doanh, ly hôn, công chứng, GPLX, hộ chiếu, visa). " +
				"Dùng khi người dùng hỏi chi phí. Không dùng để giải thích thủ tục.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "service", Type: "string", Description: "Loại dịch vụ (đăng ký kinh doanh, ly hôn, công chứng...)", Required: true},
				{Name: "details", Type: "string", Description: "Chi tiết bổ sung (loại hình doanh nghiệp, giá trị tài sản...)", Default: ""},
			},
			Handler: func(ctx context.Context, call toolexecutor.Call) (string, error) {
				args := call.(toolexecutor.CalculateFeeCall)
				return CalculateFee(args.Service, args.Details), nil
			},
		},
		{
			Name: toolexecutor.ToolDateInfo,
			Description: "Cho biết ngày hôm nay, tính hạn chót (deadline 15/30/60/90 ngày) và thời hạn thụ lý đơn khởi kiện. " +
				"Dùng khi câu hỏi cần ngày tháng cụ thể. Không dùng cho câu hỏi pháp lý chung.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "query", Type: "string", Description: "Yêu cầu (today, deadline 30 ngày, thụ lý...)", Default: "today"},
			},
			Handler: func(ctx context.Context, call toolexecutor.Call) (string, error) {
				return t.DateInfo(call.(toolexecutor.DateInfoCall).Query), nil
			},
		},
		{
			Name: toolexecutor.ToolFormatDocument,
			Description: "Liệt kê checklist hồ sơ cần chuẩn bị (kết hôn, ly hôn, kinh doanh, lái xe). " +
				"Dùng khi người dùng muốn danh sách giấy tờ để đánh dấu. Không dùng để soạn văn bản.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "document_type", Type: "string", Description: "Loại thủ tục (kết hôn, kinh doanh, ly hôn...)", Required: true},
			},
			Handler: func(ctx context.Context, call toolexecutor.Call) (string, error) {
				return FormatDocument(call.(toolexecutor.FormatDocumentCall).DocumentType), nil
			},
		},
	}
}

// Register adds every tool to the executor.
func Register(executor *toolexecutor.ToolExecutor, tools *Tools) error {
	if executor == nil {
		return errors.New("tool executor is required")
	}
	if tools == nil {
		return errors.New("tools are required")
	}
	for _, def := range tools.Definitions() {
		if err := executor.RegisterTool(def); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}
	return nil
}
