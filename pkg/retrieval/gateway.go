package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
)

// FallbackSignal prefixes every lookup result that carries no corpus
// content. The agent is instructed to call web_search when it sees it.
const FallbackSignal = "[FALLBACK_SIGNAL]"

const (
	DefaultTopK           = 3
	DefaultRewriteTimeout = 5 * time.Second
	maxMatchRunes         = 800
)

const unavailableText = FallbackSignal + " ⚠️ Xin lỗi, hệ thống tra cứu đang tạm thời không khả dụng. Vui lòng sử dụng công cụ `web_search` để tìm kiếm từ internet."

const failureText = FallbackSignal + " Hệ thống tra cứu nội bộ đang gặp sự cố. Vui lòng sử dụng công cụ `web_search` để tìm kiếm từ internet hoặc diễn đạt lại câu hỏi."

func missText(query string) string {
	return fmt.Sprintf(`%s Tôi chưa tìm thấy thông tin chi tiết về "%s" trong cơ sở dữ liệu luật nội bộ.

Bạn vui lòng sử dụng công cụ `+"`web_search`"+` để tìm kiếm thông tin mới nhất trên internet hoặc hỏi về các dịch vụ phổ biến: GPLX, Kết hôn, Ly hôn, ĐK Kinh doanh.`, FallbackSignal, query)
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	Resources      *Resources
	Namespace      string
	TopK           int
	RewriteTimeout time.Duration
	Logger         zerolog.Logger
}

// Gateway embeds a query, searches the index and formats the hits.
type Gateway struct {
	resources      *Resources
	namespace      string
	topK           int
	rewriteTimeout time.Duration
	logger         zerolog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Resources == nil {
		return nil, errors.New("resources are required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.RewriteTimeout <= 0 {
		cfg.RewriteTimeout = DefaultRewriteTimeout
	}
	return &Gateway{
		resources:      cfg.Resources,
		namespace:      cfg.Namespace,
		topK:           cfg.TopK,
		rewriteTimeout: cfg.RewriteTimeout,
		logger:         cfg.Logger.With().Str("component", "retrieval").Logger(),
	}, nil
}

// Lookup runs the full rewrite, embed, query, format pipeline.
func (g *Gateway) Lookup(ctx context.Context, query string) string {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "legalbot.retrieval", "retrieval.lookup",
		attribute.String("retrieval.namespace", g.namespace),
	)
	logger := tracing.LoggerFromContext(ctx, g.logger)

	outcome, text, err := g.lookup(ctx, query, logger)
	tracing.EndSpan(span, err)
	observability.RecordRetrieval(outcome, time.Since(start))

	logger.Debug().Str("outcome", outcome).Dur("duration", time.Since(start)).Msg("Retrieval lookup finished")
	return text
}

func (g *Gateway) lookup(ctx context.Context, query string, logger zerolog.Logger) (string, string, error) {
	index, err := g.resources.Index(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Vector index unavailable")
		return "unavailable", unavailableText, err
	}
	embedder, err := g.resources.Embedder(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Embedder unavailable")
		return "unavailable", unavailableText, err
	}

	searchQuery := g.rewrite(ctx, query, logger)

	vector, err := EmbedQuery(ctx, embedder, searchQuery)
	if err != nil {
		logger.Error().Err(err).Msg("Query embedding failed")
		return "error", failureText, err
	}

	matches, err := index.Query(ctx, g.namespace, vector, g.topK)
	if err != nil {
		logger.Error().Err(err).Msg("Vector query failed")
		return "error", failureText, err
	}
	if len(matches) == 0 {
		return "miss", missText(query), nil
	}

	return "hit", FormatMatches(matches, g.topK), nil
}

// FormatMatches renders up to limit matches in index order.
func FormatMatches(matches []Match, limit int) string {
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	blocks := make([]string, 0, len(matches))
	for i, m := range matches {
		source := m.Source
		if source == "" {
			source = "Không rõ nguồn"
		}
		blocks = append(blocks, fmt.Sprintf("### Kết quả %d (Độ liên quan: %.0f%%)\n**Nguồn:** %s\n**Nội dung:** %s...",
			i+1, m.Score*100, source, truncateRunes(m.Text, maxMatchRunes)))
	}

	return "Dựa trên tài liệu pháp luật, tôi tìm thấy thông tin sau:\n\n" +
		strings.Join(blocks, "\n\n") +
		"\n\n💡 **Lưu ý:** Đây là tham khảo chung. Nên liên hệ cơ quan có thẩm quyền để biết chính xác."
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
