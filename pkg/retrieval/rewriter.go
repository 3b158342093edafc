package retrieval

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
)

func rewritePrompt(query string) string {
	return `Bạn là chuyên gia tra cứu pháp luật Việt Nam. 
Nhiệm vụ: Chuyển đổi câu hỏi của người dùng (có thể có lỗi chính tả) thành một chuỗi từ khóa (keywords) ngắn gọn, súc tích để tìm kiếm trong cơ sở dữ liệu luật.

QUY TẮC:
- Trích xuất 3-5 từ khóa quan trọng nhất.
- Sửa lỗi chính tả nếu có (VD: "quy tậc" -> "quy tắc").
- Ngôn ngữ: Tiếng Việt.
- CHỈ TRẢ VỀ TỪ KHÓA, không thêm bất kỳ lời dẫn nào.

Câu hỏi: ` + query + `
Từ khóa tìm kiếm:`
}

// rewrite asks the fast model for search keywords. Any failure or timeout
// returns the original query.
func (g *Gateway) rewrite(ctx context.Context, query string, logger zerolog.Logger) string {
	model, err := g.resources.FastModel(ctx)
	if err != nil {
		observability.RecordRewrite("skipped")
		return query
	}

	rctx, cancel := context.WithTimeout(ctx, g.rewriteTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := model.Complete(rctx, rewritePrompt(query))
		done <- result{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				observability.RecordRewrite("timeout")
			} else {
				observability.RecordRewrite("error")
			}
			logger.Debug().Err(res.err).Msg("Query rewrite failed, using original query")
			return query
		}
		keywords := strings.TrimSpace(res.text)
		if keywords == "" {
			observability.RecordRewrite("error")
			return query
		}
		observability.RecordRewrite("ok")
		logger.Debug().Str("keywords", keywords).Msg("Query rewritten")
		return keywords
	case <-rctx.Done():
		observability.RecordRewrite("timeout")
		logger.Debug().Msg("Query rewrite timed out, using original query")
		return query
	}
}
