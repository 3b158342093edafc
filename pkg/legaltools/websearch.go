package legaltools

import (
	"context"
	"fmt"
	"strings"

	"github.com/PVL-Linh/LegalBot-AI/pkg/search"
)

const (
	webSearchSuffix  = " pháp luật việt nam"
	webSearchFetch   = 5
	webSearchDisplay = 3
)

// WebSearch queries the configured search backend and renders the top hits.
func (t *Tools) WebSearch(ctx context.Context, query string) string {
	results, err := t.searcher.Search(ctx, query+webSearchSuffix, search.Options{
		Region: t.region,
		Count:  webSearchFetch,
	})
	if err != nil {
		t.logger.Warn().Err(err).Msg("web search failed")
		return "⚠️ Không thể tìm kiếm web lúc này. Lỗi: " + truncateRunes(err.Error(), 100)
	}

	if len(results) == 0 {
		return fmt.Sprintf(`Không tìm thấy kết quả web cho "%s".

**Gợi ý:**
- Thử từ khóa khác
- Sử dụng công cụ tra cứu nội bộ
- Hỏi trực tiếp về thủ tục`, query)
	}

	if len(results) > webSearchDisplay {
		results = results[:webSearchDisplay]
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("**%d. %s**\n%s...\n🔗 %s\n", i+1, r.Title, truncateRunes(r.Snippet, 200), r.URL))
	}

	return fmt.Sprintf(`### Kết quả tìm kiếm: "%s"

%s

📌 **Lưu ý:** Đây là thông tin từ internet, nên kiểm tra nguồn chính thức.`, query, strings.Join(blocks, "\n"))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
