package legaltools

import (
	"fmt"
	"strings"
	"time"
)

var weekdayNames = [...]string{"Hai", "Ba", "Tư", "Năm", "Sáu", "Bảy", "CN"}

// weekdayName indexes from Monday.
func weekdayName(t time.Time) string {
	return weekdayNames[(int(t.Weekday())+6)%7]
}

func formatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

const courtAcceptanceText = `⚖️ **Thời hạn thụ lý đơn khởi kiện (Bộ luật TTDS 2015):**
- Theo quy định, trong vòng 03 ngày làm việc kể từ ngày nhận đơn, Chánh án phân công Thẩm phán xem xét.
- Trong vòng 05 ngày làm việc kể từ ngày được phân công, Thẩm phán phải ra quyết định thụ lý/trả đơn/sửa đổi.
-> **Tổng cộng:** Khoảng 08 ngày làm việc.`

// DateInfo answers today / deadline / court acceptance questions against the
// injected clock.
func (t *Tools) DateInfo(query string) string {
	today := t.now()
	lower := strings.ToLower(query)

	if strings.Contains(lower, "hôm nay") || strings.Contains(lower, "today") {
		_, week := today.ISOWeek()
		return fmt.Sprintf("📅 **Hôm nay:**\n- Ngày: %s\n- Thứ: %s\n- Tuần: %d\n",
			formatDate(today), weekdayName(today), week)
	}

	if strings.Contains(lower, "deadline") || strings.Contains(lower, "hạn") {
		days := 30
		switch {
		case strings.Contains(query, "15"):
			days = 15
		case strings.Contains(query, "30"):
			days = 30
		case strings.Contains(query, "60"):
			days = 60
		case strings.Contains(query, "90"):
			days = 90
		case strings.Contains(lower, "thụ lý"):
			return courtAcceptanceText
		}

		deadline := today.AddDate(0, 0, days)
		return fmt.Sprintf(`⏰ **Tính deadline:**
- Từ ngày: %s
- Cộng thêm: %d ngày
- Đến hạn: %s (Thứ %s)

💡 Lưu ý: Đây là tính theo ngày dương lịch, chưa trừ ngày lễ.`,
			formatDate(today), days, formatDate(deadline), weekdayName(deadline))
	}

	return fmt.Sprintf(`📅 Hôm nay là %s

**Tôi có thể:**
- Cho biết ngày hôm nay
- Tính deadline (ví dụ: "deadline 30 ngày")
- Đếm ngày làm việc

Bạn cần thông tin gì?`, formatDate(today))
}
