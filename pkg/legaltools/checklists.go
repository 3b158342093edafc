package legaltools

import (
	"fmt"
	"strings"
)

type checklist struct {
	Title string
	Items []string
}

var checklistAliases = []topicAliases{
	{"kết hôn", []string{"kết hôn", "lấy vợ", "lấy chồng", "phường"}},
	{"ly hôn", []string{"ly hôn", "chia tay", "tòa án"}},
	{"kinh doanh", []string{"kinh doanh", "công ty", "doanh nghiệp"}},
	{"lái xe", []string{"lái xe", "gplx", "bằng lái"}},
}

var checklists = map[string]checklist{
	"kết hôn": {
		Title: "Hồ Sơ Đăng Ký Kết Hôn",
		Items: []string{
			"☐ Đơn đăng ký kết hôn (mẫu có sẵn)",
			"☐ CMND/CCCD (bản chính cả 2 bên)",
			"☐ Sổ hộ khẩu",
			"☐ Giấy xác nhận tình trạng hôn nhân",
			"☐ Giấy khám sức khỏe (nếu yêu cầu)",
		},
	},
	"ly hôn": {
		Title: "Hồ Sơ Ly Hôn",
		Items: []string{
			"☐ Đơn ly hôn",
			"☐ CMND/CCCD (bản chính)",
			"☐ Giấy chứng nhận kết hôn",
			"☐ Sổ hộ khẩu",
			"☐ Thỏa thuận về con (nếu có)",
			"☐ Thỏa thuận chia tài sản (nếu có)",
		},
	},
	"kinh doanh": {
		Title: "Hồ Sơ Đăng Ký Kinh Doanh",
		Items: []string{
			"☐ CMND/CCCD người đại diện",
			"☐ Địa chỉ trụ sở (hợp đồng thuê/sở hữu)",
			"☐ Điều lệ công ty (nếu CT TNHH, CP)",
			"☐ Danh sách thành viên/cổ đông",
			"☐ Giấy ủy quyền (nếu ủy quyền)",
		},
	},
	"lái xe": {
		Title: "Hồ Sơ Đổi/Cấp GPLX",
		Items: []string{
			"☐ Đơn đề nghị (mẫu có sẵn)",
			"☐ Giấy khám sức khỏe lái xe",
			"☐ CCCD (bản chính)",
			"☐ GPLX cũ (nếu đổi)",
			"☐ Ảnh 3x4 (hoặc chụp tại chỗ)",
		},
	},
}

// FormatDocument renders the paperwork checklist for a procedure.
func FormatDocument(documentType string) string {
	key, ok := matchTopic(checklistAliases, documentType)
	if !ok {
		return fmt.Sprintf(`Chưa có checklist cho "%s".

**Checklist có sẵn:**
- Kết hôn
- Ly hôn
- Kinh doanh
- Lái xe (GPLX)

Vui lòng chọn một trong các thủ tục trên.`, documentType)
	}

	c := checklists[key]
	return fmt.Sprintf(`## %s

### CHECKLIST HỒ SƠ:
%s

📋 **Cách sử dụng:**
- Đánh dấu ✓ vào ☐ khi chuẩn bị xong
- Mang bản chính để đối chiếu
- Nộp bản photo công chứng (nếu yêu cầu)
`, c.Title, strings.Join(c.Items, "\n"))
}
