package legaltools

import (
	"fmt"
	"strings"
)

type feeRow struct {
	Item string
	Fee  string
}

type feeTable struct {
	Service string
	Rows    []feeRow
}

var feeTables = []feeTable{
	{"đăng ký kinh doanh", []feeRow{
		{"Hộ kinh doanh", "50,000 VNĐ"},
		{"Công ty TNHH", "300,000 VNĐ"},
		{"Công ty cổ phần", "500,000 VNĐ"},
		{"Doanh nghiệp tư nhân", "100,000 VNĐ"},
	}},
	{"ly hôn", []feeRow{
		{"Ly hôn thuận tình (UBND)", "0 VNĐ (miễn phí)"},
		{"Ly hôn có tranh chấp (Tòa án)", "200,000 - 500,000 VNĐ"},
		{"Phí luật sư (nếu thuê)", "5,000,000 - 20,000,000 VNĐ"},
	}},
	{"công chứng", []feeRow{
		{"Hợp đồng mua bán đất (< 100m²)", "500,000 VNĐ"},
		{"Hợp đồng mua bán đất (100-300m²)", "1,000,000 VNĐ"},
		{"Hợp đồng vay tiền", "0.5% giá trị (tối thiểu 50k)"},
		{"Di chúc", "50,000 - 200,000 VNĐ"},
	}},
	{"giấy phép lái xe", []feeRow{
		{"Cấp mới/Đổi GPLX", "135,000 VNĐ"},
		{"Khám sức khỏe", "~300,000 VNĐ"},
	}},
	{"hộ chiếu", []feeRow{
		{"Hộ chiếu thường (cấp tại địa phương)", "200,000 VNĐ"},
		{"Cấp lại do bị mất/hư hỏng", "400,000 VNĐ"},
		{"Gia hạn hộ chiếu", "100,000 VNĐ"},
	}},
	{"visa", []feeRow{
		{"E-visa 30 ngày (nhập cảnh 1 lần)", "25 USD"},
		{"Visa 90 ngày (nhập cảnh nhiều lần)", "50 USD"},
		{"Thẻ tạm trú (1-3 năm)", "145 - 155 USD"},
	}},
}

// CalculateFee renders the fee table whose service name appears in service.
// details is accepted for the model's benefit but does not change the table.
func CalculateFee(service, details string) string {
	lower := strings.ToLower(service)
	for _, table := range feeTables {
		if !strings.Contains(lower, table.Service) {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "### Lệ phí: %s\n\n", strings.ToUpper(table.Service))
		for _, row := range table.Rows {
			fmt.Fprintf(&b, "- **%s:** %s\n", row.Item, row.Fee)
		}
		b.WriteString("\n📌 **Lưu ý:** Phí có thể thay đổi, nên kiểm tra với cơ quan trực tiếp.")
		return b.String()
	}

	return fmt.Sprintf(`Chưa có thông tin lệ phí cho "%s".

**Các dịch vụ có thể tra:**
- Đăng ký kinh doanh
- Ly hôn
- Công chứng
- Giấy phép lái xe
- Hộ chiếu

Vui lòng chọn một trong các dịch vụ trên.`, service)
}
