package legaltools

import (
	"context"
	"fmt"
	"strings"
)

type procedure struct {
	Title     string
	Steps     []string
	Documents []string
	Time      string
	Fee       string
	Note      string
}

type topicAliases struct {
	Topic   string
	Aliases []string
}

const topicTraffic = "giao thông"

// procedureAliases is matched in order; the first topic with an alias
// contained in the lowercased query wins.
var procedureAliases = []topicAliases{
	{"giấy phép lái xe", []string{"giấy phép lái xe", "bằng lái", "gplx"}},
	{"đăng ký kết hôn", []string{"kết hôn", "lấy vợ", "lấy chồng"}},
	{"đăng ký kinh doanh", []string{"đăng ký kinh doanh", "hộ kinh doanh"}},
	{"ly hôn", []string{"ly hôn", "chia tay"}},
	{"thành lập doanh nghiệp", []string{"thành lập doanh nghiệp", "thành lập công ty", "mở công ty"}},
	{"thừa kế", []string{"thừa kế", "di sản"}},
	{"sổ đỏ", []string{"sổ đỏ", "sổ hồng", "quyền sử dụng đất", "đất đai"}},
	{"tạm trú", []string{"tạm trú", "vắng mặt"}},
	{"thông báo mẫu dấu", []string{"mẫu dấu", "con dấu"}},
	{"tạm ngừng kinh doanh", []string{"tạm ngừng kinh doanh", "ngừng kinh doanh"}},
	{topicTraffic, []string{"giao thông", "xe máy", "ô tô", "biển báo", "bị phạt"}},
}

var procedures = map[string]procedure{
	"giấy phép lái xe": {
		Title: "Thủ tục Cấp/Đổi Giấy Phép Lái Xe",
		Steps: []string{
			"1. Khám sức khỏe lái xe tại cơ sở y tế có thẩm quyền",
			"2. Nộp hồ sơ trực tuyến qua https://dichvucong.gov.vn hoặc trực tiếp tại Sở GTVT",
			"3. Chụp ảnh và đóng lệ phí",
			"4. Nhận giấy hẹn",
			"5. Nhận GPLX (trực tiếp hoặc qua bưu điện)",
		},
		Documents: []string{
			"Đơn đề nghị (mẫu có sẵn)",
			"Giấy khám sức khỏe lái xe",
			"GPLX cũ (nếu đổi)",
			"CCCD gốc",
			"Ảnh 3x4 (chụp tại nơi làm)",
		},
		Time: "5-10 ngày làm việc",
		Fee:  "135,000 VNĐ + phí khám (~300k)",
		Note: "Có thể làm online 100% nếu có VNeID",
	},
	"đăng ký kết hôn": {
		Title: "Thủ tục Đăng Ký Kết Hôn",
		Steps: []string{
			"1. Chuẩn bị hồ sơ đầy đủ",
			"2. Nộp hồ sơ tại UBND phường/xã nơi một trong hai bên cư trú",
			"3. Chờ thẩm tra (3 ngày làm việc)",
			"4. Đến đăng ký và ký tên",
			"5. Nhận Giấy chứng nhận kết hôn",
		},
		Documents: []string{
			"Đơn đăng ký kết hôn",
			"CMND/CCCD cả hai bên",
			"Giấy xác nhận tình trạng hôn nhân",
			"Sổ hộ khẩu",
		},
		Time: "3 ngày làm việc",
		Fee:  "0 VNĐ (miễn phí)",
		Note: "Cả hai bên phải có mặt khi đăng ký",
	},
	"đăng ký kinh doanh": {
		Title: "Thủ tục Đăng Ký Kinh Doanh",
		Steps: []string{
			"1. Đăng ký tài khoản tại https://dangkykinhdoanh.gov.vn",
			"2. Điền thông tin doanh nghiệp",
			"3. Upload hồ sơ (CMND, địa chỉ, điều lệ)",
			"4. Nộp phí online",
			"5. Nhận Giấy CNĐKDN qua email hoặc bưu điện",
		},
		Documents: []string{
			"CMND/CCCD người đại diện",
			"Địa chỉ trụ sở (hợp đồng thuê/sở hữu)",
			"Điều lệ công ty (nếu là công ty)",
		},
		Time: "3-5 ngày",
		Fee:  "Hộ KD: 40-100k, Công ty: 300-500k",
		Note: "100% online, không cần đến trực tiếp",
	},
	"ly hôn": {
		Title: "Thủ tục Ly Hôn",
		Steps: []string{
			"1. Gửi đơn tại TAND cấp huyện nơi bị đơn cư trú/làm việc",
			"2. Thụ lý đơn và nộp tạm ứng án phí",
			"3. Tham gia phiên họp kiểm tra việc giao nộp, tiếp cận vật chứng",
			"4. Hòa giải sơ thẩm (nếu không được sẽ đưa ra xét xử)",
			"5. Tòa ra Bản án hoặc Quyết định ly hôn",
		},
		Documents: []string{
			"Đơn xin ly hôn",
			"Giấy chứng nhận đăng ký kết hôn (Bản chính)",
			"CCCD của vợ/chồng (Bản sao công chứng)",
			"Giấy khai sinh của các con",
			"Giấy tờ về tài sản chung (Sổ đỏ, đăng ký xe...)",
		},
		Time: "3-6 tháng",
		Fee:  "300,000 VNĐ án phí sơ thẩm",
		Note: "Ly hôn thuận tình sẽ nhanh hơn ly hôn đơn phương",
	},
	"thông báo mẫu dấu": {
		Title: "Thủ tục Thông báo Mẫu con dấu",
		Steps: []string{
			"1. Doanh nghiệp tự khắc dấu",
			"2. Thông báo mẫu dấu qua mạng tại Cổng thông tin quốc gia",
			"3. Hệ thống tiếp nhận và cấp Giấy xác nhận",
		},
		Documents: []string{
			"Thông báo theo mẫu của Bộ Kế hoạch và Đầu tư",
		},
		Time: "1-3 ngày",
		Fee:  "Miễn phí",
		Note: "Từ 2021 doanh nghiệp không bắt buộc phải thông báo mẫu dấu lên cổng thông tin",
	},
	"tạm ngừng kinh doanh": {
		Title: "Thủ tục Tạm ngừng Kinh Doanh",
		Steps: []string{
			"1. Thông báo cho cơ quan ĐKKD ít nhất 3 ngày làm việc trước khi tạm ngừng",
			"2. Nộp hồ sơ qua mạng tại Cổng thông tin quốc gia",
			"3. Nhận Giấy xác nhận tạm ngừng",
		},
		Documents: []string{
			"Thông báo tạm ngừng",
			"Nghị quyết/Quyết định của chủ sở hữu/HĐTV/HĐQT",
		},
		Time: "3 ngày làm việc",
		Fee:  "Miễn phí",
		Note: "Tổng thời gian tạm ngừng không quá 02 năm liên tiếp",
	},
	"thành lập doanh nghiệp": {
		Title: "Thủ tục Thành lập Công ty TNHH/Cổ phần",
		Steps: []string{
			"1. Chuẩn bị thông tin (tên, địa chỉ, vốn, ngành nghề)",
			"2. Soạn hồ sơ đăng ký doanh nghiệp trực tuyến",
			"3. Nộp hồ sơ tại Cổng thông tin quốc gia về đăng ký doanh nghiệp",
			"4. Nhận kết quả và Giấy chứng nhận ĐKDN",
			"5. Khắc dấu và công bố thông tin doanh nghiệp",
		},
		Documents: []string{
			"Giấy đề nghị đăng ký doanh nghiệp",
			"Điều lệ công ty",
			"Danh sách thành viên/cổ đông sáng lập",
			"Bản sao CCCD/Hộ chiếu các thành viên",
		},
		Time: "3-5 ngày làm việc",
		Fee:  "Lệ phí ĐK: 50k, Phí công bố: 300k",
		Note: "Nên đăng ký tài khoản kinh doanh trước tại dangkykinhdoanh.gov.vn",
	},
	"thừa kế": {
		Title: "Thủ tục Khai nhận Di sản Thừa kế",
		Steps: []string{
			"1. Chuẩn bị hồ sơ chứng minh quan hệ và tài sản",
			"2. Đến văn phòng Công chứng để lập văn bản khai nhận",
			"3. Niêm yết thông báo thừa kế tại UBND xã/phường (15 ngày)",
			"4. Ký văn bản khai nhận/phân chia di sản",
			"5. Đăng ký sang tên tài sản (nếu là nhà đất/xe)",
		},
		Documents: []string{
			"Giấy chứng tử của người để lại di sản",
			"Di chúc (nếu có)",
			"Giấy tờ chứng minh quan hệ (Khai sinh, kết hôn, hộ khẩu)",
			"Giấy chứng nhận quyền sử dụng đất/đăng ký xe",
		},
		Time: "20-30 ngày",
		Fee:  "Phí công chứng + Thuế thu nhập (nếu không được miễn)",
		Note: "Miễn thuế nếu thừa kế giữa cha mẹ - con cái, anh chị em ruột",
	},
	"sổ đỏ": {
		Title: "Thủ tục Cấp/Sang tên Sổ đỏ (Giấy chứng nhận Quyền sử dụng đất)",
		Steps: []string{
			"1. Nộp hồ sơ tại Văn phòng đăng ký đất đai hoặc UBND cấp huyện",
			"2. Cơ quan chức năng kiểm tra hồ sơ và hiện trạng",
			"3. Thực hiện nghĩa vụ tài chính (thuế, phí)",
			"4. Nhận Giấy chứng nhận mới hoặc xác nhận sang tên",
		},
		Documents: []string{
			"Đơn đăng ký biến động đất đai",
			"Giấy chứng nhận quyền sử dụng đất (Bản gốc)",
			"Hợp đồng chuyển nhượng/tặng cho (Công chứng)",
			"Tờ khai thuế thu nhập cá nhân và lệ phí trước bạ",
		},
		Time: "15-30 ngày làm việc",
		Fee:  "Lệ phí trước bạ (0.5%), Thuế TNCN (2%)",
		Note: "Kiểm tra kỹ thông tin quy hoạch trước khi giao dịch",
	},
	"tạm trú": {
		Title: "Thủ tục Đăng ký Tạm trú",
		Steps: []string{
			"1. Chuẩn bị hồ sơ pháp lý về chỗ ở",
			"2. Nộp hồ sơ tại Công an xã/phường hoặc qua Cổng dịch vụ công Bộ Công an",
			"3. Cán bộ tiếp nhận và kiểm tra thông tin",
			"4. Nhận thông báo kết quả đăng ký cư trú",
		},
		Documents: []string{
			"Tờ khai thay đổi thông tin cư trú (mẫu CT01)",
			"Hợp đồng thuê nhà hoặc giấy tờ chứng minh chỗ ở hợp pháp",
			"CCCD/Hộ chiếu của người đăng ký",
		},
		Time: "3 ngày làm việc",
		Fee:  "15,000 VNĐ (nộp trực tiếp), 7,000 VNĐ (trực tuyến)",
		Note: "Đăng ký qua dịch vụ công trực tuyến sẽ nhanh và rẻ hơn",
	},
}

const trafficGuide = `## Tra cứu Luật Giao thông Đường bộ

Tôi đã tìm thấy tài liệu về **Trật tự, an toàn giao thông đường bộ**. Bạn có thể hỏi cụ thể về:
- Các quy tắc tham gia giao thông (đi bộ, xe máy, ô tô).
- Điều kiện phương tiện và người điều khiển.
- Các hành vi bị nghiêm cấm và mức xử phạt.
- Hệ thống biển báo và tín hiệu đèn.

*Gợi ý: Hãy đặt câu hỏi cụ thể như "Mức phạt nồng độ cồn" hoặc "Quy tắc vượt xe" để tôi tra cứu chi tiết nhé!*`

// LegalAssistantFailure is returned when the lookup itself breaks.
const LegalAssistantFailure = "⚠️ Xin lỗi, đã có lỗi khi xử lý câu hỏi. Vui lòng thử lại."

func matchTopic(table []topicAliases, query string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, entry := range table {
		for _, alias := range entry.Aliases {
			if strings.Contains(q, alias) {
				return entry.Topic, true
			}
		}
	}
	return "", false
}

func renderProcedure(p procedure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n### CÁC BƯỚC THỰC HIỆN:\n", p.Title)
	b.WriteString(strings.Join(p.Steps, "\n"))
	b.WriteString("\n\n### HỒ SƠ CẦN THIẾT:\n")
	for i, doc := range p.Documents {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- " + doc)
	}
	fmt.Fprintf(&b, "\n\n### THỜI GIAN: %s\n### PHÍ: %s\n### LƯU Ý: %s\n", p.Time, p.Fee, p.Note)
	return b.String()
}

// LegalAssistant answers from the procedure knowledge base and falls through
// to the retrieval gateway when no topic matches.
func (t *Tools) LegalAssistant(ctx context.Context, query string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Msg("legal_assistant failed")
			answer = LegalAssistantFailure
		}
	}()

	topic, ok := matchTopic(procedureAliases, query)
	if ok {
		if topic == topicTraffic {
			return trafficGuide
		}
		t.logger.Debug().Str("topic", topic).Msg("Knowledge base match")
		return renderProcedure(procedures[topic])
	}

	return t.retriever.Lookup(ctx, query)
}
