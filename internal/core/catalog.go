package core

// Category catalogs are fixed and predefined per kind. Records store the
// display name, not an internal ID, so renaming a catalog entry does not
// rewrite history.

var expenseCategories = []string{
	"Ăn uống",
	"Di chuyển",
	"Mua sắm",
	"Hóa đơn & Tiện ích",
	"Giải trí",
	"Sức khỏe",
	"Giáo dục",
	"Khác",
}

var incomeCategories = []string{
	"Lương",
	"Thưởng",
	"Đầu tư",
	"Kinh doanh",
	"Quà tặng",
	"Thu nhập khác",
}

// CategoryKeywords maps category names to plain-text hints used by the AI
// parser when classifying free-text input. Vietnamese is commonly typed
// without diacritics, so both forms are listed.
var CategoryKeywords = map[string][]string{
	"Ăn uống":            {"ăn", "an", "uống", "uong", "cơm", "com", "cafe", "trà", "tra", "phở", "pho"},
	"Di chuyển":          {"xe", "grab", "taxi", "xăng", "xang", "bus", "vé", "ve"},
	"Mua sắm":            {"mua", "shopee", "lazada", "quần", "quan", "áo", "ao", "giày", "giay"},
	"Hóa đơn & Tiện ích": {"điện", "dien", "nước", "nuoc", "internet", "tiền nhà", "tien nha", "thuê", "thue"},
	"Giải trí":           {"phim", "game", "nhạc", "nhac", "du lịch", "du lich"},
	"Sức khỏe":           {"thuốc", "thuoc", "khám", "kham", "bệnh viện", "benh vien", "gym"},
	"Giáo dục":           {"học", "hoc", "sách", "sach", "khóa", "khoa"},
	"Lương":              {"lương", "luong", "salary"},
	"Thưởng":             {"thưởng", "thuong", "bonus"},
	"Đầu tư":             {"cổ tức", "co tuc", "lãi", "lai", "đầu tư", "dau tu"},
	"Kinh doanh":         {"bán", "ban", "doanh thu"},
	"Quà tặng":           {"quà", "qua", "lì xì", "li xi"},
}

// Categories returns the catalog for a kind. The returned slice is a copy.
func Categories(kind Kind) []string {
	var src []string
	switch kind {
	case KindExpense:
		src = expenseCategories
	case KindIncome:
		src = incomeCategories
	default:
		return nil
	}
	return append([]string(nil), src...)
}

// KnownCategory reports whether name belongs to the catalog for kind.
func KnownCategory(kind Kind, name string) bool {
	for _, c := range Categories(kind) {
		if c == name {
			return true
		}
	}
	return false
}

// FallbackCategory is the catch-all catalog entry for a kind.
func FallbackCategory(kind Kind) string {
	if kind == KindIncome {
		return "Thu nhập khác"
	}
	return "Khác"
}
