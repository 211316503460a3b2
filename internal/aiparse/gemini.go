package aiparse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"chitieu/internal/core"
)

// Gemini asks a Gemini model to read the input and falls back to the keyword
// heuristic when the response cannot be used.
type Gemini struct {
	apiKey string
	model  string
	now    func() time.Time
}

func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{apiKey: apiKey, model: model, now: time.Now}
}

// Configured reports whether an API key is set.
func (g *Gemini) Configured() bool {
	return g.apiKey != ""
}

// ParseTransaction implements Parser.
func (g *Gemini) ParseTransaction(ctx context.Context, kind core.Kind, input string) (ParsedTransaction, error) {
	if strings.TrimSpace(input) == "" {
		return ParsedTransaction{}, ErrEmptyInput
	}
	if !kind.IsValid() {
		return ParsedTransaction{}, core.ErrInvalidKind
	}
	if !g.Configured() {
		return ParsedTransaction{}, ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return ParsedTransaction{}, fmt.Errorf("create genai client: %w", err)
	}

	now := g.now()
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildPrompt(kind, input, now)}},
		},
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.1),
		MaxOutputTokens: 200,
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return ParsedTransaction{}, fmt.Errorf("generate content: %w", err)
	}

	parsed, err := decodeResponse(kind, resp.Text(), input, now)
	if err != nil {
		slog.WarnContext(ctx, "Unusable model response, falling back to keyword parsing",
			"kind", kind,
			"error", err)
		return FallbackParse(kind, input, now), nil
	}
	return parsed, nil
}

// transactionLabel is the Vietnamese word used in the prompt for each kind.
func transactionLabel(kind core.Kind) string {
	if kind == core.KindIncome {
		return "thu nhập"
	}
	return "chi tiêu"
}

func buildPrompt(kind core.Kind, input string, now time.Time) string {
	label := transactionLabel(kind)
	categories := strings.Join(core.Categories(kind), ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "Phân tích giao dịch %s này và trả về CHỈ MỘT đối tượng JSON với cấu trúc sau:\n", label)
	b.WriteString(`{
  "amount": number,
  "category": "string",
  "description": "string",
  "date": "YYYY-MM-DD",
  "confidence": number (0-1)
}

CHÚ Ý: Đầu vào có thể là tiếng Việt KHÔNG dấu (sắc, huyền, ngã, hỏi, nặng).
Ví dụ: "tien nha" = "tiền nhà", "an uong" = "ăn uống", "di chuyen" = "di chuyển"

Quy tắc QUAN TRỌNG:
- AMOUNT: Trích xuất số tiền chính xác. Chú ý: "100k" = 100000, "1tr" = 1000000
`)
	fmt.Fprintf(&b, "- DESCRIPTION: Mô tả ngắn gọn, rõ ràng về giao dịch %s\n", label)
	fmt.Fprintf(&b, "- CATEGORY: Chọn danh mục phù hợp nhất từ danh sách các danh mục %s: [%s]\n", label, categories)
	fmt.Fprintf(&b, "- DATE: Tính toán ngày chính xác dạng YYYY-MM-DD. Hôm nay là %s\n", now.Format("2006-01-02"))
	b.WriteString(`- CONFIDENCE: Cao (>0.8) khi thông tin rõ ràng, thấp (<0.5) khi thông tin mơ hồ

Quy tắc ƯU TIÊN:
- Nếu đầu vào có "tiền nhà", "nhà tháng", "tien nha", "nha thang" -> CATEGORY phải là "Hóa đơn & Tiện ích"

`)
	fmt.Fprintf(&b, "Loại giao dịch: %s\n", strings.ToUpper(label))
	fmt.Fprintf(&b, "Đầu vào: %q\n\n", input)
	b.WriteString("Chỉ trả về JSON:")
	return b.String()
}

// decodeResponse extracts the JSON object from the model output and maps it
// into a ParsedTransaction, defaulting missing fields the same way the
// fallback path would.
func decodeResponse(kind core.Kind, raw, originalInput string, now time.Time) (ParsedTransaction, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return ParsedTransaction{}, fmt.Errorf("empty response from model")
	}

	var body struct {
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Description string  `json:"description"`
		Date        string  `json:"date"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(clean), &body); err != nil {
		return ParsedTransaction{}, fmt.Errorf("unmarshal model response: %w", err)
	}

	category := body.Category
	if !core.KnownCategory(kind, category) {
		category = core.FallbackCategory(kind)
	}

	description := strings.TrimSpace(body.Description)
	if description == "" {
		description = originalInput
	}

	date := now
	if body.Date != "" {
		if d, err := time.ParseInLocation("2006-01-02", body.Date, time.Local); err == nil {
			date = d
		}
	}

	confidence := body.Confidence
	if confidence == 0 {
		confidence = 0.5
	}
	confidence = min(max(confidence, 0), 1)

	return ParsedTransaction{
		Amount:      body.Amount,
		Category:    category,
		Description: capitalizeFirst(description),
		Date:        date,
		Confidence:  confidence,
		Suggestions: []string{},
	}, nil
}

// cleanModelJSON strips Markdown fences and surrounding chatter when the
// model ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
