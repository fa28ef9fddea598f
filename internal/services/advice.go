package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"lumina/internal/models"
	"net/http"
	"strings"
	"time"
)

var ErrAdviceDisabled = errors.New("advice service is not configured")

const advicePrompt = "Title: %s\nContent: %s\n\nAnalyze this article. Provide a short 1-paragraph summary, suggest 3 relevant tags, and give one tip to improve the tone."

// AdviceService 调用 Gemini generateContent 接口生成写作建议
type AdviceService struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

func NewAdviceService(endpoint, model, apiKey string, timeout time.Duration) *AdviceService {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AdviceService{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    model,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *AdviceService) Enabled() bool {
	return s != nil && s.apiKey != ""
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

var adviceSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"summary":        map[string]any{"type": "STRING"},
		"tags":           map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"improvementTip": map[string]any{"type": "STRING"},
	},
	"required": []string{"summary", "tags", "improvementTip"},
}

// Generate 返回写作建议；任何失败都以 error 返回，由调用方决定如何降级
func (s *AdviceService) Generate(ctx context.Context, title, content string) (*models.Advice, error) {
	if !s.Enabled() {
		return nil, ErrAdviceDisabled
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: fmt.Sprintf(advicePrompt, title, content)}}}},
		GenerationConfig: map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   adviceSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", s.endpoint, s.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("advice request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("advice status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty advice response")
	}

	return parseAdvice(parsed.Candidates[0].Content.Parts[0].Text)
}

// parseAdvice 模型偶尔会用 ```json 包裹输出
func parseAdvice(text string) (*models.Advice, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var advice models.Advice
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &advice); err != nil {
		return nil, fmt.Errorf("malformed advice: %w", err)
	}
	if strings.TrimSpace(advice.Summary) == "" {
		return nil, fmt.Errorf("malformed advice: empty summary")
	}
	if len(advice.Tags) > 3 {
		advice.Tags = advice.Tags[:3]
	}
	return &advice, nil
}

// Insight 失败时返回 nil 并记录日志，编辑器据此隐藏建议面板
func (s *AdviceService) Insight(ctx context.Context, title, content string) *models.Advice {
	advice, err := s.Generate(ctx, title, content)
	if err != nil {
		if !errors.Is(err, ErrAdviceDisabled) {
			log.Printf("[advice] generation failed: %v", err)
		}
		return nil
	}
	return advice
}
