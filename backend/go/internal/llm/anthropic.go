package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"NarrativeScout/backend/go/internal/models"
	transport "NarrativeScout/backend/go/pkg/http"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
)

// Anthropic 是一个通过共享文本传输调用 Anthropic Messages API 的 LLM 客户端。
type Anthropic struct {
	http      *transport.Client
	model     string
	apiKey    string
	maxTokens int
	url       string
}

// NewAnthropic 创建一个新的 Anthropic 客户端。baseURL 为空时使用官方地址。
func NewAnthropic(hc *transport.Client, model, apiKey string, maxTokens int, baseURL string) *Anthropic {
	if baseURL == "" {
		baseURL = anthropicMessagesURL
	}
	return &Anthropic{http: hc, model: model, apiKey: apiKey, maxTokens: maxTokens, url: baseURL}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// GenerateContent 发送一次 Messages 请求，文本块之间用换行连接。
func (a *Anthropic) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    req.SystemInstruction,
		Messages:  []anthropicMessage{{Role: "user", Content: req.UserText()}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := a.http.PostJSON(ctx, a.url, body, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode anthropic response: %w", err)
	}

	var texts []string
	for _, block := range resp.Content {
		if block.Type == "text" || block.Type == "" {
			texts = append(texts, block.Text)
		}
	}
	return &models.GenerateContentResponse{
		Content: []models.Content{{
			Parts: []*models.Part{{Text: strings.Join(texts, "\n")}},
			Role:  models.SpeakerModel,
		}},
		ResponseID:   resp.ID,
		ModelVersion: resp.Model,
	}, nil
}
