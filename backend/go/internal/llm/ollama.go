package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"NarrativeScout/backend/go/internal/models"

	olla "github.com/ollama/ollama/api"
)

// Ollama 是一个用于 Ollama API 的 LLM 客户端。
type Ollama struct {
	client    *olla.Client // Ollama 客户端实例。
	model     string       // 要使用的模型名称。
	maxTokens int
}

// NewOllama 创建一个新的 Ollama 客户端。
// baseURL 为空时默认为 "http://localhost:11434"。
func NewOllama(model, baseURL string, maxTokens int, hc *http.Client) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Ollama{client: olla.NewClient(parsedURL, hc), model: model, maxTokens: maxTokens}, nil
}

// GenerateContent 使用 Ollama generate 接口以非流式方式生成内容。
func (o *Ollama) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	stream := false
	genReq := &olla.GenerateRequest{
		Model:  o.model,
		Prompt: req.UserText(),
		System: req.SystemInstruction,
		Stream: &stream,
	}
	if o.maxTokens > 0 {
		genReq.Options = map[string]interface{}{"num_predict": o.maxTokens}
	}

	var result olla.GenerateResponse
	err := o.client.Generate(ctx, genReq, func(resp olla.GenerateResponse) error {
		result = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with ollama: %w", err)
	}

	return &models.GenerateContentResponse{
		Content: []models.Content{{
			Parts: []*models.Part{{Text: result.Response}},
			Role:  models.SpeakerModel,
		}},
		ModelVersion: result.Model,
	}, nil
}
