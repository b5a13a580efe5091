package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"NarrativeScout/backend/go/internal/models"
	transport "NarrativeScout/backend/go/pkg/http"
)

// HuggingFace 是一个用于 Hugging Face Inference API 的 LLM 客户端。
type HuggingFace struct {
	http      *transport.Client
	model     string
	apiKey    string
	baseURL   string
	maxTokens int
}

// NewHuggingFace 创建一个新的 HuggingFace 客户端。
// baseURL 为空时默认为 "https://api-inference.huggingface.co/models/"。
func NewHuggingFace(hc *transport.Client, model, apiKey, baseURL string, maxTokens int) *HuggingFace {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/models/"
	}
	return &HuggingFace{http: hc, model: model, apiKey: apiKey, baseURL: baseURL, maxTokens: maxTokens}
}

type hfGenerated struct {
	GeneratedText string `json:"generated_text"`
}

// GenerateContent 使用文本生成接口生成内容。该接口没有系统指令，系统指令拼接在输入前面。
func (h *HuggingFace) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	inputs := req.UserText()
	if req.SystemInstruction != "" {
		inputs = req.SystemInstruction + "\n\n" + inputs
	}
	body, err := json.Marshal(map[string]interface{}{
		"inputs": inputs,
		"parameters": map[string]interface{}{
			"max_new_tokens":   h.maxTokens,
			"return_full_text": false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := h.http.PostJSON(ctx, h.baseURL+h.model, body, map[string]string{
		"Authorization": "Bearer " + h.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("huggingface request: %w", err)
	}

	var generated []hfGenerated
	if err := json.Unmarshal([]byte(raw), &generated); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(generated) == 0 {
		return nil, fmt.Errorf("no generated text returned")
	}

	content := make([]models.Content, 0, len(generated))
	for _, item := range generated {
		content = append(content, models.Content{
			Parts: []*models.Part{{Text: item.GeneratedText}},
			Role:  models.SpeakerModel,
		})
	}
	return &models.GenerateContentResponse{Content: content, ModelVersion: h.model}, nil
}
