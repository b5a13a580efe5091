package llm

import (
	"context"
	"fmt"

	"NarrativeScout/backend/go/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
type Gemini struct {
	client    *genai.Client
	modelName string
	maxTokens int32
}

// NewGemini 创建一个新的 Gemini 客户端。
//
// 参数:
//
//	ctx: 上下文，用于控制客户端的生命周期。
//	model: 要使用的 Gemini 模型名称。
//	apiKey: Gemini API 密钥。
//	maxTokens: 单次回复的最大输出 token 数。
func NewGemini(ctx context.Context, model, apiKey string, maxTokens int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, modelName: model, maxTokens: int32(maxTokens)}, nil
}

// GenerateContent 向 Gemini API 发送单轮请求。每次调用都使用新的模型句柄，调用之间不共享会话历史。
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	model := g.client.GenerativeModel(g.modelName)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}
	if g.maxTokens > 0 {
		model.SetMaxOutputTokens(g.maxTokens)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserText()))
	if err != nil {
		return nil, err
	}
	return fromGenaiResponse(resp, g.modelName), nil
}

// Close 关闭底层的 GenAI 客户端。
func (g *Gemini) Close() error {
	return g.client.Close()
}

// fromGenaiResponse 将 GenAI 响应中第一个候选的文本部分转换为内部格式。
func fromGenaiResponse(resp *genai.GenerateContentResponse, modelName string) *models.GenerateContentResponse {
	out := &models.GenerateContentResponse{ModelVersion: modelName}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	var parts []*models.Part
	for _, p := range resp.Candidates[0].Content.Parts {
		if text, ok := p.(genai.Text); ok {
			parts = append(parts, &models.Part{Text: string(text)})
		}
	}
	out.Content = []models.Content{{Parts: parts, Role: models.SpeakerModel}}
	return out
}
