package llm

import (
	"context"
	"fmt"
	"net/http"

	"NarrativeScout/backend/go/internal/models"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenRouterBaseURL 是 OpenRouter 的 OpenAI 兼容接口地址。
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAI 是一个用于 OpenAI 兼容 API（OpenAI、OpenRouter）的 LLM 客户端。
type OpenAI struct {
	client    *openai.Client // OpenAI 客户端实例。
	model     string         // 要使用的模型名称。
	maxTokens int
}

// NewOpenAI 创建一个新的 OpenAI 客户端。baseURL 为空时使用 OpenAI 官方地址。
func NewOpenAI(model, apiKey, baseURL string, maxTokens int, hc *http.Client) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if hc != nil {
		config.HTTPClient = hc
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: maxTokens,
	}
}

// GenerateContent 使用 Chat Completions 接口生成内容。
func (o *OpenAI) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.toOpenAIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	return o.toGenerateContentResponse(&resp), nil
}

// toOpenAIRequest 将内部请求格式转换为 OpenAI 格式，系统指令作为第一条 system 消息。
func (o *OpenAI) toOpenAIRequest(req *models.GenerateContentRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserText(),
	})

	return openai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: o.maxTokens,
	}
}

// toGenerateContentResponse 将 OpenAI 响应转换为内部格式。只取第一个候选。
func (o *OpenAI) toGenerateContentResponse(resp *openai.ChatCompletionResponse) *models.GenerateContentResponse {
	var content []models.Content
	if len(resp.Choices) > 0 {
		content = append(content, models.Content{
			Parts: []*models.Part{{Text: resp.Choices[0].Message.Content}},
			Role:  models.SpeakerModel,
		})
	}
	return &models.GenerateContentResponse{
		Content:      content,
		ResponseID:   resp.ID,
		ModelVersion: resp.Model,
	}
}
