package llm

import (
	"context"
	"fmt"
	"io"
	"time"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/internal/models"
	transport "NarrativeScout/backend/go/pkg/http"
	"NarrativeScout/backend/go/pkg/logger"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
// 一次请求包含一条系统指令和一条用户消息，返回模型的原始文本。
type LLM interface {
	GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)
}

// NewClient 是一个工厂函数，根据配置创建实现了 LLM 接口的客户端。提供商只在启动时选择一次。
// 模型请求的超时取 llm.timeout，而不是采集器使用的 http.timeout。
func NewClient(ctx context.Context, cfg config.LLMConfig, hc *transport.Client) (LLM, error) {
	apiKey := cfg.APIKey()
	hc = hc.WithTimeout(cfg.TimeoutDuration())
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropic(hc, cfg.Model, apiKey, cfg.MaxTokens, cfg.BaseURL), nil
	case "openai":
		return NewOpenAI(cfg.Model, apiKey, cfg.BaseURL, cfg.MaxTokens, hc.StandardClient()), nil
	case "openrouter":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = OpenRouterBaseURL
		}
		return NewOpenAI(cfg.Model, apiKey, baseURL, cfg.MaxTokens, hc.StandardClient()), nil
	case "gemini":
		return NewGemini(ctx, cfg.Model, apiKey, cfg.MaxTokens)
	case "ollama":
		return NewOllama(cfg.Model, cfg.BaseURL, cfg.MaxTokens, hc.StandardClient())
	case "huggingface":
		return NewHuggingFace(hc, cfg.Model, apiKey, cfg.BaseURL, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Gateway 把任意 LLM 包装成 "发送提示，取回文本" 的接口，并为每次调用设置超时。
// 网关本身不重试。
type Gateway struct {
	llm     LLM
	timeout time.Duration
	log     *logger.Logger
}

// NewGateway 创建网关。timeout 为 0 表示不设置超时。
func NewGateway(client LLM, timeout time.Duration, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{llm: client, timeout: timeout, log: log.Named("llm")}
}

// Complete 发送一条系统指令和一条用户消息，返回模型回复的文本。
// 传输或 API 错误原样包装后返回。
func (g *Gateway) Complete(ctx context.Context, system, user string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, models.NewTextRequest(system, user))
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	text := resp.Text()

	g.log.WithPayload(map[string]interface{}{
		"model":          resp.ModelVersion,
		"prompt_chars":   len(user),
		"response_chars": len(text),
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Debug("llm completion finished")
	return text, nil
}

// Close 释放底层客户端持有的资源（如果有）。
func (g *Gateway) Close() error {
	if c, ok := g.llm.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
