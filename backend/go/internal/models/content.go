package models

import "strings"

// SpeakerRole 定义了消息发送者的角色。
type SpeakerRole string

const (
	SpeakerUser  SpeakerRole = "user"  // 用户角色。
	SpeakerModel SpeakerRole = "model" // 模型角色。
)

// Part 是消息中的一个文本片段。
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content 包含了构成单个消息的多个部分。
type Content struct {
	Parts []*Part     `json:"parts,omitempty"`
	Role  SpeakerRole `json:"role,omitempty"`
}

// GenerateContentRequest 定义了一次补全请求：一条系统指令加上对话内容。
type GenerateContentRequest struct {
	SystemInstruction string    `json:"systemInstruction,omitempty"` // 系统提示词。
	Content           []Content `json:"content,omitempty"`           // 请求的内容列表。
}

// NewTextRequest 构造只包含一条用户消息的请求。
func NewTextRequest(system, user string) *GenerateContentRequest {
	return &GenerateContentRequest{
		SystemInstruction: system,
		Content: []Content{
			{Role: SpeakerUser, Parts: []*Part{{Text: user}}},
		},
	}
}

// UserText 把请求中所有文本部分按顺序拼接起来。
func (r *GenerateContentRequest) UserText() string {
	var sb strings.Builder
	for _, c := range r.Content {
		for _, p := range c.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// GenerateContentResponse 定义了生成内容的响应结构。
type GenerateContentResponse struct {
	Content      []Content `json:"content,omitempty"`      // 响应的内容列表。
	ResponseID   string    `json:"responseId,omitempty"`   // 响应ID。
	ModelVersion string    `json:"modelVersion,omitempty"` // 模型版本。
}

// Text 把响应中所有非空文本部分用换行连接。
func (r *GenerateContentResponse) Text() string {
	if r == nil {
		return ""
	}
	var texts []string
	for _, c := range r.Content {
		for _, p := range c.Parts {
			if p != nil && p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
	}
	return strings.Join(texts, "\n")
}
