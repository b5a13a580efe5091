package models

import (
	"fmt"
	"time"
)

// SignalSource 标识信号来自哪一个采集器。
type SignalSource string

const (
	SourceGitHub        SignalSource = "GitHub"        // 代码托管平台上的开发者活动。
	SourceSolanaOnchain SignalSource = "SolanaOnchain" // 链上 RPC 指标。
	SourceSocial        SignalSource = "Social"        // 博客等公开文章。
)

// String 返回用于报告和 LLM 摘要的显示名称。
func (s SignalSource) String() string {
	switch s {
	case SourceGitHub:
		return "GitHub"
	case SourceSolanaOnchain:
		return "Solana Onchain"
	case SourceSocial:
		return "Social"
	default:
		return string(s)
	}
}

// Metric 是一个带单位的数值指标。Unit 可以为空。
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// String 以 "name: 12.3 unit" 的形式格式化指标，单位为空时省略。
func (m Metric) String() string {
	if m.Unit == "" {
		return fmt.Sprintf("%s: %.1f", m.Name, m.Value)
	}
	return fmt.Sprintf("%s: %.1f %s", m.Name, m.Value, m.Unit)
}

// Signal 是来自单一来源的一条带时间戳的事实。
// 它在采集时创建，之后不再修改；它在采集序列中的位置就是后续阶段引用的索引。
type Signal struct {
	Source      SignalSource `json:"source"`
	Category    string       `json:"category"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Metrics     []Metric     `json:"metrics"`
	URL         *string      `json:"url"`
	Timestamp   time.Time    `json:"timestamp"`
}

// URLOrEmpty 返回信号的 URL，没有时返回空字符串。
func (s Signal) URLOrEmpty() string {
	if s.URL == nil {
		return ""
	}
	return *s.URL
}

// StringPtr 是构造可选 URL 的小工具。
func StringPtr(v string) *string {
	return &v
}
