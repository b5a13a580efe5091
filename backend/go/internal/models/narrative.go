package models

import (
	"math"
	"strings"
)

// TrendDirection 是叙事的趋势状态。
type TrendDirection string

const (
	TrendAccelerating TrendDirection = "Accelerating"
	TrendStable       TrendDirection = "Stable"
	TrendDecelerating TrendDirection = "Decelerating"
	TrendEmerging     TrendDirection = "Emerging"
)

// ParseTrend 不区分大小写地把模型给出的趋势文本映射到四种状态之一。
// 无法识别或为空的文本一律视为 Emerging，从不返回错误。
func ParseTrend(s string) TrendDirection {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accelerating":
		return TrendAccelerating
	case "stable", "steady":
		return TrendStable
	case "decelerating", "declining":
		return TrendDecelerating
	case "emerging", "nascent", "early":
		return TrendEmerging
	default:
		return TrendEmerging
	}
}

// CSSClass 返回报告中使用的颜色类。
func (t TrendDirection) CSSClass() string {
	switch t {
	case TrendAccelerating:
		return "text-green-400"
	case TrendStable:
		return "text-blue-400"
	case TrendDecelerating:
		return "text-red-400"
	default:
		return "text-yellow-400"
	}
}

// ClampConfidence 把置信度限制在 [0,1]，NaN 视为 0。
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// SignalRef 是指向信号序列的已校验索引。只能通过 NewSignalRefs 构造。
type SignalRef int

// NewSignalRefs 对模型返回的原始索引做边界检查。
// 返回值 refs 只包含 [0, n) 内的索引（保持原顺序），rejected 为被丢弃的原始值。
func NewSignalRefs(raw []int, n int) (refs []SignalRef, rejected []int) {
	refs = make([]SignalRef, 0, len(raw))
	for _, i := range raw {
		if i < 0 || i >= n {
			rejected = append(rejected, i)
			continue
		}
		refs = append(refs, SignalRef(i))
	}
	return refs, rejected
}

// NarrativeRef 是指向叙事序列的已校验索引。
type NarrativeRef int

// NoNarrative 表示模型给出的叙事索引越界。
const NoNarrative NarrativeRef = -1

// NewNarrativeRef 对原始叙事索引做边界检查，越界时返回 NoNarrative 和 false。
func NewNarrativeRef(raw, n int) (NarrativeRef, bool) {
	if raw < 0 || raw >= n {
		return NoNarrative, false
	}
	return NarrativeRef(raw), true
}

// Valid 报告该引用是否指向一个存在的叙事。
func (r NarrativeRef) Valid() bool {
	return r >= 0
}

// Narrative 是第一阶段 LLM 调用产出的趋势判断。
type Narrative struct {
	Title             string         `json:"title"`
	Summary           string         `json:"summary"`
	Confidence        float64        `json:"confidence"`
	SupportingSignals []SignalRef    `json:"supporting_signals"`
	Trend             TrendDirection `json:"trend"`
	KeyMetrics        []Metric       `json:"key_metrics"`
}

// BuildIdea 是第二阶段 LLM 调用产出的产品构想，通过 NarrativeIndex 关联一个叙事。
type BuildIdea struct {
	Title                string       `json:"title"`
	Description          string       `json:"description"`
	TargetUser           string       `json:"target_user"`
	MVPScope             string       `json:"mvp_scope"`
	CompetitiveLandscape string       `json:"competitive_landscape"`
	TimingRationale      string       `json:"timing_rationale"`
	NarrativeIndex       NarrativeRef `json:"narrative_index"`
}
