package models

// ErrorInfo 存储了关于错误的结构化信息。
type ErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"` // 错误的类型，例如 "collector_error", "parse_error"
	Source  string `json:"source,omitempty"`
}

// IssueKind 区分数据质量问题的种类。
type IssueKind string

const (
	IssueSignalRefOutOfRange    IssueKind = "signal_ref_out_of_range"
	IssueNarrativeRefOutOfRange IssueKind = "narrative_ref_out_of_range"
	IssueUnitConflict           IssueKind = "unit_conflict"
)

// DataQualityIssue 记录一次被检测到但未中止运行的数据质量问题。
type DataQualityIssue struct {
	Kind   IssueKind `json:"kind"`
	Stage  string    `json:"stage"`
	Item   string    `json:"item"`
	Detail string    `json:"detail"`
}
