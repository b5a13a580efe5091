package sinks

import (
	"context"
	"io"
	"time"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/internal/models"
	"NarrativeScout/backend/go/internal/pipeline"
	"NarrativeScout/backend/go/pkg/logger"
)

// Sink 是报告生成后的可选发布目标。
type Sink interface {
	Name() string
	Publish(ctx context.Context, art *Artifact) error
}

// NarrativeSummary 是运行摘要中的单个叙事。
type NarrativeSummary struct {
	Title      string                `json:"title"`
	Trend      models.TrendDirection `json:"trend"`
	Confidence float64               `json:"confidence"`
}

// RunSummary 是发送到消息队列的运行摘要。
type RunSummary struct {
	RunID         string             `json:"run_id"`
	GeneratedAt   time.Time          `json:"generated_at"`
	Signals       int                `json:"signals"`
	Sources       int                `json:"sources"`
	FailedSources []string           `json:"failed_sources"`
	Narratives    []NarrativeSummary `json:"narratives"`
	Ideas         []string           `json:"ideas"`
	Issues        int                `json:"issues"`
	ReportPath    string             `json:"report_path"`
}

// Artifact 是一次运行的产物：渲染后的报告及其摘要。
type Artifact struct {
	RunID   string
	Format  string // html 或 markdown
	Content []byte
	Summary RunSummary
}

// Extension 返回报告文件的扩展名。
func (a *Artifact) Extension() string {
	if a.Format == "markdown" {
		return "md"
	}
	return "html"
}

// ContentType 返回报告的 MIME 类型。
func (a *Artifact) ContentType() string {
	if a.Format == "markdown" {
		return "text/markdown; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// NewArtifact 根据流水线结果和渲染后的报告构造产物。
func NewArtifact(res *pipeline.Result, content []byte, format, reportPath string) *Artifact {
	summary := RunSummary{
		RunID:         res.RunID,
		GeneratedAt:   res.StartedAt,
		Signals:       len(res.Signals),
		Sources:       res.SourceCount(),
		FailedSources: []string{},
		Narratives:    make([]NarrativeSummary, 0, len(res.Narratives)),
		Ideas:         make([]string, 0, len(res.Ideas)),
		Issues:        len(res.Issues),
		ReportPath:    reportPath,
	}
	for _, o := range res.Outcomes {
		if o.Err != nil {
			summary.FailedSources = append(summary.FailedSources, o.Source)
		}
	}
	for _, n := range res.Narratives {
		summary.Narratives = append(summary.Narratives, NarrativeSummary{Title: n.Title, Trend: n.Trend, Confidence: n.Confidence})
	}
	for _, i := range res.Ideas {
		summary.Ideas = append(summary.Ideas, i.Title)
	}
	return &Artifact{RunID: res.RunID, Format: format, Content: content, Summary: summary}
}

// FromConfig 创建所有已启用的发布目标。
func FromConfig(cfg config.SinksConfig, log *logger.Logger) ([]Sink, error) {
	var sinks []Sink
	if cfg.MinIO.Enabled {
		s, err := NewMinIOSink(cfg.MinIO, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Kafka.Enabled {
		sinks = append(sinks, NewKafkaSink(cfg.Kafka, log))
	}
	return sinks, nil
}

// PublishAll 依次发布到每个目标。发布失败只记录日志，不影响本次运行。
// 返回成功发布的目标数量。
func PublishAll(ctx context.Context, sinks []Sink, art *Artifact, log *logger.Logger) int {
	if log == nil {
		log = logger.Nop()
	}
	ok := 0
	for _, s := range sinks {
		l := log.WithField("sink", s.Name())
		if err := s.Publish(ctx, art); err != nil {
			l.WithError(models.ErrorInfo{Message: err.Error(), Type: "sink_error", Source: s.Name()}).
				Warn("failed to publish run artifact")
			continue
		}
		l.Info("run artifact published")
		ok++
	}
	return ok
}

// CloseAll 关闭持有连接的发布目标。
func CloseAll(sinks []Sink, log *logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}
	for _, s := range sinks {
		c, ok := s.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			log.WithField("sink", s.Name()).
				WithError(models.ErrorInfo{Message: err.Error(), Type: "sink_error", Source: s.Name()}).
				Warn("failed to close sink")
		}
	}
}
