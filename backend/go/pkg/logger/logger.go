package logger

import (
	"io"
	"os"
	"strings"

	"NarrativeScout/backend/go/internal/models"

	"github.com/sirupsen/logrus"
)

// Logger 是对 logrus 的封装，以提供更方便的结构化日志记录功能。
// With* 方法返回新的 Logger，不修改接收者，因此并发的采集器可以共享同一个父 Logger。
type Logger struct {
	entry *logrus.Entry
}

// Init 初始化全局的 logrus 配置。
// level: 日志级别字符串 (例如 "info", "debug")，无法解析时使用 info。
// format: "json"（默认）或 "text"。
func Init(level, format string, out io.Writer) {
	if strings.EqualFold(format, "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		// JSON 格式便于日志采集和分析。
		logrus.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	if out == nil {
		out = os.Stdout
	}
	logrus.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// New 创建一个挂在全局 logrus 上的 Logger，预设组件名和运行 ID。
func New(component, runID string) *Logger {
	return NewWithLogger(logrus.StandardLogger(), component, runID)
}

// NewWithLogger 使用指定的 logrus.Logger 创建 Logger，主要用于测试中捕获日志。
func NewWithLogger(base *logrus.Logger, component, runID string) *Logger {
	fields := logrus.Fields{"component": component}
	if runID != "" {
		fields["run_id"] = runID
	}
	return &Logger{entry: base.WithFields(fields)}
}

// Nop 返回一个丢弃所有输出的 Logger。
func Nop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

// Named 返回替换了组件名的 Logger。
func (l *Logger) Named(component string) *Logger {
	return &Logger{entry: l.entry.WithField("component", component)}
}

// WithField 添加单个字段。
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithPayload 将自定义的业务数据平铺添加到日志条目中。
func (l *Logger) WithPayload(payload map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(payload))}
}

// WithError 将错误信息添加到日志条目中。
func (l *Logger) WithError(err models.ErrorInfo) *Logger {
	return &Logger{entry: l.entry.WithField("error", err)}
}

// Info 记录一条信息级别的日志。
func (l *Logger) Info(message string) {
	l.entry.Info(message)
}

// Warn 记录一条警告级别的日志。
func (l *Logger) Warn(message string) {
	l.entry.Warn(message)
}

// Error 记录一条错误级别的日志。
func (l *Logger) Error(message string) {
	l.entry.Error(message)
}

// Debug 记录一条调试级别的日志。
func (l *Logger) Debug(message string) {
	l.entry.Debug(message)
}
