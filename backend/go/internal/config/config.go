package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid 表示配置未通过校验。
var ErrInvalid = errors.New("invalid config")

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level  string `yaml:"level"`                                       // 日志级别 (例如: "info", "debug", "warn", "error")
	Format string `yaml:"format" validate:"omitempty,oneof=json text"` // 日志格式
}

// LLMConfig 定义了 LLM 提供商的选择和调用参数。
type LLMConfig struct {
	Provider  string `yaml:"provider" validate:"required,oneof=anthropic openai openrouter gemini ollama huggingface"`
	Model     string `yaml:"model" validate:"required"`
	MaxTokens int    `yaml:"maxTokens" validate:"gte=1"`
	APIKeyEnv string `yaml:"apiKeyEnv"`                        // 存放 API 密钥的环境变量名
	BaseURL   string `yaml:"baseURL" validate:"omitempty,url"` // 覆盖默认的 API 地址
	Timeout   string `yaml:"timeout"`                          // 单次调用超时，例如 "180s"
}

// GitHubQuery 是一条仓库搜索语句及其信号分类。
type GitHubQuery struct {
	Query    string `yaml:"query" validate:"required"`
	Category string `yaml:"category" validate:"required"`
}

// GitHubConfig 定义了 GitHub 采集器的配置。
type GitHubConfig struct {
	Enabled      *bool         `yaml:"enabled"`
	TokenEnv     string        `yaml:"tokenEnv"`                         // 存放访问令牌的环境变量名
	BaseURL      string        `yaml:"baseURL" validate:"omitempty,url"` // GitHub Enterprise 或测试服务器
	Queries      []GitHubQuery `yaml:"queries" validate:"dive"`
	LookbackDays int           `yaml:"lookbackDays" validate:"gte=0"`
	PerQuery     int           `yaml:"perQuery" validate:"gte=0,lte=100"`
	MinStars     int           `yaml:"minStars" validate:"gte=0"`
}

// TrackedProgram 是需要统计链上活跃度的程序。
type TrackedProgram struct {
	Name     string `yaml:"name" validate:"required"`
	Address  string `yaml:"address" validate:"required"`
	Category string `yaml:"category" validate:"required"`
}

// SolanaConfig 定义了 Solana RPC 采集器的配置。
type SolanaConfig struct {
	Enabled           *bool            `yaml:"enabled"`
	RPCURL            string           `yaml:"rpcURL" validate:"omitempty,url"`
	SignatureLimit    int              `yaml:"signatureLimit" validate:"gte=0,lte=1000"`
	RequestsPerSecond float64          `yaml:"requestsPerSecond" validate:"gte=0"`
	Burst             int              `yaml:"burst" validate:"gte=0"`
	TrackedPrograms   []TrackedProgram `yaml:"trackedPrograms" validate:"dive"`
}

// SocialSource 是一个需要抓取的博客页面。
type SocialSource struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,url"`
}

// SocialConfig 定义了博客抓取采集器的配置。
type SocialConfig struct {
	Enabled           *bool          `yaml:"enabled"`
	Sources           []SocialSource `yaml:"sources" validate:"dive"`
	RelevancePatterns []string       `yaml:"relevancePatterns"` // glob 模式，匹配小写标题
	MaxTitles         int            `yaml:"maxTitles" validate:"gte=0"`
}

// SourcesConfig 包含所有采集器的配置。
type SourcesConfig struct {
	GitHub GitHubConfig `yaml:"github"`
	Solana SolanaConfig `yaml:"solana"`
	Social SocialConfig `yaml:"social"`
}

// CollectorConfig 定义了采集阶段的公共配置。
type CollectorConfig struct {
	Timeout string `yaml:"timeout"` // 每个采集器的超时
}

// RetryConfig 定义了传输层的重试策略。MaxAttempts 为 1 时不重试。
type RetryConfig struct {
	MaxAttempts int    `yaml:"maxAttempts" validate:"gte=1"`
	BaseDelay   string `yaml:"baseDelay"`
	MaxDelay    string `yaml:"maxDelay"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// PageCacheConfig 定义了单次运行内 GET 响应缓存的配置。Capacity 为 0 时关闭缓存。
type PageCacheConfig struct {
	Capacity int    `yaml:"capacity" validate:"gte=0"`
	TTL      string `yaml:"ttl"`
}

// HTTPConfig 定义了共享 HTTP 传输的配置。
type HTTPConfig struct {
	UserAgent      string               `yaml:"userAgent"`
	Timeout        string               `yaml:"timeout"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
	PageCache      PageCacheConfig      `yaml:"pageCache"`
}

// OutputConfig 定义了报告输出。
type OutputConfig struct {
	Path   string `yaml:"path" validate:"required"`
	Format string `yaml:"format" validate:"oneof=html markdown"`
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 存储桶名称
	Prefix    string `yaml:"prefix"`    // 对象名前缀
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// KafkaConfig 定义了运行摘要消息的发布配置。
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topic   string   `yaml:"topic"`
}

// SinksConfig 包含可选的产物发布目标。
type SinksConfig struct {
	MinIO MinIOConfig `yaml:"minio"`
	Kafka KafkaConfig `yaml:"kafka"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App       AppInfo         `yaml:"app"`
	Logger    LoggerConfig    `yaml:"logger"`
	LLM       LLMConfig       `yaml:"llm"`
	Sources   SourcesConfig   `yaml:"sources"`
	Collector CollectorConfig `yaml:"collector"`
	HTTP      HTTPConfig      `yaml:"http"`
	Output    OutputConfig    `yaml:"output"`
	Sinks     SinksConfig     `yaml:"sinks"`
}

// envOverrides 是允许通过环境变量覆盖的配置项。
type envOverrides struct {
	Provider   string `env:"NARRATIVE_LLM_PROVIDER"`
	Model      string `env:"NARRATIVE_LLM_MODEL"`
	OutputPath string `env:"NARRATIVE_OUTPUT_PATH"`
	LogLevel   string `env:"NARRATIVE_LOG_LEVEL"`
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件，填充默认值并应用环境变量覆盖。
// 校验由调用方在应用命令行覆盖之后通过 Validate 完成。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	return Parse(yamlFile)
}

// Parse 解析 YAML 内容，填充默认值并应用环境变量覆盖。
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("解析环境变量失败: %w", err)
	}
	if o.Provider != "" {
		c.LLM.Provider = o.Provider
		c.LLM.APIKeyEnv = ""
		c.LLM.applyDefaults()
	}
	if o.Model != "" {
		c.LLM.Model = o.Model
	}
	if o.OutputPath != "" {
		c.Output.Path = o.OutputPath
	}
	if o.LogLevel != "" {
		c.Logger.Level = o.LogLevel
	}
	return nil
}

// SetProvider 切换 LLM 提供商，并在未显式配置时更新 API 密钥环境变量名。
func (c *AppConfig) SetProvider(provider string) {
	if provider == c.LLM.Provider {
		return
	}
	c.LLM.Provider = provider
	c.LLM.APIKeyEnv = ""
	c.LLM.applyDefaults()
}

func (c *AppConfig) applyDefaults() {
	setDefault(&c.App.Name, "narrative-scout")
	setDefault(&c.Logger.Level, "info")
	setDefault(&c.Logger.Format, "json")

	c.LLM.applyDefaults()

	gh := &c.Sources.GitHub
	setDefault(&gh.TokenEnv, "GITHUB_TOKEN")
	if gh.LookbackDays == 0 {
		gh.LookbackDays = 30
	}
	if gh.PerQuery == 0 {
		gh.PerQuery = 10
	}

	sol := &c.Sources.Solana
	setDefault(&sol.RPCURL, "https://api.mainnet-beta.solana.com")
	if sol.SignatureLimit == 0 {
		sol.SignatureLimit = 100
	}
	if sol.RequestsPerSecond == 0 {
		sol.RequestsPerSecond = 5
	}
	if sol.Burst == 0 {
		sol.Burst = 5
	}

	social := &c.Sources.Social
	if len(social.RelevancePatterns) == 0 {
		social.RelevancePatterns = []string{
			"*solana*", "*sol*", "*defi*", "*depin*", "*token*", "*validator*",
			"*staking*", "*nft*", "*web3*", "*blockchain*", "*crypto*",
		}
	}
	if social.MaxTitles == 0 {
		social.MaxTitles = 10
	}

	setDefault(&c.Collector.Timeout, "60s")

	setDefault(&c.HTTP.UserAgent, "narrative-scout/0.1.0")
	setDefault(&c.HTTP.Timeout, "30s")
	if c.HTTP.Retry.MaxAttempts == 0 {
		c.HTTP.Retry.MaxAttempts = 1
	}
	setDefault(&c.HTTP.Retry.BaseDelay, "500ms")
	setDefault(&c.HTTP.Retry.MaxDelay, "5s")
	cb := &c.HTTP.CircuitBreaker
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = 5
	}
	if cb.SuccessThreshold == 0 {
		cb.SuccessThreshold = 1
	}
	setDefault(&cb.Timeout, "30s")
	setDefault(&c.HTTP.PageCache.TTL, "10m")

	setDefault(&c.Output.Path, "output/report.html")
	setDefault(&c.Output.Format, "html")

	setDefault(&c.Sinks.MinIO.Prefix, "reports/")
	setDefault(&c.Sinks.Kafka.Topic, "narrative-runs")
}

func (l *LLMConfig) applyDefaults() {
	if l.MaxTokens == 0 {
		l.MaxTokens = 8192
	}
	setDefault(&l.Timeout, "180s")
	if l.APIKeyEnv == "" {
		l.APIKeyEnv = defaultAPIKeyEnv[l.Provider]
	}
}

// defaultAPIKeyEnv 是各提供商默认读取的 API 密钥环境变量。ollama 不需要密钥。
var defaultAPIKeyEnv = map[string]string{
	"anthropic":   "ANTHROPIC_API_KEY",
	"openai":      "OPENAI_API_KEY",
	"openrouter":  "OPENROUTER_API_KEY",
	"gemini":      "GEMINI_API_KEY",
	"huggingface": "HF_API_KEY",
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

var validate = validator.New()

// Validate 校验配置的结构和取值，返回的错误包装了 ErrInvalid。
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	durations := map[string]string{
		"llm.timeout":                 c.LLM.Timeout,
		"collector.timeout":           c.Collector.Timeout,
		"http.timeout":                c.HTTP.Timeout,
		"http.retry.baseDelay":        c.HTTP.Retry.BaseDelay,
		"http.retry.maxDelay":         c.HTTP.Retry.MaxDelay,
		"http.circuitBreaker.timeout": c.HTTP.CircuitBreaker.Timeout,
		"http.pageCache.ttl":          c.HTTP.PageCache.TTL,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
	}

	if c.Sinks.MinIO.Enabled && (c.Sinks.MinIO.Endpoint == "" || c.Sinks.MinIO.Bucket == "") {
		return fmt.Errorf("%w: sinks.minio requires endpoint and bucket", ErrInvalid)
	}
	if c.Sinks.Kafka.Enabled && len(c.Sinks.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: sinks.kafka requires at least one broker", ErrInvalid)
	}
	if !c.Sources.GitHub.IsEnabled() && !c.Sources.Solana.IsEnabled() && !c.Sources.Social.IsEnabled() {
		return fmt.Errorf("%w: no signal source is enabled", ErrInvalid)
	}
	return nil
}

// RequireLLMCredentials 检查所选提供商需要的 API 密钥是否存在。
func (c *AppConfig) RequireLLMCredentials() error {
	if c.LLM.Provider == "ollama" {
		return nil
	}
	if c.LLM.APIKeyEnv == "" {
		return fmt.Errorf("%w: llm.apiKeyEnv is not set for provider %s", ErrInvalid, c.LLM.Provider)
	}
	if strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv)) == "" {
		return fmt.Errorf("%w: environment variable %s is empty", ErrInvalid, c.LLM.APIKeyEnv)
	}
	return nil
}

// APIKey 返回从环境变量读取的 API 密钥。
func (l LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(l.APIKeyEnv))
}

// TimeoutDuration 返回单次 LLM 调用的超时。
func (l LLMConfig) TimeoutDuration() time.Duration {
	return mustDuration(l.Timeout, 180*time.Second)
}

// IsEnabled 在未显式关闭且配置了至少一条查询时返回 true。
func (g GitHubConfig) IsEnabled() bool {
	return enabled(g.Enabled) && len(g.Queries) > 0
}

// IsEnabled 在未显式关闭且配置了 RPC 地址时返回 true。
func (s SolanaConfig) IsEnabled() bool {
	return enabled(s.Enabled) && s.RPCURL != ""
}

// IsEnabled 在未显式关闭且配置了至少一个来源时返回 true。
func (s SocialConfig) IsEnabled() bool {
	return enabled(s.Enabled) && len(s.Sources) > 0
}

// TimeoutDuration 返回每个采集器的超时。
func (c CollectorConfig) TimeoutDuration() time.Duration {
	return mustDuration(c.Timeout, 60*time.Second)
}

// TimeoutDuration 返回 HTTP 请求的超时。
func (h HTTPConfig) TimeoutDuration() time.Duration {
	return mustDuration(h.Timeout, 30*time.Second)
}

// BaseDelayDuration 返回首次重试前的等待时间。
func (r RetryConfig) BaseDelayDuration() time.Duration {
	return mustDuration(r.BaseDelay, 500*time.Millisecond)
}

// MaxDelayDuration 返回重试等待时间的上限。
func (r RetryConfig) MaxDelayDuration() time.Duration {
	return mustDuration(r.MaxDelay, 5*time.Second)
}

// TimeoutDuration 返回熔断器保持打开状态的时间。
func (c CircuitBreakerConfig) TimeoutDuration() time.Duration {
	return mustDuration(c.Timeout, 30*time.Second)
}

// TTLDuration 返回缓存条目的存活时间。
func (p PageCacheConfig) TTLDuration() time.Duration {
	return mustDuration(p.TTL, 10*time.Minute)
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}

// mustDuration 解析时长字符串，失败时返回默认值。Validate 已保证配置中的值可以解析。
func mustDuration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
