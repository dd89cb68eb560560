package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address  string `yaml:"address"`  // MongoDB 服务器地址
	Username string `yaml:"username"` // 用户名
	Password string `yaml:"password"` // 密码
	Database string `yaml:"database"` // 数据库名称
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // 启动时需要确保存在的主题
}

// DatabaseConfigs 包含所有外部存储的配置。
type DatabaseConfigs struct {
	Redis   RedisConfig `yaml:"redis"`   // Redis 配置 (会话上下文)
	MongoDB MongoConfig `yaml:"mongodb"` // MongoDB 配置 (记录存储)
	Kafka   KafkaConfig `yaml:"kafka"`   // Kafka 配置 (执行事件)
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// GeminiConfig 包含了 Gemini 模型的配置。
type GeminiConfig struct {
	APIKey      string  `yaml:"apiKey"`      // Gemini API 密钥
	Model       string  `yaml:"model"`       // Gemini 模型名称
	Temperature float32 `yaml:"temperature"` // 采样温度
	MaxTokens   int32   `yaml:"maxTokens"`   // 最大输出 token 数
}

// OllamaConfig 包含了本地 Ollama 服务的配置。
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"` // 例如: "http://localhost:11434"
	Model   string `yaml:"model"`
}

// OpenAIConfig 包含了 OpenAI 兼容接口的配置。
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"` // 为空时使用官方地址
	Model   string `yaml:"model"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	OpenSeconds      int    `yaml:"openSeconds"` // 熔断打开后多久进入半开状态
}

// LLMConfig 包含了不同LLM提供商的配置。
type LLMConfig struct {
	Provider       string               `yaml:"provider"`       // LLM提供商: "gemini", "ollama", "openai"
	TimeoutSeconds int                  `yaml:"timeoutSeconds"` // 单次调用超时
	Gemini         GeminiConfig         `yaml:"gemini"`
	Ollama         OllamaConfig         `yaml:"ollama"`
	OpenAI         OpenAIConfig         `yaml:"openai"`
	Breaker        CircuitBreakerConfig `yaml:"breaker"`
}

// CollectionsConfig 定义了各任务类型在记录存储中的集合名称。
type CollectionsConfig struct {
	Accounting   string `yaml:"accounting"`
	Subscription string `yaml:"subscription"`
	Todo         string `yaml:"todo"`
}

// StoreConfig 定义了记录存储的后端。
type StoreConfig struct {
	Backend       string            `yaml:"backend"`       // "memory" 或 "mongo"
	RecordURLBase string            `yaml:"recordURLBase"` // 记录链接前缀，为空则不生成链接
	Collections   CollectionsConfig `yaml:"collections"`
}

// AssistantConfig 是意图管道和任务处理的策略参数。
type AssistantConfig struct {
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"` // 低于该置信度一律按聊天处理
	TieBreakConfidence  float64 `yaml:"tieBreakConfidence"`  // AI 消歧的最低置信度
	ReplyTruncation     int     `yaml:"replyTruncation"`     // 查询回复最多展示的记录数
	HistoryCap          int     `yaml:"historyCap"`          // 每个用户保留的会话条数
	QueryLimit          int     `yaml:"queryLimit"`          // 查询默认条数上限
	ContextBackend      string  `yaml:"contextBackend"`      // "memory" 或 "redis"
	ContextTTLHours     int     `yaml:"contextTTLHours"`
	DefaultCurrency     string  `yaml:"defaultCurrency"`
}

// SchedulerConfig 定义了每日报告调度器的配置。
type SchedulerConfig struct {
	Enabled     bool              `yaml:"enabled"`
	DailyTime   string            `yaml:"dailyTime"`   // "HH:MM"，本地时间
	PollSeconds int               `yaml:"pollSeconds"` // 轮询间隔，不超过 60
	Timezone    string            `yaml:"timezone"`    // 例如: "Asia/Shanghai"
	Subscribers []string          `yaml:"subscribers"` // 启动时预置的 "platform:userId"
	Webhooks    map[string]string `yaml:"webhooks"`    // platform -> incoming webhook URL

	Breaker CircuitBreakerConfig `yaml:"breaker"` // webhook 投递的熔断
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// ServerConfig 定义了 HTTP 服务的配置。
type ServerConfig struct {
	Address   string            `yaml:"address"`
	RateLimit TokenBucketConfig `yaml:"rateLimit"` // 按用户限流
	JWTSecret string            `yaml:"jwtSecret"` // 为空时不做认证
}

// DiscoveryConfig 定义了在 etcd 中注册服务的配置。
type DiscoveryConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Endpoints     []string `yaml:"endpoints"`
	ServiceName   string   `yaml:"serviceName"`
	AdvertiseAddr string   `yaml:"advertiseAddr"` // 注册到 etcd 的地址，例如 "10.0.0.5:8080"
	TTLSeconds    int64    `yaml:"ttlSeconds"`
}

// EventsConfig 定义了执行事件的发布配置。
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App       AppInfo         `yaml:"app"`
	Logger    LoggerConfig    `yaml:"logger"`
	LLM       LLMConfig       `yaml:"llm"`
	Databases DatabaseConfigs `yaml:"databases"`
	Store     StoreConfig     `yaml:"store"`
	Assistant AssistantConfig `yaml:"assistant"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
	Events    EventsConfig    `yaml:"events"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// Default 返回带有默认策略值的配置。
func Default() *AppConfig {
	return &AppConfig{
		App:    AppInfo{Name: "friday", Version: "0.1.0", Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		LLM: LLMConfig{
			Provider:       "gemini",
			TimeoutSeconds: 30,
			Gemini:         GeminiConfig{Model: "gemini-1.5-flash", Temperature: 0.7, MaxTokens: 1000},
			Ollama:         OllamaConfig{BaseURL: "http://localhost:11434", Model: "qwen2.5:7b"},
			OpenAI:         OpenAIConfig{Model: "gpt-4o-mini"},
			Breaker:        CircuitBreakerConfig{Enabled: true, FailureThreshold: 5, SuccessThreshold: 1, OpenSeconds: 30},
		},
		Store: StoreConfig{
			Backend: "memory",
			Collections: CollectionsConfig{
				Accounting:   "accounting",
				Subscription: "subscriptions",
				Todo:         "todos",
			},
		},
		Assistant: AssistantConfig{
			ConfidenceThreshold: 0.6,
			TieBreakConfidence:  0.7,
			ReplyTruncation:     10,
			HistoryCap:          10,
			QueryLimit:          20,
			ContextBackend:      "memory",
			ContextTTLHours:     24,
			DefaultCurrency:     "CNY",
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			DailyTime:   "08:00",
			PollSeconds: 60,
			Timezone:    "Local",
			Breaker:     CircuitBreakerConfig{Enabled: true, FailureThreshold: 3, SuccessThreshold: 1, OpenSeconds: 60},
		},
		Server: ServerConfig{
			Address:   ":8080",
			RateLimit: TokenBucketConfig{Enabled: true, Rate: 1, Capacity: 5},
		},
		Events:    EventsConfig{Topic: "task_executions"},
		Discovery: DiscoveryConfig{ServiceName: "friday-assistant", TTLSeconds: 10},
	}
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
// 文件中缺失的字段保留 Default() 中的值，密钥可以由环境变量覆盖。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	cfg := Default()
	if err = yaml.Unmarshal(yamlFile, cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.applyEnv()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"GEMINI_API_KEY", &c.LLM.Gemini.APIKey},
		{"OPENAI_API_KEY", &c.LLM.OpenAI.APIKey},
		{"MONGO_PASSWORD", &c.Databases.MongoDB.Password},
		{"REDIS_PASSWORD", &c.Databases.Redis.Password},
		{"FRIDAY_JWT_SECRET", &c.Server.JWTSecret},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate 检查策略参数是否在合法范围内。
func (c *AppConfig) Validate() error {
	a := c.Assistant
	if a.ConfidenceThreshold < 0 || a.ConfidenceThreshold > 1 {
		return fmt.Errorf("assistant.confidenceThreshold 超出范围 [0,1]: %v", a.ConfidenceThreshold)
	}
	if a.TieBreakConfidence < 0 || a.TieBreakConfidence > 1 {
		return fmt.Errorf("assistant.tieBreakConfidence 超出范围 [0,1]: %v", a.TieBreakConfidence)
	}
	if a.ReplyTruncation <= 0 || a.HistoryCap <= 0 || a.QueryLimit <= 0 {
		return fmt.Errorf("assistant 的 replyTruncation/historyCap/queryLimit 必须为正数")
	}
	if _, _, err := c.Scheduler.ParseDailyTime(); err != nil {
		return err
	}
	if c.Scheduler.PollSeconds <= 0 || c.Scheduler.PollSeconds > 60 {
		return fmt.Errorf("scheduler.pollSeconds 必须在 1 到 60 之间: %d", c.Scheduler.PollSeconds)
	}
	if d := c.Discovery; d.Enabled && (len(d.Endpoints) == 0 || d.AdvertiseAddr == "") {
		return fmt.Errorf("discovery 启用时必须配置 endpoints 和 advertiseAddr")
	}
	return nil
}

// ParseDailyTime 解析 "HH:MM" 格式的触发时间。
func (s SchedulerConfig) ParseDailyTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.DailyTime)
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler.dailyTime 格式错误 '%s': %w", s.DailyTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Location 返回调度器使用的时区，无法识别时退回本地时区。
func (s SchedulerConfig) Location() *time.Location {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Clock 返回按调度器时区表示的时间来源。记录日期、提示词中的日期和每日报告都应使用同一个时钟，
// 否则进程本地时区与配置时区不同时，"昨天"和"今天"会对不上。
func (s SchedulerConfig) Clock(base func() time.Time) func() time.Time {
	loc := s.Location()
	return func() time.Time { return base().In(loc) }
}

// PollInterval 返回调度器轮询间隔。
func (s SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollSeconds) * time.Second
}

// CallTimeout 返回单次 LLM 调用的超时时间。
func (l LLMConfig) CallTimeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}
