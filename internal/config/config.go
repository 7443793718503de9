package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Gemini GeminiConfig
	Intake IntakeConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	intake, err := loadIntakeConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: server,
		AI:     ai,
		Gemini: loadGeminiConfig(),
		Intake: intake,
		Log:    LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置之间的约束。
func (c *Config) Validate() error {
	var errs []error
	switch c.Intake.Store {
	case StoreFile:
		if c.Intake.RecordDir == "" {
			errs = append(errs, errors.New("INTAKE_RECORD_DIR is required for the file store"))
		}
	case StoreSQLite:
		if c.Intake.SQLitePath == "" {
			errs = append(errs, errors.New("INTAKE_SQLITE_PATH is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid INTAKE_STORE value %q: want %q or %q", c.Intake.Store, StoreFile, StoreSQLite))
	}
	if c.Intake.PersistAttempts < 1 {
		errs = append(errs, fmt.Errorf("INTAKE_PERSIST_ATTEMPTS must be at least 1, got %d", c.Intake.PersistAttempts))
	}
	if c.Intake.InterpretAttempts < 1 {
		errs = append(errs, fmt.Errorf("INTAKE_INTERPRET_ATTEMPTS must be at least 1, got %d", c.Intake.InterpretAttempts))
	}
	if c.Intake.SessionTTL < 0 {
		errs = append(errs, errors.New("INTAKE_SESSION_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AIConfig 描述 Ark 大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	// Summaries 控制保存后是否调用模型生成总结。
	Summaries bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	summaries, err := parseBoolEnv("AI_SUMMARY_ENABLED", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Summaries:   summaries,
	}, nil
}

// GeminiConfig 描述 Gemini 模型配置，Ark 未配置时使用。
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Enabled 表示是否提供了 Gemini 密钥。
func (c GeminiConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadGeminiConfig() GeminiConfig {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	return GeminiConfig{
		APIKey: apiKey,
		Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
	}
}

// 存储后端。
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// IntakeConfig 描述需求收集流程的配置。
type IntakeConfig struct {
	RecordDir         string
	Store             string
	SQLitePath        string
	PersistAttempts   int
	InterpretTimeout  time.Duration
	InterpretAttempts int
	SessionTTL        time.Duration
	SweepInterval     time.Duration
}

func loadIntakeConfig() (IntakeConfig, error) {
	persistAttempts := 3
	if override, err := parseOptionalIntEnv("INTAKE_PERSIST_ATTEMPTS"); err != nil {
		return IntakeConfig{}, err
	} else if override != nil {
		persistAttempts = *override
	}

	interpretAttempts := 3
	if override, err := parseOptionalIntEnv("INTAKE_INTERPRET_ATTEMPTS"); err != nil {
		return IntakeConfig{}, err
	} else if override != nil {
		interpretAttempts = *override
	}

	interpretTimeout, err := parseDurationEnv("INTAKE_INTERPRET_TIMEOUT", 20*time.Second)
	if err != nil {
		return IntakeConfig{}, err
	}

	ttl, err := parseDurationEnv("INTAKE_SESSION_TTL", 30*time.Minute)
	if err != nil {
		return IntakeConfig{}, err
	}

	sweep, err := parseDurationEnv("INTAKE_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return IntakeConfig{}, err
	}

	return IntakeConfig{
		RecordDir:         getEnvOrDefault("INTAKE_RECORD_DIR", "data/requests"),
		Store:             strings.ToLower(getEnvOrDefault("INTAKE_STORE", StoreFile)),
		SQLitePath:        getEnvOrDefault("INTAKE_SQLITE_PATH", "data/intake.db"),
		PersistAttempts:   persistAttempts,
		InterpretTimeout:  interpretTimeout,
		InterpretAttempts: interpretAttempts,
		SessionTTL:        ttl,
		SweepInterval:     sweep,
	}, nil
}

// LogConfig 描述日志配置。
type LogConfig struct {
	Level string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
