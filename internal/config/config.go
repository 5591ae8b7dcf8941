package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zhouzirui/panelroom/backend/internal/service/ai"
	"github.com/zhouzirui/panelroom/backend/internal/service/bot"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Bot    BotConfig
	Store  StoreConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	aiCfg, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	botCfg, err := loadBotConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     aiCfg,
		Bot:    botCfg,
		Store:  loadStoreConfig(),
		Log:    logCfg,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		origins = []string{"*"}
	}

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

// Provider names a generation backend.
type Provider string

const (
	ProviderArk    Provider = "ark"
	ProviderGemini Provider = "gemini"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider Provider
	Models   []string

	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	GeminiAPIKey string

	CallTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Enabled 表示当前 provider 是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey != ""
	default:
		return len(c.Models) > 0 && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
}

// Options 转换为生成器参数。
func (c AIConfig) Options() ai.Options {
	return ai.Options{
		Models:       append([]string(nil), c.Models...),
		CallTimeout:  c.CallTimeout,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
	}
}

// NewBackend 根据 provider 创建生成后端。
func (c AIConfig) NewBackend(ctx context.Context) (ai.Backend, error) {
	switch c.Provider {
	case ProviderGemini:
		return ai.NewGeminiBackend(ctx, c.GeminiAPIKey)
	case ProviderArk:
		return ai.NewArkBackend(c.NewChatModel), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", c.Provider)
	}
}

// NewChatModel 使用配置为指定的模型或 endpoint 创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context, modelID string) (model.ChatModel, error) {
	if c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "") {
		return nil, fmt.Errorf("Ark 凭证缺失，至少提供 ARK_API_KEY 或 AK/SK 组合")
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

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       modelID,
		MaxTokens:   c.MaxTokens,
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

	callTimeout, err := parseDurationEnv("AI_CALL_TIMEOUT", 25*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	backoff, err := parseDurationEnv("AI_RETRY_BACKOFF", time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	maxRetries := 3
	if override, err := parseOptionalIntEnv("AI_MAX_RETRIES"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 1 {
			maxRetries = 1
		} else {
			maxRetries = *override
		}
	}

	cfg := AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("Model")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		CallTimeout:  callTimeout,
		MaxRetries:   maxRetries,
		RetryBackoff: backoff,
	}

	switch provider := Provider(strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))); provider {
	case "":
		// 未指定时：有 Gemini key 则用 Gemini，否则用 Ark。
		cfg.Provider = ProviderArk
		if cfg.GeminiAPIKey != "" {
			cfg.Provider = ProviderGemini
		}
	case ProviderArk, ProviderGemini:
		cfg.Provider = provider
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	cfg.Models = splitList(os.Getenv("AI_MODEL_HIERARCHY"))
	if len(cfg.Models) == 0 {
		switch cfg.Provider {
		case ProviderGemini:
			cfg.Models = append([]string(nil), ai.DefaultGeminiModels...)
		default:
			if cfg.Model != "" {
				cfg.Models = []string{cfg.Model}
			}
		}
	}

	return cfg, nil
}

// BotConfig 描述机器人编排参数。
type BotConfig struct {
	bot.Config
	Seed *uint64
	// PersonaCatalogPath 为空时使用内置角色。
	PersonaCatalogPath string
}

func loadBotConfig() (BotConfig, error) {
	cfg := bot.DefaultConfig()

	floats := []struct {
		key string
		dst *float64
	}{
		{"BOT_TEXT_PROBABILITY", &cfg.Text.Probability},
		{"BOT_AUDIO_PROBABILITY", &cfg.Audio.Probability},
		{"BOT_USER_MESSAGE_PROBABILITY", &cfg.UserMessage.Probability},
		{"BOT_IDLE_PROBABILITY", &cfg.IdleProbability},
	}
	for _, f := range floats {
		val, err := parseOptionalFloatEnv(f.key)
		if err != nil {
			return BotConfig{}, err
		}
		if val == nil {
			continue
		}
		if *val < 0 || *val > 1 {
			return BotConfig{}, fmt.Errorf("invalid %s value %v: must be within [0, 1]", f.key, *val)
		}
		*f.dst = *val
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"BOT_REACTIVE_COOLDOWN", &cfg.ReactiveCooldown},
		{"BOT_IDLE_MIN_INTERVAL", &cfg.IdleMinInterval},
		{"BOT_IDLE_MAX_INTERVAL", &cfg.IdleMaxInterval},
		{"BOT_IDLE_COOLDOWN", &cfg.IdleCooldown},
		{"BOT_MAX_SESSION_AGE", &cfg.MaxSessionAge},
		{"BOT_SWEEP_INTERVAL", &cfg.SweepInterval},
	}
	for _, d := range durations {
		val, err := parseDurationEnv(d.key, *d.dst)
		if err != nil {
			return BotConfig{}, err
		}
		*d.dst = val
	}
	if cfg.IdleMinInterval <= 0 {
		return BotConfig{}, fmt.Errorf("BOT_IDLE_MIN_INTERVAL must be positive")
	}
	if cfg.IdleMaxInterval < cfg.IdleMinInterval {
		return BotConfig{}, fmt.Errorf("BOT_IDLE_MAX_INTERVAL (%s) is below BOT_IDLE_MIN_INTERVAL (%s)", cfg.IdleMaxInterval, cfg.IdleMinInterval)
	}
	if cfg.SweepInterval <= 0 {
		return BotConfig{}, fmt.Errorf("BOT_SWEEP_INTERVAL must be positive")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"BOT_DEFAULT_ACTOR_COUNT", &cfg.DefaultActorCount},
		{"BOT_HISTORY_WINDOW", &cfg.HistoryWindow},
	}
	for _, n := range ints {
		val, err := parseOptionalIntEnv(n.key)
		if err != nil {
			return BotConfig{}, err
		}
		if val == nil {
			continue
		}
		if *val < 1 {
			return BotConfig{}, fmt.Errorf("invalid %s value %d: must be positive", n.key, *val)
		}
		*n.dst = *val
	}

	seed, err := parseOptionalUintEnv("BOT_RANDOM_SEED")
	if err != nil {
		return BotConfig{}, err
	}

	return BotConfig{
		Config:             cfg,
		Seed:               seed,
		PersonaCatalogPath: strings.TrimSpace(os.Getenv("PERSONA_CATALOG_PATH")),
	}, nil
}

// StoreConfig 描述持久化配置。
type StoreConfig struct {
	DBPath string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{DBPath: getEnvOrDefault("DB_PATH", "data/panelroom.db")}
}

// LogConfig 描述日志配置。
type LogConfig struct {
	Level       zapcore.Level
	Development bool
}

func loadLogConfig() (LogConfig, error) {
	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q: %w", raw, err)
		}
	}

	dev, err := parseBoolEnv("LOG_DEVELOPMENT", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{Level: level, Development: dev}, nil
}

// NewLogger 根据配置构建 zap logger。
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(c.Level)
	return zc.Build()
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
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
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

func parseOptionalUintEnv(key string) (*uint64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
