package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shouni/go-gemini-auditor/pkg/gemini"
)

// EnvPrefix は設定を上書きする環境変数の接頭辞です（例: AUDIT_GEMINI_MODEL）。
const EnvPrefix = "AUDIT"

// DefaultSystemPrompt は監査用のシステム指示の既定値です。
const DefaultSystemPrompt = `あなたは広告クリエイティブの審査担当です。
添付された素材と担当者のメモを確認し、次の観点ごとに Markdown の見出しを付けて指摘してください。
- 表現・法令面のリスク
- ブランドガイドラインとの整合
- 視認性・可読性
- 改善提案
各見出しの下には箇条書きで具体的に記述してください。`

// Config はアプリケーション全体の設定です。
type Config struct {
	Gemini GeminiConfig
	Retry  RetryConfig
	Audit  AuditConfig
	Logger LoggerConfig
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	Language    string
	Temperature float32
	Timeout     time.Duration
}

type RetryConfig struct {
	Generate PolicyConfig
	Stream   PolicyConfig
	Probe    PolicyConfig
}

type PolicyConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

type AuditConfig struct {
	SystemPrompt string
}

type LoggerConfig struct {
	Level  string
	Format string
}

// Load はカレントディレクトリの .env を読み込んだ後、設定ファイルと環境変数から設定を作成します。
// configFile が空の場合は ./config.yaml または ./config/config.yaml を探し、無ければ既定値を使います。
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env の読み込みに失敗しました: %w", err)
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	cfg := &Config{}

	cfg.Gemini.APIKey = v.GetString("gemini.api_key")
	cfg.Gemini.Model = v.GetString("gemini.model")
	cfg.Gemini.Language = v.GetString("gemini.language")
	cfg.Gemini.Temperature = float32(v.GetFloat64("gemini.temperature"))
	cfg.Gemini.Timeout = v.GetDuration("gemini.timeout")

	cfg.Retry.Generate = loadPolicy(v, "retry.generate")
	cfg.Retry.Stream = loadPolicy(v, "retry.stream")
	cfg.Retry.Probe = loadPolicy(v, "retry.probe")

	cfg.Audit.SystemPrompt = v.GetString("audit.system_prompt")
	if path := v.GetString("audit.system_prompt_file"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("システム指示ファイルの読み込みに失敗しました: %w", err)
		}
		cfg.Audit.SystemPrompt = string(b)
	}

	cfg.Logger.Level = v.GetString("logger.level")
	cfg.Logger.Format = v.GetString("logger.format")

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gemini.model", gemini.DefaultModel)
	v.SetDefault("gemini.language", "ja")
	v.SetDefault("gemini.temperature", gemini.DefaultTemperature)
	v.SetDefault("gemini.timeout", 5*time.Minute)

	v.SetDefault("retry.generate.max_attempts", gemini.DefaultMaxAttempts)
	v.SetDefault("retry.generate.delay", gemini.DefaultRetryDelay)
	v.SetDefault("retry.stream.max_attempts", gemini.DefaultMaxAttempts)
	v.SetDefault("retry.stream.delay", gemini.DefaultRetryDelay)
	v.SetDefault("retry.probe.max_attempts", gemini.DefaultProbeMaxAttempts)
	v.SetDefault("retry.probe.delay", gemini.DefaultProbeDelay)

	v.SetDefault("audit.system_prompt", DefaultSystemPrompt)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
}

func loadPolicy(v *viper.Viper, prefix string) PolicyConfig {
	return PolicyConfig{
		MaxAttempts: v.GetInt(prefix + ".max_attempts"),
		Delay:       v.GetDuration(prefix + ".delay"),
	}
}

// ClientConfig は gemini.NewClient に渡す設定に変換します。
func (c *Config) ClientConfig() gemini.Config {
	temp := c.Gemini.Temperature
	return gemini.Config{
		FallbackAPIKey: c.Gemini.APIKey,
		Temperature:    &temp,
		Language:       c.Gemini.Language,
		Timeout:        c.Gemini.Timeout,
		GeneratePolicy: c.Retry.Generate.policy(),
		StreamPolicy:   c.Retry.Stream.policy(),
		ProbePolicy:    c.Retry.Probe.policy(),
	}
}

func (p PolicyConfig) policy() *gemini.RetryPolicy {
	return &gemini.RetryPolicy{MaxAttempts: p.MaxAttempts, Delay: p.Delay}
}
