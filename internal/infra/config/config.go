package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	LLM        LLMConfig        `yaml:"llm"`
	Guidance   GuidanceConfig   `yaml:"guidance"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Storage    StorageConfig    `yaml:"storage"`
	Valkey     ValkeyConfig     `yaml:"valkey"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	CORS         CORSConfig      `yaml:"cors"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
	// honored. Empty means the peer address is the client address.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// RateLimitConfig drives the predict endpoint limiter.
type RateLimitConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxRequests int           `yaml:"maxRequests"`
	Window      time.Duration `yaml:"window"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	Secret          string        `yaml:"secret"`
	TokenTTL        time.Duration `yaml:"tokenTtl"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTtl"`
}

// LLMConfig selects the text generation backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
}

// LLM providers.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// GuidanceConfig bounds the guidance call.
type GuidanceConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"systemPrompt"`
}

// ClassifierConfig selects and tunes the severity classifier.
type ClassifierConfig struct {
	Strategy         string      `yaml:"strategy"`
	FeatureStatsPath string      `yaml:"featureStatsPath"`
	DegenerateValue  float64     `yaml:"degenerateValue"`
	Model            ModelConfig `yaml:"model"`
}

// ModelConfig locates the ONNX classifier.
type ModelConfig struct {
	Path              string              `yaml:"path"`
	SharedLibraryPath string              `yaml:"sharedLibraryPath"`
	InputName         string              `yaml:"inputName"`
	OutputName        string              `yaml:"outputName"`
	OutputIsLogits    bool                `yaml:"outputIsLogits"`
	LoadTimeout       time.Duration       `yaml:"loadTimeout"`
	ObjectStorage     ObjectStorageConfig `yaml:"objectStorage"`
}

// ObjectStorageConfig points at an S3-compatible bucket holding the model.
type ObjectStorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Key       string `yaml:"key"`
}

// StorageConfig selects where users and records live.
type StorageConfig struct {
	Timeout  time.Duration  `yaml:"timeout"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// SQLiteConfig holds the database file path.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// ValkeyConfig contains connection information for the shared limiter.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// Classifier strategies.
const (
	StrategyRule  = "rule"
	StrategyModel = "model"
)

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.MaxRequests, "HTTP_RATE_LIMIT_MAX")
	setDuration(&cfg.HTTP.RateLimit.Window, "HTTP_RATE_LIMIT_WINDOW")
	if v := os.Getenv("HTTP_CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_TRUSTED_PROXIES"); v != "" {
		cfg.HTTP.TrustedProxies = splitList(v)
	}

	setString(&cfg.Auth.Secret, "AUTH_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "AUTH_TOKEN_TTL")
	setDuration(&cfg.Auth.RefreshTokenTTL, "AUTH_REFRESH_TOKEN_TTL")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setInt(&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	// The original deployment only knew GEMINI_API_KEY.
	if cfg.LLM.APIKey == "" {
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			cfg.LLM.APIKey = v
			if cfg.LLM.Provider == ProviderNone {
				cfg.LLM.Provider = ProviderGemini
			}
		}
	}

	setDuration(&cfg.Guidance.Timeout, "GUIDANCE_TIMEOUT")
	setString(&cfg.Guidance.SystemPrompt, "GUIDANCE_SYSTEM_PROMPT")

	setString(&cfg.Classifier.Strategy, "CLASSIFIER_STRATEGY")
	setString(&cfg.Classifier.FeatureStatsPath, "CLASSIFIER_FEATURE_STATS_PATH")
	if v := os.Getenv("CLASSIFIER_DEGENERATE_VALUE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Classifier.DegenerateValue = parsed
		}
	}
	setString(&cfg.Classifier.Model.Path, "CLASSIFIER_MODEL_PATH")
	setString(&cfg.Classifier.Model.SharedLibraryPath, "ONNXRUNTIME_SHARED_LIBRARY_PATH")
	setBool(&cfg.Classifier.Model.OutputIsLogits, "CLASSIFIER_MODEL_OUTPUT_IS_LOGITS")
	setDuration(&cfg.Classifier.Model.LoadTimeout, "CLASSIFIER_MODEL_LOAD_TIMEOUT")
	setString(&cfg.Classifier.Model.ObjectStorage.Endpoint, "MODEL_STORAGE_ENDPOINT")
	setString(&cfg.Classifier.Model.ObjectStorage.AccessKey, "MODEL_STORAGE_ACCESS_KEY")
	setString(&cfg.Classifier.Model.ObjectStorage.SecretKey, "MODEL_STORAGE_SECRET_KEY")
	setString(&cfg.Classifier.Model.ObjectStorage.Bucket, "MODEL_STORAGE_BUCKET")
	setString(&cfg.Classifier.Model.ObjectStorage.Region, "MODEL_STORAGE_REGION")
	setString(&cfg.Classifier.Model.ObjectStorage.Key, "MODEL_STORAGE_KEY")

	setDuration(&cfg.Storage.Timeout, "STORAGE_TIMEOUT")
	setString(&cfg.Storage.Postgres.DSN, "POSTGRES_DSN")
	setString(&cfg.Storage.SQLite.Path, "SQLITE_PATH")
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Postgres.MaxConns = int32(parsed)
		}
	}

	setBool(&cfg.Valkey.Enabled, "VALKEY_ENABLED")
	setString(&cfg.Valkey.Addr, "VALKEY_ADDR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:     true,
				MaxRequests: 10,
				Window:      15 * time.Minute,
			},
		},
		Auth: AuthConfig{
			TokenTTL:        time.Hour,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider:    ProviderNone,
			Temperature: 0.4,
			MaxTokens:   512,
		},
		Guidance: GuidanceConfig{
			Timeout:      10 * time.Second,
			SystemPrompt: "You are a supportive mental wellness assistant. You do not diagnose; you encourage healthy habits and professional help where appropriate.",
		},
		Classifier: ClassifierConfig{
			Strategy:        StrategyRule,
			DegenerateValue: 0,
			Model: ModelConfig{
				InputName:   "input",
				OutputName:  "output",
				LoadTimeout: 30 * time.Second,
			},
		},
		Storage: StorageConfig{
			Timeout: 5 * time.Second,
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Valkey: ValkeyConfig{
			Prefix: "mindcheck:ratelimit",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.MaxRequests <= 0 {
			return errors.New("http.rateLimit.maxRequests must be positive")
		}
		if c.HTTP.RateLimit.Window <= 0 {
			return errors.New("http.rateLimit.window must be positive")
		}
	}
	for _, proxy := range c.HTTP.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("http.trustedProxies: invalid address %q", proxy)
			}
		}
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret cannot be empty")
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth token TTLs must be positive")
	}
	switch c.LLM.Provider {
	case ProviderNone:
	case ProviderGemini, ProviderOpenAI:
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return fmt.Errorf("llm.apiKey is required for provider %q", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("llm.provider must be one of none, gemini, openai, got %q", c.LLM.Provider)
	}
	if c.Guidance.Timeout <= 0 {
		return errors.New("guidance.timeout must be positive")
	}
	switch c.Classifier.Strategy {
	case StrategyRule:
	case StrategyModel:
		if strings.TrimSpace(c.Classifier.Model.Path) == "" {
			return errors.New("classifier.model.path is required for the model strategy")
		}
	default:
		return fmt.Errorf("classifier.strategy must be rule or model, got %q", c.Classifier.Strategy)
	}
	if c.Classifier.DegenerateValue < 0 || c.Classifier.DegenerateValue > 1 {
		return errors.New("classifier.degenerateValue must be within [0,1]")
	}
	if c.Storage.Timeout <= 0 {
		return errors.New("storage.timeout must be positive")
	}
	if c.Valkey.Enabled && strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty when valkey is enabled")
	}
	return nil
}
