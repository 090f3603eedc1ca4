package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Advisor    AdvisorConfig    `mapstructure:"advisor"`
	Market     MarketConfig     `mapstructure:"market"`
	Agent      AgentConfig      `mapstructure:"agent"`
	API        APIConfig        `mapstructure:"api"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DatabaseConfig contains PostgreSQL settings for the version sink.
// An empty URL disables durable snapshots; the agent runs in-memory only.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains settings for the optional price cache layer.
// Disabled unless enabled is true.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AdvisorConfig contains the language-model advisor settings
type AdvisorConfig struct {
	Endpoint    string  `mapstructure:"endpoint"` // chat-completions URL
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"` // TRADELAB_ADVISOR_API_KEY
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // ms
}

// MarketConfig contains price feed settings
type MarketConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	CacheTTL     int     `mapstructure:"cache_ttl"`     // ms
	FetchTimeout int     `mapstructure:"fetch_timeout"` // ms
	RateLimit    float64 `mapstructure:"rate_limit"`    // requests per second
	RateBurst    int     `mapstructure:"rate_burst"`
}

// AgentConfig contains the autonomous agent loop settings
type AgentConfig struct {
	InitialSimDuration    int     `mapstructure:"initial_sim_duration"`    // seconds
	ShortSimDuration      int     `mapstructure:"short_sim_duration"`      // seconds
	ValidationSimDuration int     `mapstructure:"validation_sim_duration"` // seconds
	TickInterval          float64 `mapstructure:"tick_interval"`           // seconds
	HighScoreThreshold    float64 `mapstructure:"high_score_threshold"`
	MediumScoreThreshold  float64 `mapstructure:"medium_score_threshold"`
	CyclePause            int     `mapstructure:"cycle_pause"` // seconds between cycles
	StrategiesFile        string  `mapstructure:"strategies_file"`
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// AlertsConfig contains alert channel settings
type AlertsConfig struct {
	TelegramToken   string  `mapstructure:"telegram_token"`
	TelegramChatIDs []int64 `mapstructure:"telegram_chat_ids"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	EnableMetrics bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("TRADELAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "TradeLab")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	// Database defaults (empty URL = sink disabled)
	v.SetDefault("database.url", "")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Advisor defaults (empty api_key = deterministic fallback path)
	v.SetDefault("advisor.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("advisor.model", "gpt-4o-mini")
	v.SetDefault("advisor.api_key", "")
	v.SetDefault("advisor.temperature", 0.7)
	v.SetDefault("advisor.max_tokens", 1500)
	v.SetDefault("advisor.timeout", 60000)

	// Market defaults
	v.SetDefault("market.base_url", "https://api.coinbase.com")
	v.SetDefault("market.cache_ttl", 2000)
	v.SetDefault("market.fetch_timeout", 5000)
	v.SetDefault("market.rate_limit", 10.0)
	v.SetDefault("market.rate_burst", 5)

	// Agent defaults
	v.SetDefault("agent.initial_sim_duration", 30)
	v.SetDefault("agent.short_sim_duration", 60)
	v.SetDefault("agent.validation_sim_duration", 120)
	v.SetDefault("agent.tick_interval", 2.0)
	v.SetDefault("agent.high_score_threshold", 65.0)
	v.SetDefault("agent.medium_score_threshold", 50.0)
	v.SetDefault("agent.cycle_pause", 1)
	v.SetDefault("agent.strategies_file", "./configs/strategies.yaml")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8090)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Alerts defaults (empty token = alerts disabled)
	v.SetDefault("alerts.telegram_token", "")
	v.SetDefault("alerts.telegram_chat_ids", []int64{})

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
}

// Validate checks configuration invariants that would otherwise surface
// deep inside the agent as runtime errors
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api.port %d: must be in [1, 65535]", c.API.Port)
	}
	if c.Agent.TickInterval <= 0 {
		return fmt.Errorf("invalid agent.tick_interval %.2f: must be > 0", c.Agent.TickInterval)
	}
	if c.Agent.InitialSimDuration <= 0 || c.Agent.ShortSimDuration <= 0 {
		return fmt.Errorf("simulation durations must be > 0 (initial=%d, short=%d)",
			c.Agent.InitialSimDuration, c.Agent.ShortSimDuration)
	}
	if c.Agent.MediumScoreThreshold > c.Agent.HighScoreThreshold {
		return fmt.Errorf("agent.medium_score_threshold %.1f must not exceed high_score_threshold %.1f",
			c.Agent.MediumScoreThreshold, c.Agent.HighScoreThreshold)
	}
	if c.Market.BaseURL == "" {
		return fmt.Errorf("market.base_url must not be empty")
	}
	if c.Market.CacheTTL < 0 || c.Market.FetchTimeout <= 0 {
		return fmt.Errorf("invalid market timings (cache_ttl=%d, fetch_timeout=%d)",
			c.Market.CacheTTL, c.Market.FetchTimeout)
	}
	return nil
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetTimeout returns the advisor timeout as time.Duration
func (c *AdvisorConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetCacheTTL returns the price cache TTL as time.Duration
func (c *MarketConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Millisecond
}

// GetFetchTimeout returns the price fetch timeout as time.Duration
func (c *MarketConfig) GetFetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Millisecond
}

// GetTickInterval returns the simulation tick interval as time.Duration
func (c *AgentConfig) GetTickInterval() time.Duration {
	return time.Duration(c.TickInterval * float64(time.Second))
}
