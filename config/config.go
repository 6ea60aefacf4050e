package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort   string
	JWTSecret string

	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Redis for the dispatch lease, channel credential cache and leaderboard cache
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	AllowedOrigins []string

	// Gin framework configuration
	GinMode string
	GinPath string

	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	RateLimitPerMinute int

	// Points policy: the single authoritative award rule.
	// Submission award = PointsBase (+ MediaBonusPoints when proof media is attached).
	// Approval re-derives the day template's base value.
	PointsBase       int
	MediaBonusPoints int

	// Project defaults
	DefaultProjectDays int

	// Ranking
	RankingLimit       int
	RankingCacheTTLSec int

	// Dispatch scheduler
	DispatchIntervalSec      int
	DispatchLeaseTTLSec      int
	DispatchMaxAttempts      int
	DispatchBackoffMS        int
	DispatchLogRetentionDays int

	// Outbound channel (chat/webhook provider)
	ChannelProvider     string
	ChannelWebhookURL   string
	ChannelTokenURL     string
	ChannelClientID     string
	ChannelClientSecret string
	ChannelTimeoutSec   int

	// Compatibility switches, both default off
	TemplateSynthesisEnabled bool
	WebhookAutoApprove       bool

	// Admins
	AdminUsernames []string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// SetForTest replaces the cached configuration. Test helper only.
func SetForTest(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads a flat JSON object into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(key string) string {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(key string) int {
		if v, ok := raw[key]; ok {
			switch n := v.(type) {
			case float64:
				return int(n)
			case string:
				if i, err := strconv.Atoi(n); err == nil {
					return i
				}
			}
		}
		return 0
	}
	getBool := func(key string) bool {
		if v, ok := raw[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
			if s, ok := v.(string); ok {
				return strings.EqualFold(s, "true") || s == "1"
			}
		}
		return false
	}
	getList := func(key string) []string {
		if v, ok := raw[key]; ok {
			switch l := v.(type) {
			case []any:
				var res []string
				for _, item := range l {
					if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
						res = append(res, strings.TrimSpace(s))
					}
				}
				return res
			case string:
				return splitAndTrim(l)
			}
		}
		return nil
	}

	out.AppPort = getString("app_port")
	out.JWTSecret = getString("jwt_secret")
	out.DatabaseURI = getString("database_uri")
	out.DBHost = getString("db_host")
	out.DBPort = getString("db_port")
	out.DBUser = getString("db_user")
	out.DBPassword = getString("db_password")
	out.DBName = getString("db_name")
	out.RedisHost = getString("redis_host")
	out.RedisPort = getInt("redis_port")
	out.RedisDB = getInt("redis_db")
	out.RedisPassword = getString("redis_password")
	out.AllowedOrigins = getList("allowed_origins")
	out.GinMode = getString("gin_mode")
	out.GinPath = getString("gin_path")
	out.LogLevel = getString("log_level")
	out.LogPath = getString("log_path")
	out.LogMaxSizeMB = getInt("log_max_size_mb")
	out.LogMaxBackups = getInt("log_max_backups")
	out.LogMaxAgeDays = getInt("log_max_age_days")
	out.LogCompress = getBool("log_compress")
	out.RateLimitPerMinute = getInt("rate_limit_per_minute")
	out.PointsBase = getInt("points_base")
	out.MediaBonusPoints = getInt("media_bonus_points")
	out.DefaultProjectDays = getInt("default_project_days")
	out.RankingLimit = getInt("ranking_limit")
	out.RankingCacheTTLSec = getInt("ranking_cache_ttl_sec")
	out.DispatchIntervalSec = getInt("dispatch_interval_sec")
	out.DispatchLeaseTTLSec = getInt("dispatch_lease_ttl_sec")
	out.DispatchMaxAttempts = getInt("dispatch_max_attempts")
	out.DispatchBackoffMS = getInt("dispatch_backoff_ms")
	out.DispatchLogRetentionDays = getInt("dispatch_log_retention_days")
	out.ChannelProvider = getString("channel_provider")
	out.ChannelWebhookURL = getString("channel_webhook_url")
	out.ChannelTokenURL = getString("channel_token_url")
	out.ChannelClientID = getString("channel_client_id")
	out.ChannelClientSecret = getString("channel_client_secret")
	out.ChannelTimeoutSec = getInt("channel_timeout_sec")
	out.TemplateSynthesisEnabled = getBool("template_synthesis_enabled")
	out.WebhookAutoApprove = getBool("webhook_auto_approve")
	out.AdminUsernames = getList("admin_usernames")
	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "stride"
	}
	if c.DBName == "" {
		c.DBName = "stride"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/app.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.PointsBase == 0 {
		c.PointsBase = 10
	}
	if c.MediaBonusPoints == 0 {
		c.MediaBonusPoints = 15
	}
	if c.DefaultProjectDays == 0 {
		c.DefaultProjectDays = 21
	}
	if c.RankingLimit == 0 {
		c.RankingLimit = 10
	}
	if c.RankingCacheTTLSec == 0 {
		c.RankingCacheTTLSec = 30
	}
	if c.DispatchIntervalSec == 0 {
		c.DispatchIntervalSec = 60
	}
	if c.DispatchLeaseTTLSec == 0 {
		c.DispatchLeaseTTLSec = 120
	}
	if c.DispatchMaxAttempts == 0 {
		c.DispatchMaxAttempts = 1
	}
	if c.DispatchBackoffMS == 0 {
		c.DispatchBackoffMS = 500
	}
	if c.DispatchLogRetentionDays == 0 {
		c.DispatchLogRetentionDays = 90
	}
	if c.ChannelProvider == "" {
		c.ChannelProvider = "webhook"
	}
	if c.ChannelTimeoutSec == 0 {
		c.ChannelTimeoutSec = 10
	}
}

func applyEnvOverrides(c *AppConfig) {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.AllowedOrigins = readListEnv("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.GinPath = getEnv("GIN_PATH", c.GinPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	if v := os.Getenv("LOG_MAX_SIZE_MB"); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := os.Getenv("LOG_MAX_BACKUPS"); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := os.Getenv("LOG_MAX_AGE_DAYS"); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := os.Getenv("POINTS_BASE"); v != "" {
		c.PointsBase = mustParseInt(v)
	}
	if v := os.Getenv("MEDIA_BONUS_POINTS"); v != "" {
		c.MediaBonusPoints = mustParseInt(v)
	}
	if v := os.Getenv("DEFAULT_PROJECT_DAYS"); v != "" {
		c.DefaultProjectDays = mustParseInt(v)
	}
	if v := os.Getenv("RANKING_LIMIT"); v != "" {
		c.RankingLimit = mustParseInt(v)
	}
	if v := os.Getenv("RANKING_CACHE_TTL_SEC"); v != "" {
		c.RankingCacheTTLSec = mustParseInt(v)
	}
	if v := os.Getenv("DISPATCH_INTERVAL_SEC"); v != "" {
		c.DispatchIntervalSec = mustParseInt(v)
	}
	if v := os.Getenv("DISPATCH_LEASE_TTL_SEC"); v != "" {
		c.DispatchLeaseTTLSec = mustParseInt(v)
	}
	if v := os.Getenv("DISPATCH_MAX_ATTEMPTS"); v != "" {
		c.DispatchMaxAttempts = mustParseInt(v)
	}
	if v := os.Getenv("DISPATCH_BACKOFF_MS"); v != "" {
		c.DispatchBackoffMS = mustParseInt(v)
	}
	if v := os.Getenv("DISPATCH_LOG_RETENTION_DAYS"); v != "" {
		c.DispatchLogRetentionDays = mustParseInt(v)
	}
	c.ChannelProvider = getEnv("CHANNEL_PROVIDER", c.ChannelProvider)
	c.ChannelWebhookURL = getEnv("CHANNEL_WEBHOOK_URL", c.ChannelWebhookURL)
	c.ChannelTokenURL = getEnv("CHANNEL_TOKEN_URL", c.ChannelTokenURL)
	c.ChannelClientID = getEnv("CHANNEL_CLIENT_ID", c.ChannelClientID)
	c.ChannelClientSecret = getEnv("CHANNEL_CLIENT_SECRET", c.ChannelClientSecret)
	if v := os.Getenv("CHANNEL_TIMEOUT_SEC"); v != "" {
		c.ChannelTimeoutSec = mustParseInt(v)
	}
	if v := os.Getenv("TEMPLATE_SYNTHESIS_ENABLED"); v != "" {
		c.TemplateSynthesisEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("WEBHOOK_AUTO_APPROVE"); v != "" {
		c.WebhookAutoApprove = strings.EqualFold(v, "true") || v == "1"
	}
	c.AdminUsernames = readListEnv("ADMIN_USERNAMES", c.AdminUsernames)
}

func mustParseInt(val string) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		log.Fatalf("invalid integer config value %q: %v", val, err)
	}
	return n
}

func readListEnv(key string, defaults []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaults
	}
	return splitAndTrim(raw)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var res []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			res = append(res, t)
		}
	}
	return res
}
