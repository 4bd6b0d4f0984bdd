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
	AppPort     string
	JWTSecret   string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Reward economy
	StartingBalance  int
	WeeklyBonusCoins int
	PremiumCostCoins int
	// Task progress retention (housekeeping only; day reset never depends on it)
	ProgressRetentionDays int
	RateLimitPerMinute    int
	AllowedOrigins        []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for caching/notifications
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Telegram ops alerts for swallowed ledger errors (optional)
	TelegramBotToken    string
	TelegramAlertChatID int64
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration from environment variables. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}

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

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	dec := json.NewDecoder(f)
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	setString := func(key string, dst *string) {
		if v, ok := raw[key]; ok && *dst == "" {
			if s, ok := v.(string); ok {
				*dst = s
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := raw[key]; ok && *dst == 0 {
			if f, ok := v.(float64); ok {
				*dst = int(f)
			}
		}
	}

	setString("AppPort", &out.AppPort)
	setString("JWTSecret", &out.JWTSecret)
	setString("DatabaseURI", &out.DatabaseURI)
	setString("DBHost", &out.DBHost)
	setString("DBPort", &out.DBPort)
	setString("DBUser", &out.DBUser)
	setString("DBPassword", &out.DBPassword)
	setString("DBName", &out.DBName)
	setString("GinMode", &out.GinMode)
	setString("GinPath", &out.GinPath)
	setString("RedisHost", &out.RedisHost)
	setString("RedisPassword", &out.RedisPassword)
	setString("LogLevel", &out.LogLevel)
	setString("LogPath", &out.LogPath)
	setString("TelegramBotToken", &out.TelegramBotToken)
	setInt("StartingBalance", &out.StartingBalance)
	setInt("WeeklyBonusCoins", &out.WeeklyBonusCoins)
	setInt("PremiumCostCoins", &out.PremiumCostCoins)
	setInt("ProgressRetentionDays", &out.ProgressRetentionDays)
	setInt("RateLimitPerMinute", &out.RateLimitPerMinute)
	setInt("RedisPort", &out.RedisPort)
	setInt("RedisDB", &out.RedisDB)
	setInt("LogMaxSizeMB", &out.LogMaxSizeMB)
	setInt("LogMaxBackups", &out.LogMaxBackups)
	setInt("LogMaxAgeDays", &out.LogMaxAgeDays)

	if v, ok := raw["LogCompress"]; ok && !out.LogCompress {
		if b, ok := v.(bool); ok {
			out.LogCompress = b
		}
	}
	if v, ok := raw["TelegramAlertChatID"]; ok && out.TelegramAlertChatID == 0 {
		if f, ok := v.(float64); ok {
			out.TelegramAlertChatID = int64(f)
		}
	}
	if v, ok := raw["AllowedOrigins"]; ok && len(out.AllowedOrigins) == 0 {
		if arr, ok := v.([]any); ok {
			for _, item := range arr {
				if s, ok := item.(string); ok && s != "" {
					out.AllowedOrigins = append(out.AllowedOrigins, s)
				}
			}
		}
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.StartingBalance == 0 {
		c.StartingBalance = 100
	}
	if c.WeeklyBonusCoins == 0 {
		c.WeeklyBonusCoins = 100
	}
	if c.PremiumCostCoins == 0 {
		c.PremiumCostCoins = 500
	}
	if c.ProgressRetentionDays == 0 {
		c.ProgressRetentionDays = 90
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "fablenest_rewards"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("STARTING_BALANCE", ""); v != "" {
		c.StartingBalance = mustParseInt(v)
	}
	if v := getEnv("WEEKLY_BONUS_COINS", ""); v != "" {
		c.WeeklyBonusCoins = mustParseInt(v)
	}
	if v := getEnv("PREMIUM_COST_COINS", ""); v != "" {
		c.PremiumCostCoins = mustParseInt(v)
	}
	if v := getEnv("PROGRESS_RETENTION_DAYS", ""); v != "" {
		c.ProgressRetentionDays = mustParseInt(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitCSV(v)
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "1" || strings.EqualFold(v, "true")
	}
	if v := getEnv("TELEGRAM_BOT_TOKEN", ""); v != "" {
		c.TelegramBotToken = v
	}
	if v := getEnv("TELEGRAM_ALERT_CHAT_ID", ""); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("invalid TELEGRAM_ALERT_CHAT_ID: %v", err)
		}
		c.TelegramAlertChatID = id
	}
}

func mustParseInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid integer value %q in environment: %v", v, err)
	}
	return n
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
