package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Dashboard  DashboardConfig
	Extraction ExtractionConfig
	Scraper    ScraperConfig
	Downloader DownloaderConfig
	Providers  ProvidersConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs admin dashboard cache tuning.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// ExtractionConfig controls the background extraction runs.
type ExtractionConfig struct {
	ImagesDir           string
	Workers             int
	QueueSize           int
	StaleAfter          time.Duration
	ReplaceExisting     bool
	DownloadConcurrency int
}

// ScraperConfig tunes the issue page scraper.
type ScraperConfig struct {
	UserAgent   string
	Timeout     time.Duration
	CDNHost     string
	CDNFileBase string
}

// DownloaderConfig tunes page image downloads.
type DownloaderConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// ProvidersConfig describes the AI provider chain. Secrets live in the api_keys table.
type ProvidersConfig struct {
	Order      []string
	Timeout    time.Duration
	MaxRetries int
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Anthropic  AnthropicConfig
}

type OpenAIConfig struct {
	BaseURL     string
	VisionModel string
	TextModel   string
}

type GeminiConfig struct {
	BaseURL     string
	VisionModel string
	TextModel   string
}

type AnthropicConfig struct {
	BaseURL string
	Model   string
	Version string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_CACHE"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Extraction = ExtractionConfig{
		ImagesDir:           v.GetString("IMAGES_DIR"),
		Workers:             v.GetInt("EXTRACTION_WORKERS"),
		QueueSize:           v.GetInt("EXTRACTION_QUEUE_SIZE"),
		StaleAfter:          parseDuration(v.GetString("EXTRACTION_STALE_AFTER"), 10*time.Minute),
		ReplaceExisting:     v.GetBool("EXTRACTION_REPLACE_EXISTING"),
		DownloadConcurrency: v.GetInt("EXTRACTION_DOWNLOAD_CONCURRENCY"),
	}

	cfg.Scraper = ScraperConfig{
		UserAgent:   v.GetString("SCRAPER_USER_AGENT"),
		Timeout:     parseDuration(v.GetString("SCRAPER_TIMEOUT"), 30*time.Second),
		CDNHost:     v.GetString("SCRAPER_CDN_HOST"),
		CDNFileBase: v.GetString("SCRAPER_CDN_FILE_BASE"),
	}

	cfg.Downloader = DownloaderConfig{
		UserAgent: v.GetString("SCRAPER_USER_AGENT"),
		Timeout:   parseDuration(v.GetString("DOWNLOAD_TIMEOUT"), 60*time.Second),
	}

	cfg.Providers = ProvidersConfig{
		Order:      splitAndTrim(strings.ToLower(v.GetString("AI_PROVIDER_ORDER"))),
		Timeout:    parseDuration(v.GetString("AI_TIMEOUT"), 90*time.Second),
		MaxRetries: v.GetInt("AI_MAX_RETRIES"),
		OpenAI: OpenAIConfig{
			BaseURL:     v.GetString("OPENAI_BASE_URL"),
			VisionModel: v.GetString("OPENAI_VISION_MODEL"),
			TextModel:   v.GetString("OPENAI_TEXT_MODEL"),
		},
		Gemini: GeminiConfig{
			BaseURL:     v.GetString("GEMINI_BASE_URL"),
			VisionModel: v.GetString("GEMINI_VISION_MODEL"),
			TextModel:   v.GetString("GEMINI_TEXT_MODEL"),
		},
		Anthropic: AnthropicConfig{
			BaseURL: v.GetString("ANTHROPIC_BASE_URL"),
			Model:   v.GetString("ANTHROPIC_MODEL"),
			Version: v.GetString("ANTHROPIC_VERSION"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "church_news")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("IMAGES_DIR", "./images")
	v.SetDefault("EXTRACTION_WORKERS", 2)
	v.SetDefault("EXTRACTION_QUEUE_SIZE", 16)
	v.SetDefault("EXTRACTION_STALE_AFTER", "10m")
	v.SetDefault("EXTRACTION_REPLACE_EXISTING", false)
	v.SetDefault("EXTRACTION_DOWNLOAD_CONCURRENCY", 1)

	v.SetDefault("SCRAPER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("SCRAPER_TIMEOUT", "30s")
	v.SetDefault("SCRAPER_CDN_HOST", "data.dimode.co.kr")
	v.SetDefault("SCRAPER_CDN_FILE_BASE", "https://data.dimode.co.kr/UserData/anyangjeil/files/66")
	v.SetDefault("DOWNLOAD_TIMEOUT", "60s")

	v.SetDefault("AI_PROVIDER_ORDER", "openai,gemini,anthropic")
	v.SetDefault("AI_TIMEOUT", "90s")
	v.SetDefault("AI_MAX_RETRIES", 2)
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_VISION_MODEL", "gpt-4o")
	v.SetDefault("OPENAI_TEXT_MODEL", "gpt-4o")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("GEMINI_VISION_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_TEXT_MODEL", "gemini-1.5-flash")
	v.SetDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com")
	v.SetDefault("ANTHROPIC_MODEL", "claude-3-opus-20240229")
	v.SetDefault("ANTHROPIC_VERSION", "2023-06-01")
}

// isMissingFile treats an absent .env as optional; SetConfigFile bypasses
// viper's own not-found detection.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
