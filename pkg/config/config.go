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

// Media storage drivers.
const (
	MediaDriverLocal = "local"
	MediaDriverGCS   = "gcs"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Catalog  CatalogConfig
	Media    MediaConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how tokens minted by the identity provider are verified.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CatalogConfig tunes course listing and the course read cache.
type CatalogConfig struct {
	CacheEnabled    bool
	CacheTTL        time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

// MediaConfig selects and configures the blob store for thumbnails and videos.
type MediaConfig struct {
	Driver             string
	StorageDir         string
	PublicBaseURL      string
	SignedURLSecret    string
	SignedURLTTL       time.Duration
	MaxThumbnailBytes  int64
	MaxVideoBytes      int64
	GCSBucket          string
	GCSCredentialsFile string
	AllowedImageMIMEs  []string
	AllowedVideoMIMEs  []string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Catalog = CatalogConfig{
		CacheEnabled:    v.GetBool("CATALOG_CACHE_ENABLED"),
		CacheTTL:        parseDuration(v.GetString("CATALOG_CACHE_TTL"), 2*time.Minute),
		DefaultPageSize: positiveOr(v.GetInt("CATALOG_DEFAULT_PAGE_SIZE"), 20),
		MaxPageSize:     positiveOr(v.GetInt("CATALOG_MAX_PAGE_SIZE"), 100),
	}

	maxThumb := v.GetInt64("MEDIA_MAX_THUMBNAIL_SIZE")
	if maxThumb <= 0 {
		maxThumb = 5 * 1024 * 1024
	}
	maxVideo := v.GetInt64("MEDIA_MAX_VIDEO_SIZE")
	if maxVideo <= 0 {
		maxVideo = 512 * 1024 * 1024
	}
	cfg.Media = MediaConfig{
		Driver:             strings.ToLower(v.GetString("MEDIA_DRIVER")),
		StorageDir:         v.GetString("MEDIA_STORAGE_DIR"),
		PublicBaseURL:      strings.TrimRight(v.GetString("MEDIA_PUBLIC_BASE_URL"), "/"),
		SignedURLSecret:    v.GetString("MEDIA_SIGNED_URL_SECRET"),
		SignedURLTTL:       parseDuration(v.GetString("MEDIA_SIGNED_URL_TTL"), 0),
		MaxThumbnailBytes:  maxThumb,
		MaxVideoBytes:      maxVideo,
		GCSBucket:          v.GetString("MEDIA_GCS_BUCKET"),
		GCSCredentialsFile: v.GetString("MEDIA_GCS_CREDENTIALS_FILE"),
		AllowedImageMIMEs:  splitAndTrim(v.GetString("MEDIA_ALLOWED_IMAGE_MIME_TYPES")),
		AllowedVideoMIMEs:  splitAndTrim(v.GetString("MEDIA_ALLOWED_VIDEO_MIME_TYPES")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_catalog")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CATALOG_CACHE_ENABLED", false)
	v.SetDefault("CATALOG_CACHE_TTL", "2m")
	v.SetDefault("CATALOG_DEFAULT_PAGE_SIZE", 20)
	v.SetDefault("CATALOG_MAX_PAGE_SIZE", 100)

	v.SetDefault("MEDIA_DRIVER", MediaDriverLocal)
	v.SetDefault("MEDIA_STORAGE_DIR", "./media")
	v.SetDefault("MEDIA_PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("MEDIA_SIGNED_URL_SECRET", "dev_media_secret")
	v.SetDefault("MEDIA_SIGNED_URL_TTL", "0s")
	v.SetDefault("MEDIA_MAX_THUMBNAIL_SIZE", 5*1024*1024)
	v.SetDefault("MEDIA_MAX_VIDEO_SIZE", 512*1024*1024)
	v.SetDefault("MEDIA_GCS_BUCKET", "")
	v.SetDefault("MEDIA_GCS_CREDENTIALS_FILE", "")
	v.SetDefault("MEDIA_ALLOWED_IMAGE_MIME_TYPES", "image/png,image/jpeg,image/webp,image/gif")
	v.SetDefault("MEDIA_ALLOWED_VIDEO_MIME_TYPES", "video/mp4,video/webm,video/quicktime,application/octet-stream")
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

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
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
