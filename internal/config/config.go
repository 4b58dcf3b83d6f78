package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	defaultBlogImageMaxBytes    = 15 << 20
	defaultCommentImageMaxBytes = 5 << 20
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr     string
	Port           string
	DatabaseDriver string
	DatabaseDSN    string
	SessionSecret  string
	GinMode        string
	LogLevel       string
	AllowedOrigins []string

	StorageBackend string
	UploadDir      string
	UploadURLPath  string
	S3Region       string
	GCSProjectID   string
	GCSCredentials string

	// RedisAddr enables the cross-instance change feed when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	BlogImageBucket      string
	CommentImageBucket   string
	BlogImageMaxBytes    int64
	CommentImageMaxBytes int64
	PageSize             int
}

// FileConfig is the optional YAML config file. Environment variables win over it.
type FileConfig struct {
	Server struct {
		Port           string   `yaml:"port"`
		ListenAddr     string   `yaml:"listen_addr"`
		SessionSecret  string   `yaml:"session_secret"`
		GinMode        string   `yaml:"gin_mode"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		PageSize       int      `yaml:"page_size"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"db"`
	Storage struct {
		Backend              string `yaml:"backend"`
		UploadDir            string `yaml:"upload_dir"`
		UploadURLPath        string `yaml:"upload_url_path"`
		S3Region             string `yaml:"s3_region"`
		GCSProjectID         string `yaml:"gcs_project_id"`
		GCSCredentials       string `yaml:"gcs_credentials_file"`
		BlogImageBucket      string `yaml:"blog_image_bucket"`
		CommentImageBucket   string `yaml:"comment_image_bucket"`
		BlogImageMaxBytes    int64  `yaml:"blog_image_max_bytes"`
		CommentImageMaxBytes int64  `yaml:"comment_image_max_bytes"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
	Logs struct {
		Level string `yaml:"level"`
	} `yaml:"logs"`
}

// LoadDotEnv reads a .env file when one is present; a missing file is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ReadFile parses a YAML config file.
func ReadFile(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// CONFIG_FILE, when set, points at a YAML file whose values sit between the
// environment and the defaults.
func Load() (AppConfig, error) {
	var fc FileConfig
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		parsed, err := ReadFile(path)
		if err != nil {
			return AppConfig{}, err
		}
		fc = parsed
	}
	return FromFile(fc), nil
}

// FromFile resolves every setting as environment, then fc, then the default.
func FromFile(fc FileConfig) AppConfig {
	port := envOr("PORT", or(fc.Server.Port, "8080"))

	listenAddr := envOr("LISTEN_ADDR", or(fc.Server.ListenAddr, fmt.Sprintf(":%s", port)))

	driver := strings.ToLower(envOr("DATABASE_DRIVER", or(fc.Database.Driver, "sqlite")))
	dsn := envOr("DATABASE_DSN", fc.Database.DSN)
	if dsn == "" && driver == "sqlite" {
		dsn = envOr("DATABASE_PATH", "threadlog.db")
	}

	origins := fc.Server.AllowedOrigins
	if raw := envOr("ALLOWED_ORIGINS", ""); raw != "" || len(origins) == 0 {
		origins = splitList(or(raw, "http://localhost:5173"))
	}

	return AppConfig{
		ListenAddr:     listenAddr,
		Port:           port,
		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		SessionSecret:  envOr("SESSION_SECRET", or(fc.Server.SessionSecret, "threadlog-dev-secret")),
		GinMode:        envOr("GIN_MODE", or(fc.Server.GinMode, "release")),
		LogLevel:       envOr("LOG_LEVEL", or(fc.Logs.Level, "info")),
		AllowedOrigins: origins,

		StorageBackend: strings.ToLower(envOr("STORAGE_BACKEND", or(fc.Storage.Backend, "local"))),
		UploadDir:      envOr("UPLOAD_DIR", or(fc.Storage.UploadDir, "web/static/uploads")),
		UploadURLPath:  envOr("UPLOAD_URL_PATH", or(fc.Storage.UploadURLPath, "/static/uploads")),
		S3Region:       envOr("S3_REGION", or(fc.Storage.S3Region, "us-east-1")),
		GCSProjectID:   envOr("GCS_PROJECT_ID", fc.Storage.GCSProjectID),
		GCSCredentials: envOr("GCS_CREDENTIALS_FILE", fc.Storage.GCSCredentials),

		RedisAddr:     envOr("REDIS_ADDR", fc.Redis.Addr),
		RedisPassword: envOr("REDIS_PASSWORD", fc.Redis.Password),
		RedisDB:       int(envInt64("REDIS_DB", int64(fc.Redis.DB))),
		RedisChannel:  envOr("REDIS_CHANNEL", or(fc.Redis.Channel, "threadlog:changes")),

		BlogImageBucket:      envOr("BLOG_IMAGE_BUCKET", or(fc.Storage.BlogImageBucket, "blog-images")),
		CommentImageBucket:   envOr("COMMENT_IMAGE_BUCKET", or(fc.Storage.CommentImageBucket, "comment_images")),
		BlogImageMaxBytes:    envInt64("BLOG_IMAGE_MAX_BYTES", positive(fc.Storage.BlogImageMaxBytes, defaultBlogImageMaxBytes)),
		CommentImageMaxBytes: envInt64("COMMENT_IMAGE_MAX_BYTES", positive(fc.Storage.CommentImageMaxBytes, defaultCommentImageMaxBytes)),
		PageSize:             int(envInt64("PAGE_SIZE", positive(int64(fc.Server.PageSize), 10))),
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func or(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func positive(value, fallback int64) int64 {
	if value <= 0 {
		return fallback
	}
	return value
}

func envInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
