package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabasePath  string
	SessionSecret string
	GinMode       string
	LogLevel      string
	UploadDir     string
	UploadURLPath string
	JWTSecret     string
	JWTTTL        time.Duration

	SuperRootEmail    string
	SuperRootPassword string

	Redis RedisConfig
	Kafka KafkaConfig
	MinIO MinIOConfig
}

// RedisConfig enables the distributed slug lock when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig enables lifecycle event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// MinIOConfig switches uploads from the local directory to a bucket when
// Endpoint is set.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

var defaults = map[string]any{
	"PORT":            "8080",
	"DATABASE_PATH":   "inkpost.db",
	"SESSION_SECRET":  "inkpost-dev-secret",
	"GIN_MODE":        "release",
	"LOG_LEVEL":       "info",
	"UPLOAD_DIR":      "web/static/uploads",
	"UPLOAD_URL_PATH": "/static/uploads",
	"JWT_SECRET":      "inkpost-dev-jwt-secret",
	"JWT_TTL":         "24h",
	"REDIS_DB":        0,
	"KAFKA_TOPIC":     "post-lifecycle",
	"MINIO_BUCKET":    "inkpost",
	"MINIO_USE_SSL":   false,
}

// Load 从环境变量（以及可选的 .env 文件）读取应用配置，并为缺失项提供默认值。
func Load() AppConfig {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// FromViper builds an AppConfig from an already populated viper instance.
func FromViper(v *viper.Viper) AppConfig {
	str := func(key string) string {
		return strings.TrimSpace(v.GetString(key))
	}

	port := str("PORT")
	if port == "" {
		port = "8080"
	}
	listenAddr := str("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	ttl := v.GetDuration("JWT_TTL")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabasePath:      str("DATABASE_PATH"),
		SessionSecret:     str("SESSION_SECRET"),
		GinMode:           str("GIN_MODE"),
		LogLevel:          str("LOG_LEVEL"),
		UploadDir:         str("UPLOAD_DIR"),
		UploadURLPath:     str("UPLOAD_URL_PATH"),
		JWTSecret:         str("JWT_SECRET"),
		JWTTTL:            ttl,
		SuperRootEmail:    str("SUPER_ROOT_EMAIL"),
		SuperRootPassword: str("SUPER_ROOT_PASSWORD"),
		Redis: RedisConfig{
			Addr:     str("REDIS_ADDR"),
			Password: str("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(str("KAFKA_BROKERS")),
			Topic:   str("KAFKA_TOPIC"),
		},
		MinIO: MinIOConfig{
			Endpoint:  str("MINIO_ENDPOINT"),
			AccessKey: str("MINIO_ACCESS_KEY"),
			SecretKey: str("MINIO_SECRET_KEY"),
			Bucket:    str("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			PublicURL: strings.TrimRight(str("MINIO_PUBLIC_URL"), "/"),
		},
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
