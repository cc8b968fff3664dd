package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	commoncfg "vigil-backend/common/config"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config vigil-backend 配置
type Config struct {
	HTTP struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"` // 为空时允许任意来源
	} `yaml:"http"`

	DBEnabled bool                     `yaml:"db_enabled"`
	Database  commoncfg.DatabaseConfig `yaml:"database"`

	RedisEnabled bool                  `yaml:"redis_enabled"`
	Redis        commoncfg.RedisConfig `yaml:"redis"`

	MQTTEnabled bool                 `yaml:"mqtt_enabled"`
	MQTT        commoncfg.MQTTConfig `yaml:"mqtt"`

	Auth AuthConfig `yaml:"auth"`
	Push PushConfig `yaml:"push"`

	Events struct {
		Stream string `yaml:"stream"` // Redis Streams 名称
		MaxLen int64  `yaml:"max_len"`
	} `yaml:"events"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// AuthConfig JWT 校验配置（签发不在本服务）
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// PushConfig Web Push (VAPID) 配置
type PushConfig struct {
	VAPIDPublicKey  string   `yaml:"vapid_public_key"`
	VAPIDPrivateKey string   `yaml:"vapid_private_key"`
	Subscriber      string   `yaml:"subscriber"` // mailto: 联系方式
	TTL             int      `yaml:"ttl"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"` // 单次投递超时
	Concurrency     int      `yaml:"concurrency"`     // fan-out 并发上限
	WebhookHosts    []string `yaml:"webhook_hosts"`   // webhook 订阅主机白名单
	AllowPrivate    bool     `yaml:"allow_private"`   // 允许 http 与内网 endpoint（仅本地开发）
}

// Load 加载配置
// 顺序：默认值 -> .env -> CONFIG_FILE (yaml) -> 环境变量
func Load() (*Config, error) {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.HTTP.AllowedOrigins = splitList(origins)
	}

	cfg.DBEnabled = getBool("DB_ENABLED", cfg.DBEnabled)
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getBool("REDIS_ENABLED", cfg.RedisEnabled)
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTTEnabled = getBool("MQTT_ENABLED", cfg.MQTTEnabled)
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)

	cfg.Push.VAPIDPublicKey = getEnv("VAPID_PUBLIC_KEY", cfg.Push.VAPIDPublicKey)
	cfg.Push.VAPIDPrivateKey = getEnv("VAPID_PRIVATE_KEY", cfg.Push.VAPIDPrivateKey)
	cfg.Push.Subscriber = getEnv("VAPID_SUBSCRIBER", cfg.Push.Subscriber)
	cfg.Push.TTL = parseInt(getEnv("PUSH_TTL", ""), cfg.Push.TTL)
	cfg.Push.TimeoutSeconds = parseInt(getEnv("PUSH_TIMEOUT_SECONDS", ""), cfg.Push.TimeoutSeconds)
	cfg.Push.Concurrency = parseInt(getEnv("PUSH_CONCURRENCY", ""), cfg.Push.Concurrency)
	if hosts := getEnv("PUSH_WEBHOOK_HOSTS", ""); hosts != "" {
		cfg.Push.WebhookHosts = splitList(hosts)
	}
	cfg.Push.AllowPrivate = getBool("PUSH_ALLOW_PRIVATE_ENDPOINTS", cfg.Push.AllowPrivate)

	cfg.Events.Stream = getEnv("EVENT_STREAM", cfg.Events.Stream)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"

	cfg.DBEnabled = true
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "vigil"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 20
	cfg.Database.MaxIdle = 5

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "vigil-backend"
	cfg.MQTT.QoS = 1

	cfg.Push.Subscriber = "mailto:admin@example.com"
	cfg.Push.TTL = 60
	cfg.Push.TimeoutSeconds = 10
	cfg.Push.Concurrency = 8

	cfg.Events.Stream = "vigil:events"
	cfg.Events.MaxLen = 10000

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
