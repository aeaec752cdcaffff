package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte

	Topics struct {
		Readings string // 传感器读数主题，如 "telemetry/+/readings"
	}
}

// Config 碳排放监控服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 遥测管道配置
	Telemetry struct {
		Stream        string // Redis Stream 名称
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int // 单次 XREADGROUP 读取条数

		WindowSize         int // 滑动窗口大小 N
		ForecastHorizonSec int // 预测时间跨度（秒）
		QueueSize          int // 每公司队列容量
	}

	// 告警阈值（以排放上限 cap 的比例表示）
	Alert struct {
		BreachRatio float64 // current >= BreachRatio*cap → breach
		WarnRatio   float64 // forecast >= WarnRatio*cap → warning
	}

	// Redis 缓存配置
	Cache struct {
		CompanyKeyPrefix string // 公司缓存键前缀，如 "carbon:company:"
		RecordSuffix     string // 公司记录缓存键后缀，如 ":record"
		TelemetrySuffix  string // 遥测投影键后缀，如 ":telemetry"
		RecordTTL        int    // 公司记录缓存 TTL（秒）
		TelemetryTTL     int    // 遥测投影 TTL（秒）
	}

	// 告警通知配置
	Notify struct {
		WebhookURL string // 为空则禁用
		TimeoutSec int
	}

	// 外部存储调用配置
	Store struct {
		TimeoutSec int // 单次存储调用超时（秒），超时返回 ErrStoreUnavailable
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "carbon")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "carbon-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.Topics.Readings = getEnv("MQTT_TOPIC_READINGS", "telemetry/+/readings")

	// 遥测管道配置
	cfg.Telemetry.Stream = getEnv("TELEMETRY_STREAM", "telemetry:readings")
	cfg.Telemetry.ConsumerGroup = getEnv("TELEMETRY_CONSUMER_GROUP", "carbon-monitor")
	cfg.Telemetry.ConsumerName = getEnv("TELEMETRY_CONSUMER_NAME", defaultConsumerName())
	cfg.Telemetry.BatchSize = getEnvInt("TELEMETRY_BATCH_SIZE", 10)
	cfg.Telemetry.WindowSize = getEnvInt("TELEMETRY_WINDOW_SIZE", 20)
	cfg.Telemetry.ForecastHorizonSec = getEnvInt("FORECAST_HORIZON_SEC", 3600)
	cfg.Telemetry.QueueSize = getEnvInt("TELEMETRY_QUEUE_SIZE", 64)

	cfg.Alert.BreachRatio = getEnvFloat("ALERT_BREACH_RATIO", 1.0)
	cfg.Alert.WarnRatio = getEnvFloat("ALERT_WARN_RATIO", 1.0)

	cfg.Cache.CompanyKeyPrefix = getEnv("CACHE_COMPANY_PREFIX", "carbon:company:")
	cfg.Cache.RecordSuffix = ":record"
	cfg.Cache.TelemetrySuffix = ":telemetry"
	cfg.Cache.RecordTTL = getEnvInt("CACHE_RECORD_TTL", 300)
	cfg.Cache.TelemetryTTL = getEnvInt("CACHE_TELEMETRY_TTL", 300)

	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", "")
	cfg.Notify.TimeoutSec = getEnvInt("NOTIFY_TIMEOUT_SEC", 10)

	cfg.Store.TimeoutSec = getEnvInt("STORE_TIMEOUT_SEC", 5)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// defaultConsumerName 默认消费者名称（主机名，便于多实例区分）
func defaultConsumerName() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "carbon-monitor-1"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
