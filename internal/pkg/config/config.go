package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	App       AppConfig       `mapstructure:"app"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Push      PushConfig      `mapstructure:"push"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// WebhookRPS 单 IP 回调限流
	WebhookRPS   float64 `mapstructure:"webhook_rps"`
	WebhookBurst int     `mapstructure:"webhook_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

// DSN 返回 golang-migrate 使用的连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// GatewayConfig 支付网关
type GatewayConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	KeyID           string        `mapstructure:"key_id"`
	KeySecret       string        `mapstructure:"key_secret"`
	WebhookSecret   string        `mapstructure:"webhook_secret"`
	SignatureHeader string        `mapstructure:"signature_header"`
	EventIDHeader   string        `mapstructure:"event_id_header"`
	Timeout         time.Duration `mapstructure:"timeout"`
	QPS             float64       `mapstructure:"qps"` // 0 表示不限
	Burst           int           `mapstructure:"burst"`
	// DedupTTL 回调事件去重记录的保留时间
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

// ReconcileConfig 对账同步
type ReconcileConfig struct {
	MaxWorkers         int           `mapstructure:"max_workers"`
	WorkerDelay        time.Duration `mapstructure:"worker_delay"`
	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay"`
	MaxRetries         int           `mapstructure:"max_retries"`
	MaxBatchSize       int           `mapstructure:"max_batch_size"`
	ScheduleInterval   time.Duration `mapstructure:"schedule_interval"` // 0 表示关闭定时对账
	Lookback           time.Duration `mapstructure:"lookback"`
	ScheduledBatchSize int           `mapstructure:"scheduled_batch_size"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type PushConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	AppKey          int64  `mapstructure:"app_key"`
	RegionID        string `mapstructure:"region_id"` // e.g., "cn-hangzhou"
}

type TracingConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"` // 为空时不上报
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}
	if c.Gateway.BaseURL == "" {
		return errors.New("gateway base_url is required")
	}
	if c.Gateway.WebhookSecret == "" {
		return errors.New("gateway webhook_secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}
	if c.Reconcile.MaxWorkers <= 0 {
		return errors.New("reconcile max_workers must be positive")
	}
	if c.Reconcile.MaxRetries < 0 {
		return errors.New("reconcile max_retries must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.webhook_rps", 50)
	v.SetDefault("server.webhook_burst", 100)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)
	v.SetDefault("gateway.signature_header", "X-Razorpay-Signature")
	v.SetDefault("gateway.event_id_header", "X-Razorpay-Event-Id")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.burst", 1)
	v.SetDefault("gateway.dedup_ttl", "72h")
	v.SetDefault("reconcile.max_workers", 5)
	v.SetDefault("reconcile.worker_delay", "200ms")
	v.SetDefault("reconcile.retry_base_delay", "500ms")
	v.SetDefault("reconcile.max_retries", 2)
	v.SetDefault("reconcile.max_batch_size", 500)
	v.SetDefault("reconcile.schedule_interval", "0s")
	v.SetDefault("reconcile.lookback", "72h")
	v.SetDefault("reconcile.scheduled_batch_size", 200)
	v.SetDefault("rabbitmq.exchange", "orders")
	v.SetDefault("tracing.service_name", "storefront")
}

// LoadConfig 加载配置
// 根据 APP_ENV 选择 configs/config[.<env>].yaml，环境变量覆盖同名配置 (如 GATEWAY_WEBHOOK_SECRET)
func LoadConfig() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 手动覆盖，以防 viper 无法正确解析环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
