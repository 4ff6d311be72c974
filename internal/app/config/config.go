package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	CatalogSourceLocal = "local"
	CatalogSourceMongo = "mongo"

	StorageMemory = "memory"
	StorageBadger = "badger"
	StorageRedis  = "redis"
)

type Config struct {
	Env          string             `yaml:"env" env:"ENV" env-default:"local"`
	ServiceName  string             `yaml:"service_name" env:"SERVICE_NAME" env-default:"storefront"`
	HTTPServer   HTTPServerConfig   `yaml:"http_server"`
	GRPCServer   GRPCServerConfig   `yaml:"grpc_server"`
	Logger       LoggerConfig       `yaml:"logger"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Search       SearchConfig       `yaml:"search"`
	Storage      StorageConfig      `yaml:"storage"`
	MongoDB      MongoDBConfig      `yaml:"mongo"`
	Redis        RedisConfig        `yaml:"redis"`
	ProductCache ProductCacheConfig `yaml:"product_cache"`
	NATS         NATSConfig         `yaml:"nats"`
	Auth         AuthConfig         `yaml:"auth"`
	Session      SessionConfig      `yaml:"session"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Alerts       AlertsConfig       `yaml:"alerts"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	Tracing      TracingConfig      `yaml:"tracing"`
}

type HTTPServerConfig struct {
	Port            string        `yaml:"port" env:"HTTP_PORT_STOREFRONT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	TimeoutGraceful time.Duration `yaml:"timeout_graceful_shutdown" env-default:"15s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
}

type GRPCServerConfig struct {
	Port              string        `yaml:"port" env:"GRPC_PORT_STOREFRONT" env-default:"50060"`
	MaxConnectionIdle time.Duration `yaml:"max_connection_idle" env-default:"15m"`
	Timeout           time.Duration `yaml:"timeout" env-default:"5s"`
	TimeoutGraceful   time.Duration `yaml:"timeout_graceful_shutdown" env-default:"15s"`
}

type LoggerConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
	TimeFormat string `yaml:"time_format" env:"LOG_TIME_FORMAT" env-default:"2006-01-02T15:04:05.000Z07:00"`
}

type CatalogConfig struct {
	Source   string `yaml:"source" env:"CATALOG_SOURCE" env-default:"local"`
	PageSize int    `yaml:"page_size" env:"CATALOG_PAGE_SIZE" env-default:"50"`
	SeedFile string `yaml:"seed_file" env:"CATALOG_SEED_FILE"`
}

type SearchConfig struct {
	Debounce     time.Duration `yaml:"debounce" env:"SEARCH_DEBOUNCE" env-default:"300ms"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"SEARCH_FETCH_TIMEOUT" env-default:"10s"`
}

type StorageConfig struct {
	Driver       string        `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	BadgerPath   string        `yaml:"badger_path" env:"STORAGE_BADGER_PATH" env-default:"./data/state"`
	KeyTTL       time.Duration `yaml:"key_ttl" env:"STORAGE_KEY_TTL" env-default:"720h"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"STORAGE_WRITE_TIMEOUT" env-default:"5s"`
}

type MongoDBConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	User     string `yaml:"user" env:"MONGO_USER"`
	Password string `yaml:"password" env:"MONGO_PASSWORD"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"storefront_db"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB           int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	PoolSize     int           `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"20"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"REDIS_READ_TIMEOUT" env-default:"2s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT" env-default:"2s"`
}

type ProductCacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"PRODUCT_CACHE_ENABLED" env-default:"false"`
	TTL     time.Duration `yaml:"ttl" env:"PRODUCT_CACHE_TTL" env-default:"5m"`
}

type NATSConfig struct {
	URL string `yaml:"url" env:"NATS_URL"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl" env:"SESSION_IDLE_TTL" env-default:"30m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SESSION_SWEEP_INTERVAL" env-default:"1m"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"20"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"40"`
}

type AlertsConfig struct {
	EvaluateInterval time.Duration `yaml:"evaluate_interval" env:"ALERTS_EVALUATE_INTERVAL" env-default:"5m"`
}

type SMTPConfig struct {
	Host         string        `yaml:"host" env:"SMTP_HOST"`
	Port         int           `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username     string        `yaml:"username" env:"SMTP_USERNAME"`
	Password     string        `yaml:"password" env:"SMTP_PASSWORD"`
	SenderEmail  string        `yaml:"sender_email" env:"SMTP_SENDER_EMAIL"`
	Encryption   string        `yaml:"encryption" env:"SMTP_ENCRYPTION" env-default:"tls"`
	ServerName   string        `yaml:"server_name" env:"SMTP_SERVER_NAME"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SMTP_WRITE_TIMEOUT" env-default:"10s"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLE_RATIO" env-default:"1"`
}

func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	err := cleanenv.ReadConfig(path, &cfg)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			log.Printf("Warning: config file not found at %s, loading from environment variables only.", path)
			cfg = Config{}
			if errEnv := cleanenv.ReadEnv(&cfg); errEnv != nil {
				return nil, errEnv
			}
			return &cfg, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH_STOREFRONT")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	return cfg
}
