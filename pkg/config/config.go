package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/carusalgiz/shop-cloudfront/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Postgres PG       `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Services Services `yaml:"services"`
	Limiter  Limiter  `yaml:"limiter"`
	Cart     Cart     `yaml:"cart"`
	Tracing  Tracing  `yaml:"tracing"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type GRPC struct {
	Port    string        `yaml:"port" env:"GRPC_PORT" env-default:":50052"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"storefront-group"`
}

type Services struct {
	CatalogRPC string `yaml:"catalog_rpc" env:"CATALOG_RPC_URL" env-default:"localhost:50052"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

// Cart tunes the storefront cart collaborator.
type Cart struct {
	InstanceID    string        `yaml:"instance_id" env:"CART_INSTANCE_ID"`
	StreamTimeout time.Duration `yaml:"stream_timeout" env:"CART_STREAM_TIMEOUT" env-default:"30m"`
	IdleTTL       time.Duration `yaml:"idle_ttl" env:"CART_IDLE_TTL" env-default:"30m"`
	EvictInterval time.Duration `yaml:"evict_interval" env:"CART_EVICT_INTERVAL" env-default:"1m"`
}

type Tracing struct {
	Endpoint    string  `yaml:"endpoint" env:"OTEL_ENDPOINT" env-default:"localhost:4318"`
	Insecure    bool    `yaml:"insecure" env:"OTEL_INSECURE" env-default:"true"`
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLE_RATIO" env-default:"1"`
}

// Load reads the yaml file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	return &cfg, nil
}

// LoadEnv builds the config from environment variables only.
func LoadEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error reading env config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		log.Printf("falling back to env config: %v\n", err)

		cfg, err = LoadEnv()
		if err != nil {
			log.Fatalf("error reading config: %v", err)
		}
	}

	return cfg
}

func (c *Config) LoggerConfig() LoggerConfig {
	return LoggerConfig{Level: c.LogLevel, Env: c.Env}
}

func (c *Config) TracerConfig(serviceName string) utils.TracerConfig {
	return utils.TracerConfig{
		ServiceName: serviceName,
		Env:         c.Env,
		Endpoint:    c.Tracing.Endpoint,
		Insecure:    c.Tracing.Insecure,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
