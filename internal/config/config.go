package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string         `yaml:"env" env:"ENV" env-default:"local"`
	Database   DatabaseConfig `yaml:"database"`
	HTTPServer HTTPServer     `yaml:"http_server"`
	Auth       AuthConfig     `yaml:"auth"`
	Messages   MessagesConfig `yaml:"messages"`
	Redis      RedisConfig    `yaml:"redis"`
	Throttle   ThrottleConfig `yaml:"throttle"`
	Realtime   RealtimeConfig `yaml:"realtime"`
	S3         S3Config       `yaml:"s3"`
	Risk       RiskConfig     `yaml:"risk"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `yaml:"driver" env:"DATABASE_DRIVER" env-default:"postgres"`
	DSN    string `yaml:"dsn" env:"DATABASE_URL" env-required:"true"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8082"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	Issuer    string `yaml:"issuer" env:"JWT_ISSUER"`
}

type MessagesConfig struct {
	MaxAttachments     int           `yaml:"max_attachments" env-default:"10"`
	StoreTimeout       time.Duration `yaml:"store_timeout" env-default:"5s"`
	LiveLocationWindow time.Duration `yaml:"live_location_window" env-default:"5s"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type ThrottleConfig struct {
	// Backend is "memory" (single instance only) or "redis".
	Backend string `yaml:"backend" env:"THROTTLE_BACKEND" env-default:"memory"`
	Prefix  string `yaml:"prefix" env-default:"live-location:"`
}

type RealtimeConfig struct {
	// Relay is "local" or "redis".
	Relay      string `yaml:"relay" env:"REALTIME_RELAY" env-default:"local"`
	Channel    string `yaml:"channel" env-default:"groupchat:events"`
	SendBuffer int    `yaml:"send_buffer" env-default:"128"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Region    string `yaml:"region" env:"S3_REGION"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	KeyPrefix string `yaml:"key_prefix" env-default:"uploads/"`
}

type RiskConfig struct {
	AMQPURL string `yaml:"amqp_url" env:"RISK_AMQP_URL"`
	Queue   string `yaml:"queue" env-default:"risk.updates"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config %s", err)
	}

	return &cfg
}
