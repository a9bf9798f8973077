package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/edevtech/smsdrop-go/pkg/tokenstore"
)

// Config holds all configuration for the example program
type Config struct {
	SMSDrop    SMSDropConfig    `yaml:"smsdrop"`
	TokenStore TokenStoreConfig `yaml:"token_store"`
	Log        LogConfig        `yaml:"log"`
}

// SMSDropConfig holds smsdrop.net account and API settings
type SMSDropConfig struct {
	Email          string `yaml:"email" env:"SMSDROP_EMAIL"`
	Password       string `yaml:"password" env:"SMSDROP_PASSWORD"`
	BaseURL        string `yaml:"base_url" env:"SMSDROP_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"SMSDROP_TIMEOUT_SECONDS"`
}

// Timeout returns the configured timeout as a duration
func (c SMSDropConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TokenStoreConfig selects and configures where the access token is cached
type TokenStoreConfig struct {
	Backend    string         `yaml:"backend" env:"SMSDROP_TOKEN_STORE"` // memory, redis, dynamodb or none
	Key        string         `yaml:"key" env:"SMSDROP_TOKEN_KEY"`
	TTLSeconds int            `yaml:"ttl_seconds" env:"SMSDROP_TOKEN_TTL_SECONDS"`
	Redis      RedisConfig    `yaml:"redis"`
	DynamoDB   DynamoDBConfig `yaml:"dynamodb"`
}

// TTL returns the token TTL as a duration
func (c TokenStoreConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"SMSDROP_REDIS_ADDR"`
	Username string `yaml:"username" env:"SMSDROP_REDIS_USERNAME"`
	Password string `yaml:"password" env:"SMSDROP_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"SMSDROP_REDIS_DB"`
}

// DynamoDBConfig holds DynamoDB table settings
type DynamoDBConfig struct {
	Table      string `yaml:"table" env:"SMSDROP_DYNAMODB_TABLE"`
	Region     string `yaml:"region" env:"SMSDROP_DYNAMODB_REGION"`
	AWSProfile string `yaml:"aws_profile" env:"SMSDROP_AWS_PROFILE"` // Empty string uses default credential chain
	AccessKey  string `yaml:"access_key" env:"SMSDROP_AWS_ACCESS_KEY"`
	SecretKey  string `yaml:"secret_key" env:"SMSDROP_AWS_SECRET_KEY"`
	Endpoint   string `yaml:"endpoint" env:"SMSDROP_DYNAMODB_ENDPOINT"` // e.g. DynamoDB Local
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level" env:"SMSDROP_LOG_LEVEL"`
}

// Options converts the token store settings for tokenstore.Open
func (c TokenStoreConfig) Options() tokenstore.Options {
	return tokenstore.Options{
		Backend: c.Backend,
		Key:     c.Key,
		TTL:     c.TTL(),
		Redis: tokenstore.RedisOptions{
			Addr:     c.Redis.Addr,
			Username: c.Redis.Username,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		},
		DynamoDB: tokenstore.DynamoDBOptions{
			Table:     c.DynamoDB.Table,
			Region:    c.DynamoDB.Region,
			Profile:   c.DynamoDB.AWSProfile,
			AccessKey: c.DynamoDB.AccessKey,
			SecretKey: c.DynamoDB.SecretKey,
			Endpoint:  c.DynamoDB.Endpoint,
		},
	}
}

// Load reads configuration from a YAML file and applies defaults.
// An empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// Variables from a .env file in the working directory are loaded first.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if c.SMSDrop.Email == "" {
		return errors.New("smsdrop.email (SMSDROP_EMAIL) is required")
	}
	if c.SMSDrop.Password == "" {
		return errors.New("smsdrop.password (SMSDROP_PASSWORD) is required")
	}
	if c.TokenStore.Backend == tokenstore.BackendDynamoDB && c.TokenStore.DynamoDB.Table == "" {
		return errors.New("token_store.dynamodb.table is required for the dynamodb backend")
	}
	return nil
}

func readFile(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SMSDrop.BaseURL == "" {
		c.SMSDrop.BaseURL = "https://api.smsdrop.net/api/v1/"
	}
	if c.SMSDrop.TimeoutSeconds == 0 {
		c.SMSDrop.TimeoutSeconds = 15
	}
	if c.TokenStore.Backend == "" {
		c.TokenStore.Backend = tokenstore.BackendMemory
	}
	if c.TokenStore.Key == "" {
		c.TokenStore.Key = tokenstore.DefaultKey
	}
	if c.TokenStore.TTLSeconds == 0 {
		c.TokenStore.TTLSeconds = int(tokenstore.DefaultTTL / time.Second)
	}
	if c.TokenStore.Backend == tokenstore.BackendRedis && c.TokenStore.Redis.Addr == "" {
		c.TokenStore.Redis.Addr = "localhost:6379"
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
}
