package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	DB         DBConfig         `yaml:"db"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Submission SubmissionConfig `yaml:"submission"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"` //nolint:gosec // config struct, not hardcoded cred
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// SubmissionConfig tunes the conflict retry loop of the submit coordinator.
type SubmissionConfig struct {
	MaxRetries int             `yaml:"max_retries"`
	Backoff    []time.Duration `yaml:"backoff"`
}

// WorkerConfig tunes the reconciliation sweep.
type WorkerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

func Load() (*Config, error) {
	configPath := getConfigPath()
	data, err := os.ReadFile(configPath) //nolint:gosec // config path from env/flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	possiblePaths := []string{
		"config/config.yaml",
		"/etc/activity-service/config.yaml",
		"./config.yaml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "config.yaml"
}

func setDefaults(cfg *Config) {
	if cfg.Submission.MaxRetries == 0 {
		cfg.Submission.MaxRetries = 3
	}

	if len(cfg.Submission.Backoff) == 0 {
		cfg.Submission.Backoff = []time.Duration{
			50 * time.Millisecond,
			100 * time.Millisecond,
			200 * time.Millisecond,
		}
	}

	if cfg.Worker.ReconcileInterval == 0 {
		cfg.Worker.ReconcileInterval = time.Minute
	}

	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
}

func overrideFromEnv(cfg *Config) {
	if val := os.Getenv("DB_HOST"); val != "" {
		cfg.DB.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.DB.Port = port
		}
	}
	if val := os.Getenv("DB_USER"); val != "" {
		cfg.DB.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		cfg.DB.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		cfg.DB.DBName = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		cfg.DB.SSLMode = val
	}

	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		cfg.Kafka.Brokers = strings.Split(val, ",")
	}

	if val := os.Getenv("SUBMISSION_MAX_RETRIES"); val != "" {
		if retries, err := strconv.Atoi(val); err == nil {
			cfg.Submission.MaxRetries = retries
		}
	}

	if val := os.Getenv("WORKER_RECONCILE_INTERVAL"); val != "" {
		if interval, err := time.ParseDuration(val); err == nil {
			cfg.Worker.ReconcileInterval = interval
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.DBName == "" {
		return fmt.Errorf("database configuration is incomplete")
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one Kafka broker must be specified")
	}

	if cfg.Submission.MaxRetries < 0 {
		return fmt.Errorf("submission max_retries must not be negative")
	}

	for _, d := range cfg.Submission.Backoff {
		if d <= 0 {
			return fmt.Errorf("submission backoff delays must be positive")
		}
	}

	return nil
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.DBName,
		c.DB.SSLMode,
	)
}
