// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds configuration for both the API and the worker binaries.
type Config struct {
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	Redis   RedisConfig
	Storage StorageConfig
	Worker  WorkerConfig
}

// RedisConfig configures the shared job store.
type RedisConfig struct {
	Addr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password  string `envconfig:"REDIS_PASSWORD" default:""`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"renderq"`
}

// StorageConfig configures the artifact object store.
type StorageConfig struct {
	Provider  string `envconfig:"STORAGE_PROVIDER" default:"localfs"`
	LocalRoot string `envconfig:"STORAGE_LOCAL_ROOT" default:"/data/output"`
}

// WorkerConfig configures the generation worker.
type WorkerConfig struct {
	GeneratorBaseURL string        `envconfig:"GENERATOR_HTTP_BASEURL" default:"http://localhost:9000"`
	GeneratorTimeout time.Duration `envconfig:"GENERATOR_HTTP_TIMEOUT" default:"30m"`
	ScratchDir       string        `envconfig:"WORKER_SCRATCH_DIR" default:"/data/scratch"`
	DequeueWait      time.Duration `envconfig:"WORKER_DEQUEUE_WAIT" default:"5s"`
	FFmpegBin        string        `envconfig:"FFMPEG_BIN" default:"ffmpeg"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
