package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds the process-wide settings read once at startup.
type Config struct {
	Port      string `env:"PORT" envDefault:"8000"`
	GinMode   string `env:"GIN_MODE" envDefault:"release"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	PublicURL string `env:"PUBLIC_URL"`

	// WSOriginPatterns lists extra origins allowed to open status websockets.
	WSOriginPatterns []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`

	// Serverless deployments have no writable disk, so the memory store is forced.
	Serverless bool   `env:"VERCEL"`
	DataDir    string `env:"DATA_DIR" envDefault:"./data"`

	StorageBackend   string `env:"STORAGE_BACKEND" envDefault:"filesystem"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket         string `env:"S3_BUCKET"`
	S3AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE"`

	MaxUploadSize     int64 `env:"MAX_UPLOAD_SIZE" envDefault:"104857600"`
	MaxUploadFiles    int   `env:"MAX_UPLOAD_FILES" envDefault:"10"`
	MaxDocumentSize   int64 `env:"MAX_DOCUMENT_SIZE" envDefault:"52428800"`
	ConvertRateLimit  int   `env:"CONVERT_RATE_LIMIT" envDefault:"30"`
	GenerateRateLimit int   `env:"GENERATE_RATE_LIMIT" envDefault:"10"`

	CloudConvertAPIKey       string        `env:"CLOUDCONVERT_API_KEY"`
	CloudConvertBaseURL      string        `env:"CLOUDCONVERT_BASE_URL" envDefault:"https://api.cloudconvert.com/v2"`
	CloudConvertPollInterval time.Duration `env:"CLOUDCONVERT_POLL_INTERVAL" envDefault:"2s"`
	CloudConvertMaxPolls     int           `env:"CLOUDCONVERT_MAX_POLLS" envDefault:"60"`
	FFmpegEnabled            bool          `env:"FFMPEG_ENABLED"`

	PollinationsURL          string        `env:"POLLINATIONS_URL" envDefault:"https://image.pollinations.ai"`
	StableHordeURL           string        `env:"STABLEHORDE_URL" envDefault:"https://stablehorde.net"`
	StableHordeAPIKey        string        `env:"STABLEHORDE_API_KEY" envDefault:"0000000000"`
	StableHordePollInterval  time.Duration `env:"STABLEHORDE_POLL_INTERVAL" envDefault:"3s"`
	StableHordeMaxPolls      int           `env:"STABLEHORDE_MAX_POLLS" envDefault:"20"`
	DalleMiniURL             string        `env:"DALLEMINI_URL" envDefault:"https://bf.dallemini.ai"`
	PlaceholderURL           string        `env:"PLACEHOLDER_URL" envDefault:"https://via.placeholder.com"`
	DisabledProviders        []string      `env:"DISABLED_PROVIDERS" envSeparator:","`

	TempMailAPIURL        string        `env:"TEMPMAIL_API_URL" envDefault:"https://www.1secmail.com/api/v1/"`
	TempMailSweepInterval time.Duration `env:"TEMPMAIL_SWEEP_INTERVAL" envDefault:"1m"`

	RedirectCacheSize int           `env:"REDIRECT_CACHE_SIZE" envDefault:"1024"`
	RedirectCacheTTL  time.Duration `env:"REDIRECT_CACHE_TTL" envDefault:"10m"`
}

// Load parses the environment into a Config. Secrets additionally honour the
// KEY_FILE convention understood by Get.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.CloudConvertAPIKey = Get("CLOUDCONVERT_API_KEY", cfg.CloudConvertAPIKey)
	cfg.StableHordeAPIKey = Get("STABLEHORDE_API_KEY", cfg.StableHordeAPIKey)
	cfg.S3AccessKeyID = Get("S3_ACCESS_KEY_ID", cfg.S3AccessKeyID)
	cfg.S3SecretKey = Get("S3_SECRET_ACCESS_KEY", cfg.S3SecretKey)

	if cfg.Serverless {
		cfg.StorageBackend = "memory"
	}
	if cfg.MaxUploadFiles <= 0 {
		cfg.MaxUploadFiles = 10
	}
	return cfg, nil
}

// ProviderDisabled reports whether an image provider was switched off by name.
func (c *Config) ProviderDisabled(name string) bool {
	for _, p := range c.DisabledProviders {
		if p == name {
			return true
		}
	}
	return false
}
