package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration parameters read from environment variables.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"chemlit"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"8000"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// CrossRef API
	CrossRefBaseURL   string `envconfig:"CROSSREF_BASE_URL" default:"https://api.crossref.org"`
	CrossRefRateLimit int    `envconfig:"CROSSREF_RATE_LIMIT" default:"10"`
	CrossRefUserAgent string `envconfig:"CROSSREF_USER_AGENT" default:"ChemLitExtractor/1.0 (mailto:user@example.com)"`

	// File storage for downloaded article files
	DataRootPath  string `envconfig:"DATA_ROOT_PATH" default:"./data/articles"`
	MaxFileSizeMB int    `envconfig:"MAX_FILE_SIZE_MB" default:"100"`

	// Schedule for retrying pending file downloads. Empty disables the job.
	DownloadRetrySchedule string `envconfig:"DOWNLOAD_RETRY_SCHEDULE" default:"0 3 * * *"`

	// Optional S3 mirror for downloaded files. Mirroring stays off unless
	// every S3 value is set.
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION"`
	S3Bucket string `envconfig:"S3_BUCKET"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// S3Enabled reports whether the optional S3 mirror is fully configured.
func (c *Config) S3Enabled() bool {
	return c.S3Key != "" && c.S3Secret != "" && c.S3URL != "" && c.S3Region != "" && c.S3Bucket != ""
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
