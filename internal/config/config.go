// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every setting the api server and invoicectl read at startup.
type Config struct {
	Port        string
	Env         string
	CORSOrigins []string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	DARate         decimal.Decimal
	CurrencyLocale string

	AttachmentDir      string
	AttachmentS3Bucket string
	AWSRegion          string
	RenderTempDir      string
}

// LoadDotEnv loads path into the environment if it exists. Variables already set win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return godotenv.Load(path)
}

// Load reads the environment, applying defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("APP_ENV", "development"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "postgres"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "tourinvoice.db"),

		CurrencyLocale: getEnv("CURRENCY_LOCALE", "en-IN"),

		AttachmentDir:      getEnv("ATTACHMENT_DIR", "attachments"),
		AttachmentS3Bucket: os.Getenv("ATTACHMENT_S3_BUCKET"),
		AWSRegion:          getEnv("AWS_REGION", "ap-south-1"),
		RenderTempDir:      getEnv("RENDER_TEMP_DIR", os.TempDir()),
	}

	rate, err := decimal.NewFromString(getEnv("DA_RATE_PER_DAY", "400"))
	if err != nil {
		return nil, fmt.Errorf("invalid DA_RATE_PER_DAY: %w", err)
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("invalid DA_RATE_PER_DAY: %s is negative", rate)
	}
	cfg.DARate = rate

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
