// Package config loads process settings from the environment and simulation
// scenarios from JSON files.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings holds the process configuration. Scenario parameters live in the
// scenario file; everything here concerns where results go and how the run
// is observed.
type Settings struct {
	Workers int `env:"GEOPANDEMIC_WORKERS" envDefault:"0"`
	Days    int `env:"GEOPANDEMIC_DAYS"    envDefault:"100"`

	StorageDriver string `env:"GEOPANDEMIC_STORAGE_DRIVER" envDefault:"memory"`
	SQLitePath    string `env:"GEOPANDEMIC_SQLITE_PATH"    envDefault:"./geopandemic.db"`
	PostgresDSN   string `env:"GEOPANDEMIC_POSTGRES_DSN"`

	BlobDriver      string `env:"GEOPANDEMIC_BLOB_DRIVER"        envDefault:"fs"`
	BlobRoot        string `env:"GEOPANDEMIC_BLOB_FS_ROOT"       envDefault:"./artifacts"`
	S3Bucket        string `env:"GEOPANDEMIC_BLOB_S3_BUCKET"`
	S3Region        string `env:"GEOPANDEMIC_BLOB_S3_REGION"     envDefault:"us-east-1"`
	S3Endpoint      string `env:"GEOPANDEMIC_BLOB_S3_ENDPOINT"`
	S3PathStyle     bool   `env:"GEOPANDEMIC_BLOB_S3_PATH_STYLE"`
	S3AccessKeyID   string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretKey     string `env:"AWS_SECRET_ACCESS_KEY"`
	S3SessionToken  string `env:"AWS_SESSION_TOKEN"`

	OTelEndpoint    string        `env:"GEOPANDEMIC_OTEL_ENDPOINT"`
	OTelEnabled     bool          `env:"GEOPANDEMIC_OTEL_ENABLED"          envDefault:"true"`
	OTelShutdown    time.Duration `env:"GEOPANDEMIC_OTEL_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	MetricsAddr     string        `env:"GEOPANDEMIC_METRICS_ADDR"`
	ExportQueueSize int           `env:"GEOPANDEMIC_EXPORT_QUEUE"          envDefault:"16"`
}

// LoadSettings parses Settings from the process environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// LoadSettingsFrom parses Settings from an explicit environment map. Variables
// absent from the map take their defaults.
func LoadSettingsFrom(environment map[string]string) (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: environment}); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}
