package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// NCBI-Nutzungsrichtlinie: tool und email werden bei jedem Request mitgeschickt.
	PubMedBaseURL string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedTool    string `envconfig:"PUBMED_TOOL" default:"doctor-pubs"`
	PubMedEmail   string `envconfig:"PUBMED_EMAIL" required:"true"`

	// Maximale Trefferzahl pro Doktor (esearch retmax).
	FetchRetMax int `envconfig:"FETCH_RETMAX" default:"100"`

	// Gültigkeit des Antwort-Caches für esearch+esummary-Paare.
	CacheTTLHours int `envconfig:"CACHE_TTL_HOURS" default:"6"`

	// Timeout pro HTTP-Aufruf gegen die eutils-API. Keine Retries.
	HTTPTimeoutSeconds int `envconfig:"HTTP_TIMEOUT_SECONDS" default:"20"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 6 * * *"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// CacheTTL gibt die Cache-Gültigkeit als Duration zurück.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// HTTPTimeout gibt das Timeout pro eutils-Aufruf als Duration zurück.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
