package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ais-trajectory/internal/ais"
	"ais-trajectory/internal/logging"
	"ais-trajectory/internal/trajectory"
)

const DefaultSettingsPath = "settings.yaml"

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Settings mirrors settings.yaml.
type Settings struct {
	FileCargo    string   `yaml:"file_cargo"`
	FileTanker   string   `yaml:"file_tanker"`
	LoggingLevel string   `yaml:"logging_level"`
	ShortKm      *float64 `yaml:"short_trajectory_km"`
	LongKm       *float64 `yaml:"long_trajectory_km"`
}

type Config struct {
	Files        map[ais.Category]string
	LogLevel     string
	Thresholds   trajectory.Thresholds
	Source       string
	DatabaseURL  string
	DatabaseName string
	Batch        string
	NATSURL      string // empty disables summary publishing
	NATSSubject  string
	MetricsAddr  string // e.g. ":9102"; empty disables the metrics server
	MetricsFile  string
}

// Load reads the settings file at path, then applies .env and the process
// environment on top of it.
func Load(path string) (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	if path == "" {
		path = DefaultSettingsPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	s, err := ParseSettings(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return FromSettings(s, os.Getenv)
}

func ParseSettings(raw []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// FromSettings builds and validates a Config. getenv supplies the
// environment overrides.
func FromSettings(s Settings, getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Files: map[ais.Category]string{
			ais.Cargo:  strings.TrimSpace(s.FileCargo),
			ais.Tanker: strings.TrimSpace(s.FileTanker),
		},
		LogLevel:     firstNonEmpty(getenv("LOG_LEVEL"), s.LoggingLevel),
		Thresholds:   trajectory.DefaultThresholds(),
		DatabaseURL:  databaseURL(getenv),
		DatabaseName: getenv("AIS_DATABASE"),
		Batch:        strings.TrimSpace(getenv("AIS_BATCH")),
		NATSURL:      strings.TrimSpace(getenv("NATS_URL")),
		NATSSubject:  getenvDefault(getenv, "NATS_SUBJECT_PREFIX", "ais.summary"),
		MetricsAddr:  getenv("METRICS_ADDR"),
		MetricsFile:  getenv("METRICS_TEXTFILE"),
	}
	if s.ShortKm != nil {
		cfg.Thresholds.ShortKm = *s.ShortKm
	}
	if s.LongKm != nil {
		cfg.Thresholds.LongKm = *s.LongKm
	}

	if err := cfg.SetSource(getenvDefault(getenv, "SOURCE", SourceFile)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetSource switches the position source.
func (c *Config) SetSource(source string) error {
	source = strings.ToLower(strings.TrimSpace(source))
	switch source {
	case SourceFile:
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("postgres source needs DATABASE_URL, PG_DSN or PGDATABASE")
		}
	default:
		return fmt.Errorf("invalid SOURCE: %q", source)
	}
	c.Source = source
	return nil
}

func (c *Config) Validate() error {
	if c.Source == SourceFile {
		for _, cat := range ais.Categories() {
			if c.Files[cat] == "" {
				return fmt.Errorf("file_%s must be set", cat)
			}
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	th := c.Thresholds
	for name, v := range map[string]float64{"short_trajectory_km": th.ShortKm, "long_trajectory_km": th.LongKm} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("invalid %s: %v", name, v)
		}
	}
	if th.ShortKm > th.LongKm {
		return fmt.Errorf("short_trajectory_km %v exceeds long_trajectory_km %v", th.ShortKm, th.LongKm)
	}
	return nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds a DSN from PG* vars.
func databaseURL(getenv func(string) string) string {
	if dsn := firstNonEmpty(getenv("DATABASE_URL"), getenv("PG_DSN")); dsn != "" {
		return dsn
	}
	db := getenv("PGDATABASE")
	if db == "" {
		return ""
	}
	host := getenvDefault(getenv, "PGHOST", "127.0.0.1")
	port := getenvDefault(getenv, "PGPORT", "5432")
	user := getenvDefault(getenv, "PGUSER", "postgres")
	pass := getenv("PGPASSWORD")
	sslmode := getenvDefault(getenv, "PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
}

func getenvDefault(getenv func(string) string, k, def string) string {
	if v := getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
