package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds every runtime setting. It is built once in main and
// passed into components; nothing reads the environment after startup.
type AppConfig struct {
	// Default city, forecast window and timezone for commands that do not
	// override them.
	City     string
	Days     int
	Timezone string

	// Data directories.
	RawDir       string
	ProcessedDir string
	SampleDir    string
	ReportDir    string
	TemplateDir  string

	// Outbound HTTP client timeout.
	HTTPTimeout time.Duration

	// Fun-fact generation.
	GeminiAPIKey string
	GeminiModel  string
	FunFactTTL   time.Duration

	// Serve mode.
	Port            string
	RefreshInterval time.Duration
	RefreshCities   []string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		City:         getenvDefault("ETL_CITY", "Bandung"),
		Days:         getenvInt("ETL_DAYS", 7),
		Timezone:     getenvDefault("ETL_TIMEZONE", "Asia/Jakarta"),
		RawDir:       getenvDefault("ETL_RAW_DIR", "data/raw"),
		ProcessedDir: getenvDefault("ETL_PROCESSED_DIR", "data/processed"),
		SampleDir:    getenvDefault("ETL_SAMPLE_DIR", "data/samples"),
		ReportDir:    getenvDefault("ETL_REPORT_DIR", "reports"),
		TemplateDir:  getenvDefault("ETL_TEMPLATE_DIR", "templates"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getenvDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		Port:         getenvDefault("PORT", "8080"),
	}

	if cfg.Days < 1 || cfg.Days > 16 {
		return nil, fmt.Errorf("ETL_DAYS must be between 1 and 16, got %d", cfg.Days)
	}

	timeout, err := parseDuration("ETL_HTTP_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout = timeout

	ttl, err := parseDuration("FUNFACT_TTL", "6h")
	if err != nil {
		return nil, err
	}
	cfg.FunFactTTL = ttl

	// Background refresh is enabled only when both an interval and at
	// least one city are configured.
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
		}
		cfg.RefreshInterval = interval
	}
	if v := os.Getenv("REFRESH_CITIES"); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cfg.RefreshCities = append(cfg.RefreshCities, c)
			}
		}
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
