package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"tesla-finder/services"
)

// DefaultSourceURLs are the UAE marketplaces searched when SOURCE_URLS is unset.
var DefaultSourceURLs = []string{
	"https://dubai.dubizzle.com/motors/used-cars/tesla/?sorting=price_asc&year__gte=2021&year__lte=2026&regional_specs=824",
	"https://carswitch.com/uae/used-cars/search?make=tesla&minyear=2021&maxyear=2025&sort=price_low_high",
	"https://www.kavak.com/ae/preowned?year=2021,2022,2023,2024&keyword=tesla&order=lower_price&page=0",
}

// Extractor backends.
const (
	ExtractorBrowser = "browser"
	ExtractorStatic  = "static"
	ExtractorService = "service"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SourceURLs      []string `validate:"dive,url"`
	TopLimit        int      `validate:"gte=1"`
	DefaultCurrency string   `validate:"len=3,uppercase"`
	BareMileageUnit string   `validate:"oneof=km mi"`
	ModelVocabulary []string `validate:"min=1,dive,required"`

	MaxConcurrency int           `validate:"gte=1"`
	RateLimitMs    int           `validate:"gte=0"`
	MaxRetries     int           `validate:"gte=1"`
	FetchTimeout   time.Duration `validate:"gt=0"`

	Extractor            string `validate:"oneof=browser static service"`
	ExtractionServiceURL string `validate:"omitempty,url"`
	SummarizerURL        string `validate:"omitempty,url"`
	ChromeBin            string

	JSONOutputPath string `validate:"required"`
	HTMLOutputPath string `validate:"required"`
	CSVOutputPath  string
	CacheDBPath    string
	CacheTTL       time.Duration `validate:"gte=0"`

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	NATSUrl     string `validate:"omitempty,url"`
	NATSSubject string `validate:"required_with=NATSUrl"`

	MetricsTextfile string
	LogLevel        string `validate:"oneof=debug info"`
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		SourceURLs:      getEnvList("SOURCE_URLS", DefaultSourceURLs),
		TopLimit:        getEnvInt("TOP_LIMIT", services.DefaultTopLimit),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "AED")),
		BareMileageUnit: strings.ToLower(getEnv("BARE_MILEAGE_UNIT", string(services.UnitKilometers))),
		ModelVocabulary: getEnvList("MODEL_VOCABULARY", services.DefaultModelVocabulary),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 120*time.Second),

		Extractor:            strings.ToLower(getEnv("EXTRACTOR", ExtractorBrowser)),
		ExtractionServiceURL: getEnv("EXTRACTION_SERVICE_URL", ""),
		SummarizerURL:        getEnv("SUMMARIZER_URL", ""),
		ChromeBin:            getEnv("CHROME_BIN", ""),

		JSONOutputPath: getEnv("JSON_OUTPUT_PATH", "./public/listings.json"),
		HTMLOutputPath: getEnv("HTML_OUTPUT_PATH", "./public/index.html"),
		CSVOutputPath:  getEnv("CSV_OUTPUT_PATH", "./output/raw_listings.csv"),
		CacheDBPath:    getEnv("CACHE_DB_PATH", ""),
		CacheTTL:       getEnvDuration("CACHE_TTL", 6*time.Hour),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "tesla"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "tesla123"),
		PostgresDB:       getEnv("POSTGRES_DB", "tesla_finder"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		NATSUrl:     getEnv("NATS_URL", ""),
		NATSSubject: getEnv("NATS_SUBJECT", "tesla.digest.completed"),

		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// Validate checks the loaded values against their struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Extractor == ExtractorService && c.ExtractionServiceURL == "" {
		return fmt.Errorf("config: EXTRACTION_SERVICE_URL is required when EXTRACTOR=%s", ExtractorService)
	}
	return nil
}

// Normalization returns the parser policy for this configuration.
func (c *Config) Normalization() services.NormalizeOptions {
	opts := services.DefaultNormalizeOptions()
	opts.DefaultCurrency = c.DefaultCurrency
	opts.BareMileageUnit = services.MileageUnit(c.BareMileageUnit)
	return opts
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		out := make([]string, len(fallback))
		copy(out, fallback)
		return out
	}
	return SplitList(val)
}

// SplitList splits a comma-separated value. URLs that contain commas in
// their query string must be separated with '|' instead.
func SplitList(val string) []string {
	sep := ","
	if strings.Contains(val, "|") {
		sep = "|"
	}
	var out []string
	for _, part := range strings.Split(val, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
