package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const CredentialEnv = "ALPHA_VANTAGE_KEY"

type ErrorKind string

const KindMissingCredential ErrorKind = "missing_credential"

// ErrMissingCredential matches any *Error of KindMissingCredential via errors.Is.
var ErrMissingCredential = &Error{Kind: KindMissingCredential}

// Error is a fatal startup configuration problem.
type Error struct {
	Kind ErrorKind
	Key  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingCredential:
		return fmt.Sprintf("config: %s is required", e.Key)
	default:
		return fmt.Sprintf("config: %s (%s)", e.Kind, e.Key)
	}
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

type Config struct {
	// Secrets (from .env)
	AlphaVantageKey string
	WebhookURL      string
	BotName         string
	APIKey          string
	CORSAllowOrigin string

	// Source
	BaseURL               string
	Function              string
	Interval              string
	Currency              string
	Unit                  string
	RequestTimeoutSeconds int

	// Storage
	DataDir  string
	DataFile string

	// Database mirror
	DBEnabled  bool
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Timing
	ExtractionIntervalHours int

	APIPort int
}

// Load resolves configuration from the process environment, falling back to
// the optional KEY=VALUE file at envFile. A key set in the environment wins
// over the file. A missing file is not an error. The process environment is
// never modified.
func Load(envFile string) (*Config, error) {
	fileVals := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVals = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	e := env{file: fileVals}

	cfg := &Config{
		AlphaVantageKey: e.str(CredentialEnv, ""),
		WebhookURL:      e.str("WEBHOOK_URL", ""),
		BotName:         e.str("BOT_NAME", "BrentExtractor"),
		APIKey:          e.str("API_KEY", ""),
		CORSAllowOrigin: e.str("CORS_ALLOW_ORIGIN", "*"),

		BaseURL:               e.str("ALPHA_VANTAGE_URL", "https://www.alphavantage.co/query"),
		Function:              e.str("ALPHA_VANTAGE_FUNCTION", "BRENT"),
		Interval:              e.str("ALPHA_VANTAGE_INTERVAL", "daily"),
		Currency:              e.str("PRICE_CURRENCY", "USD"),
		Unit:                  e.str("PRICE_UNIT", "barrel"),
		RequestTimeoutSeconds: e.num("REQUEST_TIMEOUT_SECONDS", 10),

		DataDir:  e.str("DATA_DIR", "data"),
		DataFile: e.str("DATA_FILE", "daily_oil_prices.csv"),

		DBEnabled:  e.flag("DB_ENABLED", false),
		DBHost:     e.str("DB_HOST", "localhost"),
		DBPort:     e.num("DB_PORT", 5432),
		DBName:     e.str("DB_NAME", "brent_prices"),
		DBUser:     e.str("DB_USER", ""),
		DBPassword: e.str("DB_PASSWORD", ""),

		ExtractionIntervalHours: e.num("EXTRACTION_INTERVAL_HOURS", 240),

		APIPort: e.num("API_PORT", 3001),
	}

	return cfg, nil
}

// Validate reports a missing credential as a *Error. Everything else has a
// usable default.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AlphaVantageKey) == "" {
		return &Error{Kind: KindMissingCredential, Key: CredentialEnv}
	}
	if c.RequestTimeoutSeconds <= 0 {
		fmt.Println("[WARN] REQUEST_TIMEOUT_SECONDS <= 0 - using 10s")
		c.RequestTimeoutSeconds = 10
	}
	if c.ExtractionIntervalHours <= 0 {
		fmt.Println("[WARN] EXTRACTION_INTERVAL_HOURS <= 0 - using 240h")
		c.ExtractionIntervalHours = 240
	}
	if c.WebhookURL == "" {
		fmt.Println("[WARN] WEBHOOK_URL not set - status goes to stdout only")
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Brent Daily Price Extractor ===")
	fmt.Printf("Source: %s (function=%s interval=%s)\n", c.BaseURL, c.Function, c.Interval)
	fmt.Printf("API key: %s\n", mask(c.AlphaVantageKey))
	fmt.Printf("Request timeout: %s\n", c.RequestTimeout())
	fmt.Printf("Store: %s\n", c.StorePath())
	fmt.Printf("Interval: %s\n", c.RunInterval())
	fmt.Printf("Postgres mirror: %s\n", boolLabel(c.DBEnabled, fmt.Sprintf("%s:%d/%s", c.DBHost, c.DBPort, c.DBName), "disabled"))
	fmt.Println("===================================")
}

func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, c.DataFile)
}

func (c *Config) RunInterval() time.Duration {
	return time.Duration(c.ExtractionIntervalHours) * time.Hour
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

type env struct {
	file map[string]string
}

func (e env) lookup(key string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return e.file[key]
}

func (e env) str(key, fallback string) string {
	if v := e.lookup(key); v != "" {
		return v
	}
	return fallback
}

func (e env) num(key string, fallback int) int {
	if v := e.lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (e env) flag(key string, fallback bool) bool {
	if v := e.lookup(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func mask(secret string) string {
	if secret == "" {
		return "not set"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + "..." + secret[len(secret)-2:]
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
