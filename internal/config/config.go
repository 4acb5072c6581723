package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LocalStoreFile   = "file"
	LocalStoreRedis  = "redis"
	LocalStoreMemory = "memory"

	RemoteStoreFirestore = "firestore"
	RemoteStorePostgres  = "postgres"
	RemoteStoreMemory    = "memory"
	RemoteStoreNone      = "none"
)

type Config struct {
	Port            string
	UpstreamTimeout time.Duration
	RemoteTimeout   time.Duration
	SessionIdleTTL  time.Duration

	// Per-device local cart storage.
	LocalStore    string
	LocalStoreDir string
	RedisURL      string
	RedisAddr     string
	RedisPassword string

	// Per-user remote snapshots.
	RemoteStore         string
	CartDBDSN           string
	FirestoreProjectID  string
	FirestoreCredFile   string
	FirestoreCollection string

	RabbitMQURL string
	JWTSecret   string

	// Mercado Pago checkout
	MPAccessToken       string
	MPBaseURL           string
	PublicBaseURL       string
	StatementDescriptor string
	CurrencyID          string

	CORSAllowOrigins []string
}

// Load reads the process environment, after applying a .env file in the
// working directory if there is one. Variables already set win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Port:            getenv("PORT", "8081"),
		UpstreamTimeout: parseDuration(getenv("UPSTREAM_TIMEOUT", "10s"), 10*time.Second),
		RemoteTimeout:   parseDuration(getenv("REMOTE_TIMEOUT", "5s"), 5*time.Second),
		SessionIdleTTL:  parseDuration(getenv("SESSION_IDLE_TTL", "30m"), 30*time.Minute),

		LocalStore:    strings.ToLower(getenv("LOCAL_STORE", LocalStoreFile)),
		LocalStoreDir: getenv("LOCAL_STORE_DIR", "./data/carts"),
		RedisURL:      os.Getenv("REDIS_URL"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		RemoteStore:         strings.ToLower(getenv("REMOTE_STORE", RemoteStoreMemory)),
		CartDBDSN:           os.Getenv("CART_DB_DSN"),
		FirestoreProjectID:  os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCredFile:   os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		FirestoreCollection: getenv("FIRESTORE_COLLECTION", "carts"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		MPAccessToken:       os.Getenv("MP_ACCESS_TOKEN"),
		MPBaseURL:           getenv("MP_BASE_URL", "https://api.mercadopago.com"),
		PublicBaseURL:       getenv("PUBLIC_BASE_URL", "http://localhost:4321"),
		StatementDescriptor: getenv("STATEMENT_DESCRIPTOR", "CervezaArtesana"),
		CurrencyID:          getenv("CURRENCY_ID", "CLP"),

		CORSAllowOrigins: splitCSV(getenv("CORS_ALLOW_ORIGINS", "*")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LocalStore {
	case LocalStoreFile, LocalStoreRedis, LocalStoreMemory:
	default:
		return fmt.Errorf("LOCAL_STORE must be one of file, redis, memory; got %q", c.LocalStore)
	}

	switch c.RemoteStore {
	case RemoteStoreMemory, RemoteStoreNone:
	case RemoteStorePostgres:
		if c.CartDBDSN == "" {
			return errors.New("REMOTE_STORE=postgres requires CART_DB_DSN")
		}
	case RemoteStoreFirestore:
		if c.FirestoreProjectID == "" {
			return errors.New("REMOTE_STORE=firestore requires FIRESTORE_PROJECT_ID")
		}
	default:
		return fmt.Errorf("REMOTE_STORE must be one of firestore, postgres, memory, none; got %q", c.RemoteStore)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
