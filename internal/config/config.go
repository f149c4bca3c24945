package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Sparql   SparqlConfig
	Cache    CacheConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	SamplerLogFilePath string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtlpEndpoint       string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	JwtSecret  string
	SessionTTL time.Duration
}

type SparqlConfig struct {
	QueryEndpoint  string
	UpdateEndpoint string
	QueryBankPath  string // empty = built-in bank
	PrefixFilePath string // empty = built-in prefixes
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RequestTimeout time.Duration
	MaxAttempts    int
	AgreementRate  float64
}

type CacheConfig struct {
	SessionTTL    time.Duration
	PurgeInterval time.Duration
	CountTTL      time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			SamplerLogFilePath: getEnv("SAMPLER_LOG_FILE_PATH", "sampler.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			OtlpEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JwtSecret:  getEnv("JWT_SECRET", ""),
			SessionTTL: getEnvAsDuration("SESSION_TOKEN_TTL", 24*time.Hour),
		},
		Sparql: SparqlConfig{
			QueryEndpoint:  getEnv("SPARQL_QUERY_ENDPOINT", "http://localhost:3030/annotator/query"),
			UpdateEndpoint: getEnv("SPARQL_UPDATE_ENDPOINT", "http://localhost:3030/annotator/update"),
			QueryBankPath:  getEnv("SPARQL_QUERY_BANK", ""),
			PrefixFilePath: getEnv("SPARQL_PREFIX_FILE", ""),
			ConnectTimeout: getEnvAsDuration("SPARQL_CONNECT_TIMEOUT", time.Second),
			ReadTimeout:    getEnvAsDuration("SPARQL_READ_TIMEOUT", 2*time.Second),
			RequestTimeout: getEnvAsDuration("SPARQL_REQUEST_TIMEOUT", 3*time.Second),
			MaxAttempts:    getEnvAsInt("SAMPLER_MAX_ATTEMPTS", 3),
			AgreementRate:  getEnvAsFloat("SAMPLER_AGREEMENT_WEIGHT", 0.1),
		},
		Cache: CacheConfig{
			SessionTTL:    getEnvAsDuration("SESSION_CACHE_TTL", time.Hour),
			PurgeInterval: getEnvAsDuration("SESSION_CACHE_PURGE_INTERVAL", 10*time.Minute),
			CountTTL:      getEnvAsDuration("ANNOTATION_COUNT_TTL", 30*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("750ms", "2s").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
