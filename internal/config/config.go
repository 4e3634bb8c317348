package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Email     EmailConfig
	Auth      AuthConfig
	Admission AdmissionConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN builds the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

type RedisConfig struct {
	Addr    string
	Enabled bool
}

type KafkaConfig struct {
	Brokers   []string
	ScanTopic string
	Enabled   bool
}

type EmailConfig struct {
	SMTPHost string
	SMTPPort string
	Username string
	Password string
	Sender   string
	Enabled  bool
}

type AuthConfig struct {
	JWTSecret     string
	OIDCIssuer    string
	TokenCacheTTL time.Duration
}

// AdmissionConfig carries the redemption and issuance knobs. It is passed
// explicitly to the services at construction; nothing in the core reads
// process-wide state.
type AdmissionConfig struct {
	PublicBaseURL string

	// Grace extends the admission window past an event's end_at.
	Grace time.Duration

	// Code entropy, in random bytes before encoding.
	ReservationCodeBytes int
	AccessCodeBytes      int
	PublicCodeBytes      int

	// Bounded retries for collision-free code generation.
	ReservationCodeAttempts int
	AccessCodeAttempts      int
	PublicCodeAttempts      int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "admission_user"),
			Password:     getEnv("DB_PASSWORD", "admission_pass"),
			Database:     getEnv("DB_NAME", "admission"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled: getEnvBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers:   []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ScanTopic: getEnv("KAFKA_TOPIC_SCANS", "admission.scans"),
			Enabled:   getEnvBool("KAFKA_ENABLED", true),
		},
		Email: EmailConfig{
			SMTPHost: getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort: getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			Sender:   getEnv("SMTP_SENDER", os.Getenv("SMTP_USERNAME")),
			Enabled:  getEnvBool("SMTP_ENABLED", true),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "change_me"),
			OIDCIssuer:    getEnv("OIDC_ISSUER", ""),
			TokenCacheTTL: time.Duration(getEnvInt("TOKEN_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		Admission: AdmissionConfig{
			PublicBaseURL:           getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			Grace:                   time.Duration(getEnvInt("ADMISSION_GRACE_MINUTES", 0)) * time.Minute,
			ReservationCodeBytes:    getEnvInt("RESERVATION_CODE_BYTES", 16),
			AccessCodeBytes:         getEnvInt("ACCESS_CODE_BYTES", 10),
			PublicCodeBytes:         getEnvInt("PUBLIC_CODE_BYTES", 16),
			ReservationCodeAttempts: getEnvInt("RESERVATION_CODE_ATTEMPTS", 8),
			AccessCodeAttempts:      getEnvInt("ACCESS_CODE_ATTEMPTS", 5),
			PublicCodeAttempts:      getEnvInt("PUBLIC_CODE_ATTEMPTS", 10),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
