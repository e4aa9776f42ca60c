package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName      string `env:"AUTH_APP_NAME" envDefault:"devtrack-api"`
	AppEnv       string `env:"AUTH_APP_ENV" envDefault:"local"`
	HTTPHost     string `env:"AUTH_HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort     string `env:"AUTH_HTTP_PORT" envDefault:"8080"`
	HTTPBasePath string `env:"AUTH_HTTP_BASE_PATH" envDefault:"/api/v1"`

	DBHost     string `env:"AUTH_DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"AUTH_DB_PORT" envDefault:"5432"`
	DBUser     string `env:"AUTH_DB_USER" envDefault:"app"`
	DBPassword string `env:"AUTH_DB_PASSWORD" envDefault:"app_password"`
	DBName     string `env:"AUTH_DB_NAME" envDefault:"devtrack"`
	DBSSLMode  string `env:"AUTH_DB_SSLMODE" envDefault:"disable"`

	JWTSecret  string        `env:"AUTH_JWT_SECRET"`
	AccessTTL  time.Duration `env:"AUTH_JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"AUTH_JWT_REFRESH_TTL" envDefault:"168h"`

	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"12"`

	SessionTTL   time.Duration `env:"AUTH_SESSION_TTL" envDefault:"168h"`
	SessionSweep time.Duration `env:"AUTH_SESSION_SWEEP_INTERVAL" envDefault:"1h"`

	NATSURL                   string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSVerifySubject         string `env:"NATS_SUBJECT_VERIFY_JWT" envDefault:"auth.verifyJWT"`
	NATSSessionRevokedSubject string `env:"NATS_SUBJECT_SESSION_REVOKED" envDefault:"auth.session-revoked"`

	MailAPIURL    string `env:"MAIL_API_URL" envDefault:"https://api.useplunk.com/v1/send"`
	MailAPIKey    string `env:"MAIL_API_KEY"`
	MailFrom      string `env:"MAIL_FROM" envDefault:"no-reply@devtrack.dev"`
	MailEnabled   bool   `env:"MAIL_ENABLED" envDefault:"false"`
	PublicBaseURL string `env:"AUTH_PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
