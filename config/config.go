package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"MEDGATE_APP_"`
	Log       LogConfig       `envPrefix:"MEDGATE_LOG_"`
	Database  DatabaseConfig  `envPrefix:"MEDGATE_DATABASE_"`
	Session   SessionConfig   `envPrefix:"MEDGATE_SESSION_"`
	TwoFactor TwoFactorConfig `envPrefix:"MEDGATE_TWOFACTOR_"`
	SMSCode   SMSCodeConfig   `envPrefix:"MEDGATE_SMSCODE_"`
	SMS       SMSConfig       `envPrefix:"MEDGATE_SMS_"`
	Mail      MailConfig      `envPrefix:"MEDGATE_MAIL_"`
	Challenge ChallengeConfig `envPrefix:"MEDGATE_CHALLENGE_"`
	RateLimit RateLimitConfig `envPrefix:"MEDGATE_RATELIMIT_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"medgate"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"medgate.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type SessionConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Store    string        `env:"STORE" envDefault:"memory"`
	Name     string        `env:"NAME" envDefault:"medgate_session"`
	MaxAge   time.Duration `env:"MAX_AGE" envDefault:"24h"`
	Path     string        `env:"PATH" envDefault:"/"`
	Domain   string        `env:"DOMAIN"`
	Secure   bool          `env:"SECURE" envDefault:"true"`
	HttpOnly bool          `env:"HTTP_ONLY" envDefault:"true"`
	SameSite string        `env:"SAME_SITE" envDefault:"lax"`
}

type TwoFactorConfig struct {
	Enabled         bool   `env:"ENABLED" envDefault:"true"`
	Issuer          string `env:"ISSUER"`
	BackupCodeCount int    `env:"BACKUP_CODE_COUNT" envDefault:"10"`
}

type SMSCodeConfig struct {
	CodeLength     int           `env:"CODE_LENGTH" envDefault:"6"`
	Expiry         time.Duration `env:"EXPIRY" envDefault:"10m"`
	ResendCooldown time.Duration `env:"RESEND_COOLDOWN" envDefault:"60s"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"5"`
}

type SMSConfig struct {
	Provider   string `env:"PROVIDER" envDefault:"log"`
	GatewayURL string `env:"GATEWAY_URL"`
	APIKey     string `env:"API_KEY"`
	From       string `env:"FROM"`
}

type MailConfig struct {
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME"`
}

type RateLimitConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	Rate    int           `env:"RATE" envDefault:"10"`
	Period  time.Duration `env:"PERIOD" envDefault:"1m"`
	Store   string        `env:"STORE" envDefault:"memory"`
}

type ChallengeConfig struct {
	SecretKey string        `env:"SECRET_KEY"`
	Expiry    time.Duration `env:"EXPIRY" envDefault:"5m"`
	Issuer    string        `env:"ISSUER" envDefault:"medgate"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
