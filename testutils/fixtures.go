package testutils

import (
	"time"

	"github.com/tech-arch1tect/medgate/config"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test App",
			URL:  "http://localhost:8080",
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "console",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Session: config.SessionConfig{
			Enabled:  true,
			Store:    "memory",
			Name:     "medgate_session",
			MaxAge:   24 * time.Hour,
			Path:     "/",
			Secure:   false,
			HttpOnly: true,
			SameSite: "lax",
		},
		TwoFactor: config.TwoFactorConfig{
			Enabled:         true,
			Issuer:          "Test App",
			BackupCodeCount: 10,
		},
		SMSCode: config.SMSCodeConfig{
			CodeLength:     6,
			Expiry:         10 * time.Minute,
			ResendCooldown: 60 * time.Second,
			MaxAttempts:    5,
		},
		SMS: config.SMSConfig{
			Provider: "log",
			From:     "Test App",
		},
		Mail: config.MailConfig{
			Host:        "localhost",
			Port:        1025,
			Encryption:  "none",
			FromAddress: "noreply@example.com",
			FromName:    "Test App",
		},
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			Rate:    10,
			Period:  time.Minute,
			Store:   "memory",
		},
		Challenge: config.ChallengeConfig{
			SecretKey: "test-secret-key-32-chars-long!!",
			Expiry:    5 * time.Minute,
			Issuer:    "test-issuer",
		},
	}
}

var TestPhoneNumbers = struct {
	Valid   string
	Another string
}{
	Valid:   "+447700900123",
	Another: "+447700900456",
}
