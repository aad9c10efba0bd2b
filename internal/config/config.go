package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all process-wide settings. It is loaded exactly once at
// startup and passed by reference into the services that need it; in
// particular the JWT secret must be the same value at token issuance and
// verification, so nothing re-reads the environment per call.
type Config struct {
	AppPort     string
	DatabaseDSN string

	JWTSecret string
	TokenTTL  time.Duration

	RabbitMQURL string

	// BaseURL is the externally reachable address used to build the
	// verification link mailed to new users.
	BaseURL      string
	SenderEmail  string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string

	// AvatarDir holds processed avatars, served statically under /avatars.
	// TmpDir receives raw uploads before they are sniffed and cropped.
	AvatarDir string
	TmpDir    string
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	v := viper.New()
	v.SetDefault("APP_PORT", ":3000")
	v.SetDefault("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=phonebook port=5432 sslmode=disable")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("SENDER_EMAIL", "no-reply@phonebook.local")
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", "1025")
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("AVATAR_DIR", "public/avatars")
	v.SetDefault("TMP_DIR", "tmp")
	v.AutomaticEnv() // Load environment variables

	return &Config{
		AppPort:      v.GetString("APP_PORT"),
		DatabaseDSN:  v.GetString("DATABASE_DSN"),
		JWTSecret:    v.GetString("JWT_SECRET"),
		TokenTTL:     v.GetDuration("TOKEN_TTL"),
		RabbitMQURL:  v.GetString("RABBITMQ_URL"),
		BaseURL:      v.GetString("BASE_URL"),
		SenderEmail:  v.GetString("SENDER_EMAIL"),
		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetString("SMTP_PORT"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		AvatarDir:    v.GetString("AVATAR_DIR"),
		TmpDir:       v.GetString("TMP_DIR"),
	}
}
