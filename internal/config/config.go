package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	Port         string
	DBHost       string
	DBPort       string
	DBUsername   string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	MailDomain   string
	IMAPWatch    bool
	IMAPAddr     string
	IMAPUser     string
	IMAPPass     string
	Timezone     string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("WEBMAIL_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:  env,
		Port:         getEnvOrDefault("PORT", "8080"),
		DBHost:       getEnvOrDefault("WEBMAIL_DB_HOST", "localhost"),
		DBPort:       getEnvOrDefault("WEBMAIL_DB_PORT", "5432"),
		DBUsername:   getEnvOrDefault("WEBMAIL_DB_USER", "webmail"),
		DBPassword:   os.Getenv("WEBMAIL_DB_PASSWORD"),
		DBName:       getEnvOrDefault("WEBMAIL_DB_NAME", "webmail"),
		DBSSLMode:    getEnvOrDefault("WEBMAIL_DB_SSLMODE", "disable"),
		SMTPHost:     getEnvOrDefault("WEBMAIL_SMTP_HOST", "localhost"),
		SMTPPort:     getEnvOrDefault("WEBMAIL_SMTP_PORT", "25"),
		SMTPUsername: os.Getenv("WEBMAIL_SMTP_USER"),
		SMTPPassword: os.Getenv("WEBMAIL_SMTP_PASSWORD"),
		MailDomain:   getEnvOrDefault("WEBMAIL_MAIL_DOMAIN", "abysfin.com"),
		IMAPWatch:    os.Getenv("WEBMAIL_IMAP_WATCH") == "true",
		IMAPAddr:     getEnvOrDefault("WEBMAIL_IMAP_ADDR", "localhost:993"),
		IMAPUser:     os.Getenv("WEBMAIL_IMAP_USER"),
		IMAPPass:     os.Getenv("WEBMAIL_IMAP_PASSWORD"),
		Timezone:     getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("WEBMAIL_DB_PASSWORD is required")
	}

	if c.IMAPWatch && (c.IMAPUser == "" || c.IMAPPass == "") {
		return fmt.Errorf("WEBMAIL_IMAP_USER and WEBMAIL_IMAP_PASSWORD are required when WEBMAIL_IMAP_WATCH is enabled")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// GetSMTPAddress returns the host:port address of the outbound mail relay.
func (c *Config) GetSMTPAddress() string {
	return c.SMTPHost + ":" + c.SMTPPort
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
