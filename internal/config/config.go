package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env            string
	HTTPListenAddr string
	DatabaseURL    string
	BlobStoreDir   string

	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	TranscribeLanguage         string

	MessagingAccountSID string
	MessagingAuthToken  string
	MessagingFromNumber string
	MessagingAPIBaseURL string
	StatusCallbackURL   string
	DefaultCountryCode  string

	StoreTimeout       time.Duration
	TranscribeTimeout  time.Duration
	NotifyTimeout      time.Duration
	SessionIdleTimeout time.Duration
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	for _, d := range c.requiredTimeoutChecks() {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative, got %s", c.SessionIdleTimeout)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

type requiredTimeoutField struct {
	name  string
	value time.Duration
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_LISTEN_ADDR", value: c.HTTPListenAddr},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "BLOB_STORE_DIR", value: c.BlobStoreDir},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
		{name: "MESSAGING_ACCOUNT_SID", value: c.MessagingAccountSID},
		{name: "MESSAGING_AUTH_TOKEN", value: c.MessagingAuthToken},
		{name: "MESSAGING_FROM_NUMBER", value: c.MessagingFromNumber},
	}
}

func (c *Config) requiredTimeoutChecks() []requiredTimeoutField {
	return []requiredTimeoutField{
		{name: "STORE_TIMEOUT", value: c.StoreTimeout},
		{name: "TRANSCRIBE_TIMEOUT", value: c.TranscribeTimeout},
		{name: "NOTIFY_TIMEOUT", value: c.NotifyTimeout},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
