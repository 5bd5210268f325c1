package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/carewire/consultscribe/internal/config"
)

type envConfig struct {
	Env            string `env:"ENV" envDefault:"production"`
	HTTPListenAddr string `env:"HTTP_LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL    string `env:"DATABASE_URL,required"`
	BlobStoreDir   string `env:"BLOB_STORE_DIR" envDefault:"/var/lib/consultscribe/chunks"`

	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"asia-south1"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	TranscribeLanguage         string `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-IN"`

	MessagingAccountSID string `env:"MESSAGING_ACCOUNT_SID,required"`
	MessagingAuthToken  string `env:"MESSAGING_AUTH_TOKEN,required"`
	MessagingFromNumber string `env:"MESSAGING_FROM_NUMBER,required"`
	MessagingAPIBaseURL string `env:"MESSAGING_API_BASE_URL" envDefault:"https://api.twilio.com"`
	StatusCallbackURL   string `env:"STATUS_CALLBACK_URL"`
	DefaultCountryCode  string `env:"DEFAULT_COUNTRY_CODE" envDefault:"+91"`

	StoreTimeout       time.Duration `env:"STORE_TIMEOUT" envDefault:"10s"`
	TranscribeTimeout  time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"30s"`
	NotifyTimeout      time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"15s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"0"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPListenAddr:             raw.HTTPListenAddr,
		DatabaseURL:                raw.DatabaseURL,
		BlobStoreDir:               raw.BlobStoreDir,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		TranscribeLanguage:         raw.TranscribeLanguage,
		MessagingAccountSID:        raw.MessagingAccountSID,
		MessagingAuthToken:         raw.MessagingAuthToken,
		MessagingFromNumber:        raw.MessagingFromNumber,
		MessagingAPIBaseURL:        raw.MessagingAPIBaseURL,
		StatusCallbackURL:          raw.StatusCallbackURL,
		DefaultCountryCode:         raw.DefaultCountryCode,
		StoreTimeout:               raw.StoreTimeout,
		TranscribeTimeout:          raw.TranscribeTimeout,
		NotifyTimeout:              raw.NotifyTimeout,
		SessionIdleTimeout:         raw.SessionIdleTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
