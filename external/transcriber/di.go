package transcriber

import (
	"context"
	"time"

	"github.com/carewire/consultscribe/internal/config"
	"github.com/carewire/consultscribe/internal/transcriber"
	"github.com/samber/do/v2"
)

const speechClientInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), speechClientInitTimeout)
		defer cancel()
		return NewCloudSpeechTranscriber(ctx, CloudSpeechConfig{
			ProjectID:       cfg.GoogleCloudProjectID,
			CredentialsJSON: cfg.GoogleCloudCredentialsJSON,
			Language:        cfg.TranscribeLanguage,
			Location:        cfg.GoogleCloudSpeechLocation,
			Model:           cfg.GoogleCloudSpeechModel,
		})
	})
}
