package notify

import (
	"github.com/carewire/consultscribe/internal/config"
	"github.com/carewire/consultscribe/internal/notify"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (notify.Channel, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewTwilioChannel(TwilioConfig{
			BaseURL:           cfg.MessagingAPIBaseURL,
			AccountSID:        cfg.MessagingAccountSID,
			AuthToken:         cfg.MessagingAuthToken,
			FromNumber:        cfg.MessagingFromNumber,
			StatusCallbackURL: cfg.StatusCallbackURL,
		}), nil
	})
}
