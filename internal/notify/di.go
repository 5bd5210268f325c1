package notify

import (
	"github.com/carewire/consultscribe/internal/config"
	"github.com/carewire/consultscribe/internal/metrics"
	"github.com/carewire/consultscribe/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Dispatcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		channel := do.MustInvoke[Channel](i)
		repo := do.MustInvoke[repository.Repository](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewDispatcher(channel, repo, m, cfg.DefaultCountryCode), nil
	})
	do.Provide(injector, func(i do.Injector) (*Reconciler, error) {
		repo := do.MustInvoke[repository.Repository](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewReconciler(repo, m), nil
	})
}
