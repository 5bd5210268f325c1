package gateway

import (
	"github.com/carewire/consultscribe/internal/config"
	"github.com/carewire/consultscribe/internal/notify"
	"github.com/carewire/consultscribe/internal/repository"
	"github.com/carewire/consultscribe/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*session.Manager](i)
		reconciler := do.MustInvoke[*notify.Reconciler](i)
		repo := do.MustInvoke[repository.Repository](i)
		return New(cfg, manager, reconciler, repo), nil
	})
}
