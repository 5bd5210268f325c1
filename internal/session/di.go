package session

import (
	"github.com/carewire/consultscribe/internal/blobstore"
	"github.com/carewire/consultscribe/internal/config"
	"github.com/carewire/consultscribe/internal/metrics"
	"github.com/carewire/consultscribe/internal/notify"
	"github.com/carewire/consultscribe/internal/repository"
	"github.com/carewire/consultscribe/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		blobs := do.MustInvoke[blobstore.Store](i)
		stt := do.MustInvoke[transcriber.Transcriber](i)
		dispatcher := do.MustInvoke[*notify.Dispatcher](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewManager(cfg, repo, blobs, stt, dispatcher, m), nil
	})
}
