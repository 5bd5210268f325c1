package blobstore

import (
	"github.com/carewire/consultscribe/internal/blobstore"
	"github.com/carewire/consultscribe/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (blobstore.Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewFSStore(cfg.BlobStoreDir)
	})
}
