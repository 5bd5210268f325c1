package blobstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carewire/consultscribe/internal/blobstore"
)

// FSStore keeps chunk payloads on the local filesystem, one directory per
// session. The locator embeds the zero-padded sequence plus a random
// disambiguator, so a retried write never clobbers an earlier object.
type FSStore struct {
	root string
}

func NewFSStore(root string) (blobstore.Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob store root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Put(ctx context.Context, sessionID string, sequence int, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", blobstore.ErrStorageUnavailable, err)
	}

	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", blobstore.ErrStorageUnavailable, err)
	}

	suffix, err := randomSuffix()
	if err != nil {
		return "", fmt.Errorf("%w: %v", blobstore.ErrStorageUnavailable, err)
	}
	locator := filepath.Join(dir, fmt.Sprintf("chunk-%06d-%s.bin", sequence, suffix))
	if err := os.WriteFile(locator, data, 0o600); err != nil {
		return "", fmt.Errorf("%w: %v", blobstore.ErrStorageUnavailable, err)
	}
	return locator, nil
}

func randomSuffix() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
