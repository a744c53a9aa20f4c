package vaultfs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soryel/vaultsearch/internal/config"
)

// Provider is a read-only view of a note vault. Paths are vault-relative,
// slash-separated, and stable across runs so they can key the index.
type Provider interface {
	// List enumerates every file under the vault root. It fails if the
	// root itself is unreachable; per-file problems surface on Read.
	List(ctx context.Context) ([]FileMeta, error)
	// Read returns the raw bytes of one vault-relative path.
	Read(ctx context.Context, path string) ([]byte, error)
}

type FileMeta struct {
	Path    string
	Size    int64
	ModTime time.Time
}

type Factory func(args interface{}) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.VaultStoreConfig) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vault.store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vault store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
