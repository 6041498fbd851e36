// internal/adapters/out/localstore/kv.go
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// KV is a durable per-installation string key/value slot backed by a single
// JSON file, the equivalent of browser localStorage. Synchronous; every write
// persists the whole map.
type KV struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

// Open loads the slot at path. A missing file yields an empty slot; a corrupt
// file is treated as empty as well, matching localStorage read behavior.
func Open(path string) (*KV, error) {
	if path == "" {
		return nil, fmt.Errorf("localstore: path is empty")
	}

	kv := &KV{path: path, data: map[string]string{}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kv, nil
		}
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}

	var data map[string]string
	if err := json.Unmarshal(raw, &data); err == nil && data != nil {
		kv.data = data
	}
	return kv, nil
}

func (kv *KV) GetItem(key string) (string, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	return v, ok
}

func (kv *KV) SetItem(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return kv.flushLocked()
}

func (kv *KV) RemoveItem(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.data[key]; !ok {
		return nil
	}
	delete(kv.data, key)
	return kv.flushLocked()
}

func (kv *KV) flushLocked() error {
	if dir := filepath.Dir(kv.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("localstore: mkdir %s: %w", dir, err)
		}
	}

	raw, err := json.Marshal(kv.data)
	if err != nil {
		return fmt.Errorf("localstore: encode: %w", err)
	}
	if err := os.WriteFile(kv.path, raw, 0o644); err != nil {
		return fmt.Errorf("localstore: write %s: %w", kv.path, err)
	}
	return nil
}
