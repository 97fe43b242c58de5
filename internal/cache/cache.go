// Package cache is a content-addressed disk cache for raw API responses.
// Ingest reruns hit the cache instead of refetching from FMP, which keeps the
// pipeline idempotent and cheap to replay.
package cache

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Disk stores entries as files under a root directory, named by the SHA-256
// of their key. Writes go through a temp file and rename so a crashed run
// never leaves a truncated entry behind.
type Disk struct {
	root string
}

// NewDisk creates the cache directory if needed.
func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create dir %s", root)
	}
	return &Disk{root: root}, nil
}

// Key derives a stable cache key from an endpoint and its parameters. Params
// are sorted by name so map iteration order cannot change the key. Callers
// must exclude credentials from params.
func Key(endpoint string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for n := range params {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, n := range names {
		b.WriteByte('|')
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(params[n])
	}
	h := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", h)
}

// Get returns the cached bytes for key, or (nil, false) on a miss.
func (d *Disk) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, false
	}
	zap.L().Debug("cache hit", zap.String("key", shortKey(key)))
	return data, true
}

// Put stores data under key, replacing any existing entry.
func (d *Disk) Put(key string, data []byte) error {
	tmp, err := os.CreateTemp(d.root, "entry-*")
	if err != nil {
		return eris.Wrap(err, "cache: create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "cache: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "cache: close temp file")
	}
	if err := os.Rename(tmp.Name(), d.path(key)); err != nil {
		return eris.Wrapf(err, "cache: commit entry %s", shortKey(key))
	}
	return nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.root, key+".json")
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
