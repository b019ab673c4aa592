// Package jsonstore persists JSON documents on a local filesystem. Writers
// hold an exclusive flock for the whole read-modify-write cycle and replace
// the document atomically; readers take a shared lock only while reading the
// bytes and are served from an mtime-keyed cache otherwise.
//
// Locks are advisory and taken on a sidecar "<path>.lock" file, so the
// guarantees hold across goroutines and processes sharing a local POSIX
// filesystem but not across network filesystems or hosts.
package jsonstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio"

	"github.com/donaldgifford/restock-tracker/internal/metrics"
)

// Store is a single JSON document of type T.
type Store[T any] struct {
	path     string
	lockPath string
	name     string
	def      func() T
	cache    *Cache
	log      *slog.Logger
	perm     os.FileMode
}

type options struct {
	cache *Cache
	log   *slog.Logger
	perm  os.FileMode
}

// Option configures a Store.
type Option func(*options)

// WithCache injects the read cache. Stores sharing a cache share its
// capacity.
func WithCache(c *Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithPerm sets the file mode of written documents.
func WithPerm(perm os.FileMode) Option {
	return func(o *options) {
		o.perm = perm
	}
}

// New creates a store for the document at path. def builds the value used
// when the document is absent or cannot be parsed.
func New[T any](path string, def func() T, opts ...Option) *Store[T] {
	o := options{
		cache: defaultCache,
		log:   slog.Default(),
		perm:  0o644,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store[T]{
		path:     path,
		lockPath: path + ".lock",
		name:     filepath.Base(path),
		def:      def,
		cache:    o.cache,
		log:      o.log,
		perm:     o.perm,
	}
}

// Path returns the document path.
func (s *Store[T]) Path() string {
	return s.path
}

// Read returns an independent copy of the document. Mutating the result
// never affects other readers.
func (s *Store[T]) Read() (T, error) {
	e, ok, err := s.cached()
	if err != nil || !ok {
		return s.def(), err
	}

	var v T
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return s.def(), fmt.Errorf("decoding cached %s: %w", s.name, err)
	}
	return v, nil
}

// Snapshot returns the cached value itself. Callers must treat it as
// read-only.
func (s *Store[T]) Snapshot() (T, error) {
	e, ok, err := s.cached()
	if err != nil || !ok {
		return s.def(), err
	}
	return e.value.(T), nil //nolint:forcetypeassert // only this Store writes entries for its path
}

// Update runs fn on the current document while holding the exclusive lock.
// When fn returns nil the result is written to a temp file, synced and
// renamed over the document. When fn returns an error or panics the
// document is left untouched and the error is returned as-is.
func (s *Store[T]) Update(fn func(v *T) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", s.name, err)
	}

	lock := flock.New(s.lockPath)
	start := time.Now()
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring exclusive lock on %s: %w", s.name, err)
	}
	metrics.StoreLockWait.WithLabelValues(s.name).Observe(time.Since(start).Seconds())

	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			s.log.Error("releasing lock", "document", s.name, "error", unlockErr)
			if err == nil {
				err = fmt.Errorf("releasing lock on %s: %w", s.name, unlockErr)
			}
		}
	}()

	v, err := s.load()
	if err != nil {
		return err
	}

	if err := fn(&v); err != nil {
		return err
	}

	if err := s.write(v); err != nil {
		return fmt.Errorf("writing %s: %w", s.name, err)
	}

	s.cache.Invalidate(s.path)
	return nil
}

// load reads the document without the cache. The caller holds the lock.
func (s *Store[T]) load() (T, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.def(), nil
	}
	if err != nil {
		return s.def(), fmt.Errorf("reading %s: %w", s.name, err)
	}

	v, ok := s.decode(raw)
	if !ok {
		return s.def(), nil
	}
	return v, nil
}

func (s *Store[T]) decode(raw []byte) (T, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		s.log.Warn("document is empty, using default", "document", s.name)
		metrics.StoreCorruptReadsTotal.WithLabelValues(s.name).Inc()
		return s.def(), false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn("document is corrupt, using default", "document", s.name, "error", err)
		metrics.StoreCorruptReadsTotal.WithLabelValues(s.name).Inc()
		return s.def(), false
	}
	return v, true
}

// cached returns the cache entry for the current on-disk version, loading
// it under a shared lock on a miss. ok is false when the default applies.
func (s *Store[T]) cached() (cacheEntry, bool, error) {
	fi, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cacheEntry{}, false, nil
	}
	if err != nil {
		return cacheEntry{}, false, fmt.Errorf("stat %s: %w", s.name, err)
	}

	if e, ok := s.cache.get(s.path, fileVersion(fi)); ok {
		metrics.StoreCacheHitsTotal.Inc()
		return e, true, nil
	}

	raw, ver, err := s.readShared()
	if errors.Is(err, fs.ErrNotExist) {
		return cacheEntry{}, false, nil
	}
	if err != nil {
		return cacheEntry{}, false, err
	}

	v, ok := s.decode(raw)
	if !ok {
		return cacheEntry{}, false, nil
	}

	e := cacheEntry{version: ver, raw: raw, value: v}
	s.cache.put(s.path, e)
	return e, true, nil
}

// readShared reads the document bytes under a shared lock and reports the
// version of the file descriptor actually read.
func (s *Store[T]) readShared() ([]byte, version, error) {
	lock := flock.New(s.lockPath)
	if err := lock.RLock(); err != nil {
		return nil, version{}, fmt.Errorf("acquiring shared lock on %s: %w", s.name, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.log.Error("releasing shared lock", "document", s.name, "error", err)
		}
	}()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, version{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, version{}, fmt.Errorf("stat %s: %w", s.name, err)
	}

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, version{}, fmt.Errorf("reading %s: %w", s.name, err)
	}
	return raw, fileVersion(fi), nil
}

func (s *Store[T]) write(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	data = append(data, '\n')

	pf, err := renameio.TempFile(filepath.Dir(s.path), s.path)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if err := pf.Chmod(s.perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if _, err := pf.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	// CloseAtomicallyReplace syncs before the rename.
	return pf.CloseAtomicallyReplace()
}
