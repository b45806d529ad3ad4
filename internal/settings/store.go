package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ciabot/redactor/internal/metrics"
)

// saveTimeout bounds a single backend write.
const saveTimeout = 10 * time.Second

// Store guards the process-wide Configuration. Readers take a snapshot under
// the read lock; writers are serialized on writeMu, persist the new
// configuration and only then make it visible. A failed save therefore leaves
// the previous configuration in effect. mu is held only to swap cur, never
// across backend I/O.
type Store struct {
	backend Backend

	writeMu sync.Mutex // serializes Load, Reload and every mutation

	mu  sync.RWMutex
	cur Configuration
}

// NewStore creates a store holding the defaults. Call Load to read the
// persisted document.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend, cur: Defaults()}
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Clone()
}

// Load reads the persisted document and installs it. It fails soft: when the
// document is missing or cannot be decoded the defaults are installed and the
// cause is returned for the caller to act on (ErrNotFound when nothing was
// persisted yet).
func (s *Store) Load(ctx context.Context) (Configuration, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cfg, err := s.read(ctx)
	if err != nil {
		cfg = Defaults()
	}
	s.install(cfg.Clone())
	return cfg, err
}

// Reload re-reads the persisted document. Unlike Load, a failed read keeps
// the configuration currently in effect.
func (s *Store) Reload(ctx context.Context) (Configuration, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cfg, err := s.read(ctx)
	if err != nil {
		return s.Snapshot(), err
	}
	s.install(cfg.Clone())
	log.Printf("[settings] reloaded from backend")
	return cfg, nil
}

// Save persists cfg in full and installs it.
func (s *Store) Save(ctx context.Context, cfg Configuration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.persist(ctx, cfg); err != nil {
		return err
	}
	s.install(cfg.Clone())
	return nil
}

// Update applies fn to a copy of the current configuration, persists the
// result and installs it. If fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, fn func(*Configuration) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.Snapshot()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.install(next)
	return nil
}

func (s *Store) install(cfg Configuration) {
	s.mu.Lock()
	s.cur = cfg
	s.mu.Unlock()
}

// Get returns the current value stored under key. Set fields are returned as
// sorted []string.
func (s *Store) Get(key string) (any, error) {
	f, err := lookup(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.value(&s.cur), nil
}

// SetField overwrites the field addressed by key and saves.
func (s *Store) SetField(ctx context.Context, key string, value any) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}
	return s.Update(ctx, func(c *Configuration) error {
		return f.assign(c, key, value)
	})
}

// AddToSet merges elems into the set field addressed by key and saves.
func (s *Store) AddToSet(ctx context.Context, key string, elems ...string) error {
	f, err := setField(key, elems)
	if err != nil {
		return err
	}
	return s.Update(ctx, func(c *Configuration) error {
		set := (*f.set(c)).Clone()
		for _, e := range elems {
			if v := f.normalize(e); v != "" {
				set[v] = struct{}{}
			}
		}
		*f.set(c) = set
		return nil
	})
}

// RemoveFromSet removes elems from the set field addressed by key and saves.
// Elements that are not members are ignored.
func (s *Store) RemoveFromSet(ctx context.Context, key string, elems ...string) error {
	f, err := setField(key, elems)
	if err != nil {
		return err
	}
	return s.Update(ctx, func(c *Configuration) error {
		set := (*f.set(c)).Clone()
		for _, e := range elems {
			delete(set, f.normalize(e))
		}
		*f.set(c) = set
		return nil
	})
}

func setField(key string, elems []string) (field, error) {
	f, err := lookup(key)
	if err != nil {
		return field{}, err
	}
	if f.kind != kindSet {
		return field{}, &TypeMismatchError{Key: key, Want: f.kind.String(), Got: elems}
	}
	return f, nil
}

func (s *Store) read(ctx context.Context) (Configuration, error) {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		return Configuration{}, ErrNotFound
	}
	if err != nil {
		return Configuration{}, &PersistenceError{Op: "read", Err: err}
	}

	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Configuration{}, &PersistenceError{Op: "decode", Err: err}
	}
	return cfg, nil
}

// persist must be called with writeMu held.
func (s *Store) persist(ctx context.Context, cfg Configuration) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := s.backend.Write(ctx, data); err != nil {
		metrics.SettingsSaves.WithLabelValues("error").Inc()
		log.Printf("[settings] save failed: %v", err)
		return &PersistenceError{Op: "write", Err: err}
	}
	metrics.SettingsSaves.WithLabelValues("ok").Inc()
	return nil
}
