package anonymize

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"survey-insights/internal/shared/telemetry"
)

// PseudonymCache stores source user id → anonymous id mappings so the same
// respondent keeps one pseudonym across analysis runs. Implementations must
// be safe for concurrent use.
type PseudonymCache interface {
	Get(sourceID string) (pseudonym string, ok bool)
	Set(sourceID, pseudonym string)
	Close() error
}

type memoryCache struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewMemoryCache returns an in-process PseudonymCache. Mappings last for the
// process lifetime only.
func NewMemoryCache() PseudonymCache {
	return &memoryCache{store: make(map[string]string)}
}

func (c *memoryCache) Get(sourceID string) (string, bool) {
	c.mu.RLock()
	v, ok := c.store[sourceID]
	c.mu.RUnlock()
	return v, ok
}

func (c *memoryCache) Set(sourceID, pseudonym string) {
	c.mu.Lock()
	c.store[sourceID] = pseudonym
	c.mu.Unlock()
}

func (c *memoryCache) Close() error { return nil }

const pseudonymBucket = "pseudonyms"

type boltCache struct {
	db *bolt.DB
}

// NewBoltCache opens (or creates) a bbolt database at path so pseudonyms
// survive process restarts.
func NewBoltCache(path string) (PseudonymCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open pseudonym cache %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(pseudonymBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create pseudonym bucket: %w", err)
	}

	telemetry.Info("pseudonym cache opened", map[string]any{"path": path})
	return &boltCache{db: db}, nil
}

func (c *boltCache) Get(sourceID string) (string, bool) {
	var pseudonym string
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pseudonymBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(sourceID)); v != nil {
			pseudonym = string(v)
		}
		return nil
	})
	if err != nil {
		telemetry.Error("pseudonym cache get failed", map[string]any{"err": err.Error()})
		return "", false
	}
	return pseudonym, pseudonym != ""
}

func (c *boltCache) Set(sourceID, pseudonym string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pseudonymBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", pseudonymBucket)
		}
		return b.Put([]byte(sourceID), []byte(pseudonym))
	}); err != nil {
		telemetry.Error("pseudonym cache set failed", map[string]any{"err": err.Error()})
	}
}

func (c *boltCache) Close() error {
	return c.db.Close()
}
