package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chorus/internal/library"
	"github.com/desertthunder/chorus/internal/shared"
	"github.com/desertthunder/chorus/internal/store"
)

// RecordKey is the fixed key of the single logical cache record.
const RecordKey = "library"

// fallbackKey namespaces the mirror record in the flat store, keeping
// it apart from the credential entries.
const fallbackKey = "chorus.cache.library"

// Record is the persisted snapshot of an assembled library. ID is
// unique per sync; Key stays fixed so each save supersedes the last.
type Record struct {
	Key       string             `json:"key"`
	ID        string             `json:"id"`
	Data      []library.Playlist `json:"data"`
	User      *library.User      `json:"user"`
	CreatedAt int64              `json:"createdAtEpochMs"`
}

// primaryStore is the structured tier contract, satisfied by [SnapshotRepository].
type primaryStore interface {
	Save(record *Record) error
	Get(key string) (*Record, error)
	Delete(key string) error
}

// TieredCache persists library snapshots with write-through and
// read-fallback semantics across a primary structured store and a flat
// fallback store.
//
// The two tiers are independent: no atomicity is guaranteed across
// them. Primary-store success is a save's success criterion; the
// fallback mirror is best-effort.
type TieredCache struct {
	primary  primaryStore
	fallback store.Store
	logger   *log.Logger
	now      func() time.Time
}

// NewTieredCache creates a cache over the given tiers.
func NewTieredCache(primary primaryStore, fallback store.Store, logger *log.Logger) *TieredCache {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TieredCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// Save writes a snapshot of the collection to the primary store and
// mirrors it into the fallback store. A fallback write failure is
// logged and swallowed.
func (c *TieredCache) Save(collection *library.Collection) (*Record, error) {
	record := &Record{
		Key:       RecordKey,
		ID:        shared.GenerateID(),
		Data:      collection.Playlists,
		User:      collection.User,
		CreatedAt: c.now().UnixMilli(),
	}

	if err := c.primary.Save(record); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if data, err := json.Marshal(record); err != nil {
		c.logger.Warnf("failed to marshal fallback record %v", err)
	} else if err := c.fallback.Set(fallbackKey, string(data)); err != nil {
		c.logger.Warnf("failed to mirror snapshot to fallback store %v", err)
	}

	return record, nil
}

// Load reads the snapshot, preferring the primary store. When the
// primary is empty or unreachable the fallback copy is returned
// read-only: it is never promoted back into the primary store. Returns
// nil when both tiers are empty or unreachable.
func (c *TieredCache) Load() *Record {
	record, err := c.primary.Get(RecordKey)
	if err != nil {
		c.logger.Warnf("primary cache tier unreachable %v", err)
	} else if record != nil {
		return record
	}

	raw, err := c.fallback.Get(fallbackKey)
	if err != nil {
		c.logger.Warnf("fallback cache tier unreachable %v", err)
		return nil
	}
	if raw == "" {
		return nil
	}

	var fallbackRecord Record
	if err := json.Unmarshal([]byte(raw), &fallbackRecord); err != nil {
		c.logger.Warnf("failed to parse fallback record %v", err)
		return nil
	}

	return &fallbackRecord
}

// Purge clears both tiers, best-effort on each independently.
func (c *TieredCache) Purge() error {
	var lastErr error

	if err := c.primary.Delete(RecordKey); err != nil {
		c.logger.Warnf("failed to purge primary cache tier %v", err)
		lastErr = err
	}

	if err := c.fallback.Delete(fallbackKey); err != nil {
		c.logger.Warnf("failed to purge fallback cache tier %v", err)
		lastErr = err
	}

	return lastErr
}
