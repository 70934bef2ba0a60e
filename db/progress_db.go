package db

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
)

const (
	DefaultKeyPrefix = "codeCrispies."

	progressKey = "progress"
	userCodeKey = "userCode"
)

// Repository reads and writes the progress and user code blobs. Storage
// failures never reach the caller: reads fall back to empty values and the
// first failed write switches the repository to in-memory only.
type Repository struct {
	store  Store
	prefix string

	mu       sync.Mutex
	degraded bool
}

func NewRepository(store Store, keyPrefix string) *Repository {
	return &Repository{store: store, prefix: keyPrefix}
}

func (r *Repository) ProgressKey() string { return r.prefix + progressKey }
func (r *Repository) UserCodeKey() string { return r.prefix + userCodeKey }

// Degraded reports whether writes have been disabled after a failure
func (r *Repository) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

func (r *Repository) LoadProgress() models.ProgressRecord {
	rec := models.NewProgressRecord()
	raw, ok := r.read(r.ProgressKey())
	if !ok {
		return rec
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		utils.LogError("Failed to parse saved progress, starting fresh: %v", err)
		return models.NewProgressRecord()
	}
	utils.LogDB("Loaded progress for %d module(s), last module %q", len(rec.Modules), rec.LastModuleID)
	return rec
}

// SaveProgress stamps the record with the current time before writing
func (r *Repository) SaveProgress(rec models.ProgressRecord) {
	rec.Timestamp = time.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		utils.LogError("Failed to encode progress: %v", err)
		return
	}
	r.write(r.ProgressKey(), string(data))
}

func (r *Repository) LoadSnapshots() models.SnapshotMap {
	snapshots := models.SnapshotMap{}
	raw, ok := r.read(r.UserCodeKey())
	if !ok {
		return snapshots
	}
	if err := json.Unmarshal([]byte(raw), &snapshots); err != nil {
		utils.LogError("Failed to parse saved user code, starting fresh: %v", err)
		return models.SnapshotMap{}
	}
	utils.LogDB("Loaded %d code snapshot(s)", len(snapshots))
	return snapshots
}

func (r *Repository) SaveSnapshots(snapshots models.SnapshotMap) {
	data, err := json.Marshal(snapshots)
	if err != nil {
		utils.LogError("Failed to encode user code: %v", err)
		return
	}
	r.write(r.UserCodeKey(), string(data))
}

// Clear removes both blobs
func (r *Repository) Clear() {
	if r.store == nil {
		return
	}
	for _, key := range []string{r.ProgressKey(), r.UserCodeKey()} {
		if err := r.store.RemoveItem(key); err != nil {
			utils.LogError("Failed to remove %s: %v", key, err)
		}
	}
	utils.LogDB("Cleared saved progress")
}

func (r *Repository) read(key string) (string, bool) {
	if r.store == nil {
		return "", false
	}
	raw, found, err := r.store.GetItem(key)
	if err != nil {
		utils.LogError("Failed to read %s: %v", key, err)
		return "", false
	}
	if !found || raw == "" {
		return "", false
	}
	return raw, true
}

func (r *Repository) write(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil || r.degraded {
		return
	}
	if err := r.store.SetItem(key, value); err != nil {
		r.degraded = true
		utils.LogWarn("Storage write failed, keeping progress in memory only: %v", err)
	}
}
