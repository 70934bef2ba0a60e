package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adamspd/crispies/utils"
)

// ModuleProgress tracks completion within one module
type ModuleProgress struct {
	Completed []int `json:"completed"`
	Current   int   `json:"current"`
}

// IsCompleted reports whether the lesson index is in the completion set
func (mp *ModuleProgress) IsCompleted(index int) bool {
	for _, i := range mp.Completed {
		if i == index {
			return true
		}
	}
	return false
}

// MarkCompleted adds index to the completion set. Returns false when it was
// already there.
func (mp *ModuleProgress) MarkCompleted(index int) bool {
	if mp.IsCompleted(index) {
		return false
	}
	mp.Completed = append(mp.Completed, index)
	return true
}

// ProgressRecord is the persisted per-module progress plus the last visited
// module. On the wire the module entries sit next to the metadata keys.
type ProgressRecord struct {
	Modules      map[string]*ModuleProgress
	LastModuleID string
	Timestamp    time.Time
}

const (
	lastModuleKey = "lastModuleId"
	timestampKey  = "timestamp"
)

// NewProgressRecord returns an empty record
func NewProgressRecord() ProgressRecord {
	return ProgressRecord{Modules: make(map[string]*ModuleProgress)}
}

// Module returns the entry for moduleID, creating it when absent
func (pr *ProgressRecord) Module(moduleID string) *ModuleProgress {
	if pr.Modules == nil {
		pr.Modules = make(map[string]*ModuleProgress)
	}
	mp, ok := pr.Modules[moduleID]
	if !ok {
		mp = &ModuleProgress{Completed: []int{}, Current: 0}
		pr.Modules[moduleID] = mp
	}
	return mp
}

// IsLessonCompleted does not create entries
func (pr *ProgressRecord) IsLessonCompleted(moduleID string, index int) bool {
	mp, ok := pr.Modules[moduleID]
	return ok && mp.IsCompleted(index)
}

func (pr ProgressRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(pr.Modules)+2)
	for id, mp := range pr.Modules {
		out[id] = mp
	}
	if pr.LastModuleID != "" {
		out[lastModuleKey] = pr.LastModuleID
	}
	if !pr.Timestamp.IsZero() {
		out[timestampKey] = pr.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

func (pr *ProgressRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rec := NewProgressRecord()
	for key, value := range raw {
		switch key {
		case lastModuleKey:
			// null when no module was selected at save time
			_ = json.Unmarshal(value, &rec.LastModuleID)
		case timestampKey:
			var ts string
			if err := json.Unmarshal(value, &ts); err == nil {
				if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
					rec.Timestamp = parsed
				}
			}
		default:
			var mp ModuleProgress
			if err := json.Unmarshal(value, &mp); err != nil {
				return fmt.Errorf("module %q: %w", key, err)
			}
			if mp.Completed == nil {
				mp.Completed = []int{}
			}
			rec.Modules[key] = &mp
		}
	}
	*pr = rec
	return nil
}

// ProgressStats aggregates completion across every module in the catalog
type ProgressStats struct {
	TotalLessons    int `json:"totalLessons"`
	TotalCompleted  int `json:"totalCompleted"`
	PercentComplete int `json:"percentComplete"`
}

// SnapshotKey addresses one lesson's saved source
type SnapshotKey struct {
	ModuleID    string
	LessonIndex int
}

// String is the persisted form, "{moduleId}-{index}"
func (k SnapshotKey) String() string {
	return k.ModuleID + "-" + strconv.Itoa(k.LessonIndex)
}

// ParseSnapshotKey splits on the last dash so module ids may contain dashes
func ParseSnapshotKey(s string) (SnapshotKey, error) {
	i := strings.LastIndex(s, "-")
	if i <= 0 || i == len(s)-1 {
		return SnapshotKey{}, fmt.Errorf("invalid snapshot key %q", s)
	}
	index, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return SnapshotKey{}, fmt.Errorf("invalid snapshot key %q: %w", s, err)
	}
	return SnapshotKey{ModuleID: s[:i], LessonIndex: index}, nil
}

// SnapshotMap holds in-progress source per lesson. Persisted as a list of
// [key, source] pairs.
type SnapshotMap map[SnapshotKey]string

func (sm SnapshotMap) MarshalJSON() ([]byte, error) {
	keys := make([]SnapshotKey, 0, len(sm))
	for k := range sm {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ModuleID != keys[j].ModuleID {
			return keys[i].ModuleID < keys[j].ModuleID
		}
		return keys[i].LessonIndex < keys[j].LessonIndex
	})

	entries := make([][2]string, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, [2]string{k.String(), sm[k]})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON skips entries whose key does not parse and keeps the rest
func (sm *SnapshotMap) UnmarshalJSON(data []byte) error {
	var entries [][2]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(SnapshotMap, len(entries))
	for _, e := range entries {
		key, err := ParseSnapshotKey(e[0])
		if err != nil {
			utils.LogWarn("Skipping saved code entry: %v", err)
			continue
		}
		out[key] = e[1]
	}
	*sm = out
	return nil
}
