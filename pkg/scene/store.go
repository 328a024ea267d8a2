package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("scene: etag mismatch")

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves named snapshots.
type Store interface {
	Load(ctx context.Context, name string) (snapshot Snapshot, meta Meta, ok bool, err error)
	Save(ctx context.Context, name string, snapshot Snapshot, meta Meta) (Meta, error)
}

// Mutator edits a snapshot in place.
type Mutator func(*Snapshot) error

// Mutate loads one snapshot, applies fn, validates the result and saves it.
// When meta.ETag is set it must match the stored ETag.
func Mutate(ctx context.Context, store Store, name string, meta Meta, fn Mutator) (Snapshot, Meta, error) {
	if store == nil {
		return Snapshot{}, Meta{}, fmt.Errorf("scene: store is required")
	}
	if name == "" {
		return Snapshot{}, Meta{}, fmt.Errorf("scene: snapshot name is required")
	}
	if fn == nil {
		return Snapshot{}, Meta{}, fmt.Errorf("scene: mutator is required")
	}

	snapshot, loadedMeta, ok, err := store.Load(ctx, name)
	if err != nil {
		return Snapshot{}, Meta{}, fmt.Errorf("scene: load %q: %w", name, err)
	}
	if !ok {
		snapshot = Snapshot{Name: name}
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return Snapshot{}, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	snapshot = snapshot.Clone()
	if err := fn(&snapshot); err != nil {
		return Snapshot{}, loadedMeta, err
	}
	if err := snapshot.Validate(); err != nil {
		return Snapshot{}, loadedMeta, err
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	saveMeta.ETag = ""
	saveMeta.UpdatedAt = meta.UpdatedAt
	savedMeta, err := store.Save(ctx, name, snapshot, saveMeta)
	if err != nil {
		return Snapshot{}, loadedMeta, fmt.Errorf("scene: save %q: %w", name, err)
	}
	return snapshot, savedMeta, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

// MemoryStore is an in-memory Store. Every save gets a fresh snapshot id and
// an ETag derived from Fingerprint. A save carrying an ETag must match the
// stored one.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	snapshot Snapshot
	meta     Meta
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records: map[string]memoryRecord{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Load(_ context.Context, name string) (Snapshot, Meta, bool, error) {
	s.mu.RLock()
	record, ok := s.records[name]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, Meta{}, false, nil
	}
	return record.snapshot.Clone(), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, name string, snapshot Snapshot, meta Meta) (Meta, error) {
	if name == "" {
		return Meta{}, fmt.Errorf("scene: snapshot name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[name]; ok && meta.ETag != "" && meta.ETag != existing.meta.ETag {
		return Meta{}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, existing.meta.ETag)
	}

	saved := cloneMeta(meta)
	saved.SnapshotID = uuid.NewString()
	saved.ETag = Fingerprint(snapshot)
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = s.now()
	}
	s.records[name] = memoryRecord{snapshot: snapshot.Clone(), meta: saved}
	return cloneMeta(saved), nil
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
