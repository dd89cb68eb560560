package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	id       string
	attrs    Record
	created  time.Time
	edited   time.Time
	archived bool
}

// MemoryStore 是进程内的 RecordStore 实现，用于开发环境和测试。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]*memoryEntry
	urlBase     string
	now         func() time.Time

	failArchive map[string]error
	queryErr    error
}

// NewMemoryStore 创建一个空的内存存储。urlBase 非空时为每条记录生成 url。
func NewMemoryStore(urlBase string) *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]*memoryEntry),
		urlBase:     urlBase,
		now:         time.Now,
		failArchive: make(map[string]error),
	}
}

// FailArchive 让指定 id 的归档调用返回错误。
func (s *MemoryStore) FailArchive(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failArchive[id] = err
}

// FailQueries 让之后的查询全部返回 err，传 nil 恢复。
func (s *MemoryStore) FailQueries(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryErr = err
}

// SetClock 替换时间来源。
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Create(_ context.Context, collection string, attrs Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := &memoryEntry{
		id:      uuid.NewString(),
		attrs:   copyRecord(attrs),
		created: now,
		edited:  now,
	}
	s.collections[collection] = append(s.collections[collection], entry)
	return entry.id, nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.queryErr != nil {
		return nil, s.queryErr
	}

	var out []Record
	for _, e := range s.collections[collection] {
		if e.archived {
			continue
		}
		rec := s.toRecord(e)
		if q.Filter.Match(rec) {
			out = append(out, rec)
		}
	}
	SortRecords(out, q.Sorts)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, attrs Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(collection, id)
	if e == nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range attrs {
		e.attrs[k] = v
	}
	e.edited = s.now()
	return nil
}

func (s *MemoryStore) Archive(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failArchive[id]; ok {
		return err
	}
	e := s.find(collection, id)
	if e == nil {
		return fmt.Errorf("archive %s/%s: %w", collection, id, ErrNotFound)
	}
	e.archived = true
	e.edited = s.now()
	return nil
}

func (s *MemoryStore) find(collection, id string) *memoryEntry {
	for _, e := range s.collections[collection] {
		if e.id == id && !e.archived {
			return e
		}
	}
	return nil
}

func (s *MemoryStore) toRecord(e *memoryEntry) Record {
	rec := copyRecord(e.attrs)
	rec[FieldID] = e.id
	rec[FieldCreated] = e.created.UTC().Format(time.RFC3339)
	rec[FieldEdited] = e.edited.UTC().Format(time.RFC3339)
	if s.urlBase != "" {
		rec[FieldURL] = s.urlBase + e.id
	}
	return rec
}

func copyRecord(r Record) Record {
	out := make(Record, len(r)+4)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SortRecords 按排序键稳定排序。缺失的值视为最小。
func SortRecords(recs []Record, sorts []Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, key := range sorts {
			c := compareValues(recs[i][key.Property], recs[j][key.Property])
			if c == 0 {
				continue
			}
			if key.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
