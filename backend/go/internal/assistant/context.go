package assistant

import (
	"Friday/backend/go/pkg/util"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ContextEntry 是会话上下文中的一条消息。
type ContextEntry struct {
	Message   string    `json:"message"`
	TaskType  string    `json:"task_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextStore 保存每个用户最近的若干条消息，超出上限时丢弃最旧的。
type ContextStore interface {
	Append(ctx context.Context, userID string, entry ContextEntry) error
	Recent(ctx context.Context, userID string) ([]ContextEntry, error)
	Clear(ctx context.Context, userID string) error
}

// Summarize 把最近 3 条消息压缩成聊天提示中使用的上下文，每条最多 50 个字符。
func Summarize(entries []ContextEntry) string {
	if len(entries) == 0 {
		return ""
	}
	if len(entries) > 3 {
		entries = entries[len(entries)-3:]
	}
	var sb strings.Builder
	sb.WriteString("Recent conversation:\n")
	for _, e := range entries {
		sb.WriteString("- ")
		sb.WriteString(truncateRunes(e.Message, 50))
		sb.WriteString("\n")
	}
	return sb.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// maxMemoryUsers 是内存上下文最多保留的用户数，超出时淘汰最久没有说话的用户。
const maxMemoryUsers = 10000

// MemoryContextStore 是进程内的上下文存储，重启后丢失。
type MemoryContextStore struct {
	mu      sync.Mutex
	cap     int
	entries *util.LRUCache[string, []ContextEntry]
}

// NewMemoryContextStore 创建内存上下文存储，capacity 为每个用户保留的条数，
// ttl 为用户最后一条消息之后上下文保留的时间（0 表示不过期）。
func NewMemoryContextStore(capacity int, ttl time.Duration) *MemoryContextStore {
	if capacity <= 0 {
		capacity = 10
	}
	entries, _ := util.New[string, []ContextEntry](util.CacheConfig{Capacity: maxMemoryUsers, TTL: ttl})
	return &MemoryContextStore{cap: capacity, entries: entries}
}

func (s *MemoryContextStore) Append(_ context.Context, userID string, entry ContextEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, _ := s.entries.Get(userID)
	list := append(append([]ContextEntry(nil), prev...), entry)
	if len(list) > s.cap {
		list = list[len(list)-s.cap:]
	}
	s.entries.Put(userID, list)
	return nil
}

func (s *MemoryContextStore) Recent(_ context.Context, userID string) ([]ContextEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, _ := s.entries.Get(userID)
	return append([]ContextEntry(nil), list...), nil
}

func (s *MemoryContextStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Delete(userID)
	return nil
}

// RedisContextStore 把上下文保存在 Redis 列表中，多个实例之间共享，并带有过期时间。
type RedisContextStore struct {
	rdb    *redis.Client
	cap    int
	ttl    time.Duration
	prefix string
}

// NewRedisContextStore 创建 Redis 上下文存储。
func NewRedisContextStore(rdb *redis.Client, capacity int, ttl time.Duration) *RedisContextStore {
	if capacity <= 0 {
		capacity = 10
	}
	return &RedisContextStore{rdb: rdb, cap: capacity, ttl: ttl, prefix: "friday:context:"}
}

func (s *RedisContextStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisContextStore) Append(ctx context.Context, userID string, entry ContextEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal context entry: %w", err)
	}
	key := s.key(userID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.LTrim(ctx, key, int64(-s.cap), -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append context for %s: %w", userID, err)
	}
	return nil
}

func (s *RedisContextStore) Recent(ctx context.Context, userID string) ([]ContextEntry, error) {
	raw, err := s.rdb.LRange(ctx, s.key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load context for %s: %w", userID, err)
	}
	out := make([]ContextEntry, 0, len(raw))
	for _, item := range raw {
		var e ContextEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RedisContextStore) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear context for %s: %w", userID, err)
	}
	return nil
}
