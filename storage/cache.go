package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/lanre-19/WorkAura/domain"
)

type backend interface {
	ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, t domain.Task) error
	ApplyTaskUpdate(ctx context.Context, t domain.Task, u domain.TaskUpdate) error
	DeleteTask(ctx context.Context, t domain.Task) error
}

// Cache wraps a Storage instance with Redis-backed caching of board task
// lists. Only the common board loads are cached: a whole workspace, or a
// workspace narrowed to one project. Every task mutation evicts the
// affected keys, so the next board load re-reads the store. This is the
// explicit refresh step that converges clients after a reorder.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis
// client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

// cacheKey returns the Redis key for the filter, or "" when the filter is
// too narrow to be worth caching.
func cacheKey(f domain.TaskFilter) string {
	if f.AssigneeID != "" || f.Status != "" || f.DueDate != "" || f.Search != "" {
		return ""
	}
	if f.ProjectID != "" {
		return "tasks:" + f.WorkspaceID + ":" + f.ProjectID
	}
	return "tasks:" + f.WorkspaceID
}

func taskKeys(t domain.Task) []string {
	keys := []string{"tasks:" + t.WorkspaceID}
	if t.ProjectID != "" {
		keys = append(keys, "tasks:"+t.WorkspaceID+":"+t.ProjectID)
	}
	return keys
}

func (c *Cache) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	key := cacheKey(f)
	if key != "" {
		if tasks, ok := c.load(ctx, key); ok {
			return tasks, nil
		}
	}

	tasks, err := c.base.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}

	if key != "" {
		c.store(ctx, key, tasks)
	}
	return tasks, nil
}

func (c *Cache) CreateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.CreateTask(ctx, t); err != nil {
		return err
	}
	c.Invalidate(ctx, taskKeys(t)...)
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.UpdateTask(ctx, t); err != nil {
		return err
	}
	c.Invalidate(ctx, taskKeys(t)...)
	return nil
}

func (c *Cache) ApplyTaskUpdate(ctx context.Context, t domain.Task, u domain.TaskUpdate) error {
	if err := c.base.ApplyTaskUpdate(ctx, t, u); err != nil {
		return err
	}
	c.Invalidate(ctx, taskKeys(t)...)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, t domain.Task) error {
	if err := c.base.DeleteTask(ctx, t); err != nil {
		return err
	}
	c.Invalidate(ctx, taskKeys(t)...)
	return nil
}

// Invalidate drops cached board lists. Exposed so callers that batch
// several writes can evict once at the end.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c.redis == nil || len(keys) == 0 {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

// InvalidateWorkspace drops the cached lists for a workspace and the given
// projects inside it.
func (c *Cache) InvalidateWorkspace(ctx context.Context, workspaceID string, projectIDs ...string) {
	keys := []string{"tasks:" + workspaceID}
	for _, p := range projectIDs {
		if p != "" {
			keys = append(keys, "tasks:"+workspaceID+":"+p)
		}
	}
	c.Invalidate(ctx, keys...)
}

func (c *Cache) load(ctx context.Context, key string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, key string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}
