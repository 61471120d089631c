package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lanre-19/WorkAura/domain"
)

type stubBackend struct {
	listTasksFn func(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error)
	createFn    func(ctx context.Context, t domain.Task) error
	updateFn    func(ctx context.Context, t domain.Task) error
	applyFn     func(ctx context.Context, t domain.Task, u domain.TaskUpdate) error
	deleteFn    func(ctx context.Context, t domain.Task) error
}

func (s *stubBackend) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	if s.listTasksFn == nil {
		return nil, errors.New("unexpected ListTasks call")
	}
	return s.listTasksFn(ctx, f)
}

func (s *stubBackend) CreateTask(ctx context.Context, t domain.Task) error {
	if s.createFn == nil {
		return errors.New("unexpected CreateTask call")
	}
	return s.createFn(ctx, t)
}

func (s *stubBackend) UpdateTask(ctx context.Context, t domain.Task) error {
	if s.updateFn == nil {
		return errors.New("unexpected UpdateTask call")
	}
	return s.updateFn(ctx, t)
}

func (s *stubBackend) ApplyTaskUpdate(ctx context.Context, t domain.Task, u domain.TaskUpdate) error {
	if s.applyFn == nil {
		return errors.New("unexpected ApplyTaskUpdate call")
	}
	return s.applyFn(ctx, t, u)
}

func (s *stubBackend) DeleteTask(ctx context.Context, t domain.Task) error {
	if s.deleteFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteFn(ctx, t)
}

func newTestCache(t *testing.T, base backend) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(base, client, time.Minute), mr
}

func TestCacheListTasksMissThenHit(t *testing.T) {
	ctx := context.Background()
	filter := domain.TaskFilter{WorkspaceID: "ws-1"}
	expected := []domain.Task{{ID: "t1", Name: "Write code", Status: domain.StatusTodo, Position: 1000, WorkspaceID: "ws-1"}}

	var calls int
	cache, mr := newTestCache(t, &stubBackend{
		listTasksFn: func(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
			calls++
			if f.WorkspaceID != "ws-1" {
				t.Fatalf("unexpected workspace: %s", f.WorkspaceID)
			}
			return append([]domain.Task(nil), expected...), nil
		},
	})

	tasks, err := cache.ListTasks(ctx, filter)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL("tasks:ws-1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.ListTasks(ctx, filter)
	if err != nil {
		t.Fatalf("list cached tasks: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached tasks: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached fetch to avoid backend, calls=%d", calls)
	}
}

func TestCacheSkipsNarrowFilters(t *testing.T) {
	ctx := context.Background()

	var calls int
	cache, mr := newTestCache(t, &stubBackend{
		listTasksFn: func(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
			calls++
			return []domain.Task{}, nil
		},
	})

	filter := domain.TaskFilter{WorkspaceID: "ws-1", Search: "deploy"}
	for i := 0; i < 2; i++ {
		if _, err := cache.ListTasks(ctx, filter); err != nil {
			t.Fatalf("list tasks: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("narrow filters must bypass the cache, calls=%d", calls)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no cache keys, got %v", keys)
	}
}

func TestCacheProjectScopedKey(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t, &stubBackend{
		listTasksFn: func(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
			return []domain.Task{}, nil
		},
	})

	if _, err := cache.ListTasks(ctx, domain.TaskFilter{WorkspaceID: "ws-1", ProjectID: "p-1"}); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !mr.Exists("tasks:ws-1:p-1") {
		t.Fatalf("expected project-scoped key, have %v", mr.Keys())
	}
}

func TestCacheMutationEvicts(t *testing.T) {
	ctx := context.Background()
	task := domain.Task{ID: "t1", WorkspaceID: "ws-1", ProjectID: "p-1", Status: domain.StatusTodo, Position: 1000}

	cache, mr := newTestCache(t, &stubBackend{
		listTasksFn: func(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
			return []domain.Task{task}, nil
		},
		applyFn: func(ctx context.Context, tk domain.Task, u domain.TaskUpdate) error { return nil },
	})

	if _, err := cache.ListTasks(ctx, domain.TaskFilter{WorkspaceID: "ws-1"}); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if _, err := cache.ListTasks(ctx, domain.TaskFilter{WorkspaceID: "ws-1", ProjectID: "p-1"}); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !mr.Exists("tasks:ws-1") || !mr.Exists("tasks:ws-1:p-1") {
		t.Fatalf("expected primed cache, have %v", mr.Keys())
	}

	if err := cache.ApplyTaskUpdate(ctx, task, domain.TaskUpdate{ID: "t1", Status: domain.StatusDone, Position: 1000}); err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if mr.Exists("tasks:ws-1") || mr.Exists("tasks:ws-1:p-1") {
		t.Fatalf("expected eviction after mutation, have %v", mr.Keys())
	}
}

func TestCacheMutationFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	task := domain.Task{ID: "t1", WorkspaceID: "ws-1", Status: domain.StatusTodo, Position: 1000}

	cache, mr := newTestCache(t, &stubBackend{
		listTasksFn: func(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
			return []domain.Task{task}, nil
		},
		deleteFn: func(ctx context.Context, tk domain.Task) error { return errors.New("boom") },
	})

	if _, err := cache.ListTasks(ctx, domain.TaskFilter{WorkspaceID: "ws-1"}); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if err := cache.DeleteTask(ctx, task); err == nil {
		t.Fatalf("expected delete error")
	}
	if !mr.Exists("tasks:ws-1") {
		t.Fatalf("failed mutation must not evict, have %v", mr.Keys())
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	expected := []domain.Task{{ID: "t1", WorkspaceID: "ws-1", Status: domain.StatusTodo, Position: 1000}}

	var calls int
	cache, mr := newTestCache(t, &stubBackend{
		listTasksFn: func(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
			calls++
			return append([]domain.Task(nil), expected...), nil
		},
	})

	if err := mr.Set("tasks:ws-1", "{not json"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	tasks, err := cache.ListTasks(ctx, domain.TaskFilter{WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected fallback to backend, calls=%d", calls)
	}
}
