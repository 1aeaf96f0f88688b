package agent

import (
	"context"
	"sync"
)

// taskRegistry supervises per-token pipelines so teardown can list,
// cancel and await them.
type taskRegistry struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
	wg    sync.WaitGroup
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{tasks: make(map[string]context.CancelFunc)}
}

// Go runs fn under id on a context derived from parent.
func (r *taskRegistry) Go(parent context.Context, id string, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.tasks[id] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.tasks, id)
			r.mu.Unlock()
			cancel()
		}()
		fn(ctx)
	}()
}

// Active lists running task ids.
func (r *taskRegistry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	return ids
}

// CancelAll cancels every running task.
func (r *taskRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.tasks {
		cancel()
	}
}

// Wait blocks until every task returned.
func (r *taskRegistry) Wait() {
	r.wg.Wait()
}
