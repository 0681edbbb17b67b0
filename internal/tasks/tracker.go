// Package tasks tracks long-running chat requests in memory.
//
// The tracker is a bounded map: once it holds more than maxTasks entries the
// oldest ones are evicted. Nothing here survives a restart, which is fine for
// progress reporting.
package tasks

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tracked task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// maxTasks bounds the tracker; the oldest tasks are evicted beyond it.
const maxTasks = 100

// Task is one tracked unit of work.
type Task struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Progress    int            `json:"progress"`
	Message     string         `json:"message"`
	CreatedAt   string         `json:"created_at"`
	StartedAt   string         `json:"started_at,omitempty"`
	CompletedAt string         `json:"completed_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Statistics counts tasks by status.
type Statistics struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Tracker is an in-memory bounded task registry.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*Task)}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Create registers a new pending task and returns a copy of it.
func (t *Tracker) Create(name string, metadata map[string]any) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	task := &Task{
		ID:        uuid.NewString()[:8],
		Name:      name,
		Status:    StatusPending,
		Message:   "task created",
		CreatedAt: nowStamp(),
		Metadata:  metadata,
	}
	t.tasks[task.ID] = task
	t.evictLocked()

	cp := *task
	return &cp
}

// Start marks a task as processing. Returns false when the task is unknown.
func (t *Tracker) Start(id, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return false
	}
	task.Status = StatusProcessing
	task.StartedAt = nowStamp()
	if message != "" {
		task.Message = message
	}
	return true
}

// UpdateProgress sets a task's progress, clamped to [0, 100].
func (t *Tracker) UpdateProgress(id string, progress int, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return false
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	task.Progress = progress
	if message != "" {
		task.Message = message
	}
	return true
}

// Complete marks a task finished with full progress.
func (t *Tracker) Complete(id, message string) bool {
	return t.finish(id, StatusCompleted, 100, message)
}

// Fail marks a task failed, leaving its progress where it was.
func (t *Tracker) Fail(id, message string) bool {
	return t.finish(id, StatusFailed, -1, message)
}

func (t *Tracker) finish(id string, status Status, progress int, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return false
	}
	task.Status = status
	if progress >= 0 {
		task.Progress = progress
	}
	task.CompletedAt = nowStamp()
	if message != "" {
		task.Message = message
	}
	return true
}

// Get returns a copy of the task, or nil when unknown.
func (t *Tracker) Get(id string) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return nil
	}
	cp := *task
	return &cp
}

// List returns up to limit tasks, newest first. An empty status matches all.
func (t *Tracker) List(limit int, status Status) []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		if status != "" && task.Status != status {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Statistics counts tasks per status.
func (t *Tracker) Statistics() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Statistics{Total: len(t.tasks)}
	for _, task := range t.tasks {
		switch task.Status {
		case StatusPending:
			stats.Pending++
		case StatusProcessing:
			stats.Processing++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// ClearCompleted drops completed tasks and returns how many were removed.
func (t *Tracker) ClearCompleted() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, task := range t.tasks {
		if task.Status == StatusCompleted {
			delete(t.tasks, id)
			removed++
		}
	}
	return removed
}

// ClearAll drops every task and returns how many were removed.
func (t *Tracker) ClearAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := len(t.tasks)
	t.tasks = make(map[string]*Task)
	return removed
}

// evictLocked removes the oldest tasks until the tracker fits its bound.
func (t *Tracker) evictLocked() {
	for len(t.tasks) > maxTasks {
		oldestID := ""
		oldestAt := ""
		for id, task := range t.tasks {
			if oldestID == "" || task.CreatedAt < oldestAt {
				oldestID = id
				oldestAt = task.CreatedAt
			}
		}
		delete(t.tasks, oldestID)
	}
}
