package tasks

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned when looking up an unknown or expired task id.
var ErrTaskNotFound = errors.New("task not found")

// Status tracks the lifecycle of a single processing task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Task holds the state needed to resume processing one uploaded file.
type Task struct {
	ID               string    `json:"id"`
	FilePath         string    `json:"file_path"`
	OriginalFilename string    `json:"original_filename"`
	UserPrompt       string    `json:"user_prompt"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// Registry is a process-wide in-memory task map. It is injected into the
// HTTP layer and the pipeline; there is no persistence across restarts.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
	}
}

// Create registers a new task and returns its generated identifier.
func (r *Registry) Create(filePath, originalFilename, userPrompt string) string {
	task := &Task{
		ID:               uuid.NewString(),
		FilePath:         filePath,
		OriginalFilename: originalFilename,
		UserPrompt:       userPrompt,
		Status:           StatusPending,
		CreatedAt:        time.Now(),
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.mu.Unlock()

	return task.ID
}

// Get returns a snapshot of the task with the given id.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return *task, nil
}

// SetStatus updates the status of an existing task. Unknown ids are ignored.
func (r *Registry) SetStatus(id string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task, ok := r.tasks[id]; ok {
		task.Status = status
	}
}

// Remove deletes the task. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

// Len reports the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
