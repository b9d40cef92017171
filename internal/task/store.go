// Package task provides task persistence and orchestration for Overture.
// This file implements the storage layer for task state files, with atomic
// writes and file locking for data integrity.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

// LockTimeout is the maximum duration to wait for acquiring a file lock.
const LockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// validTaskIDRegex matches valid task IDs (task-<uuid>).
var validTaskIDRegex = regexp.MustCompile(`^task-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// NewTaskID generates a unique task ID.
func NewTaskID() string {
	return "task-" + uuid.NewString()
}

// IsValidTaskID reports whether id has the task-<uuid> shape.
func IsValidTaskID(id string) bool {
	return validTaskIDRegex.MatchString(id)
}

// Store defines the interface for task persistence operations.
type Store interface {
	// Create creates a new task. Returns ErrTaskExists if the ID is taken.
	Create(ctx context.Context, task *domain.Task) error

	// Get retrieves a task by ID. Returns ErrTaskNotFound if absent.
	Get(ctx context.Context, taskID string) (*domain.Task, error)

	// List returns all tasks, sorted by creation time (newest first).
	List(ctx context.Context) ([]*domain.Task, error)

	// Delete removes a task and all its files.
	Delete(ctx context.Context, taskID string) error

	// Mutate runs fn against the freshest persisted task state under the
	// task's exclusive lock, then writes the result back atomically. If fn
	// returns an error nothing is written and the error is returned
	// unchanged. This is the read-modify-write primitive every engine
	// operation goes through: status preconditions checked inside fn are
	// checked against the state on disk, not a stale in-memory copy.
	Mutate(ctx context.Context, taskID string, fn func(*domain.Task) error) (*domain.Task, error)

	// AppendLog appends a log entry to the task's log file (JSON-lines
	// format).
	AppendLog(ctx context.Context, taskID string, entry []byte) error
}

// FileStore implements Store using the local filesystem under the Overture
// home directory.
type FileStore struct {
	home string // Usually ~/.overture
}

// NewFileStore creates a new FileStore rooted at the given home directory.
// If home is empty, uses the default ~/.overture directory.
func NewFileStore(home string) (*FileStore, error) {
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, constants.OvertureHome)
	}
	return &FileStore{home: home}, nil
}

// Create creates a new task.
func (s *FileStore) Create(ctx context.Context, task *domain.Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if task == nil {
		return fmt.Errorf("failed to create task: task %w", overtureerrors.ErrEmptyValue)
	}
	if task.ID == "" {
		return fmt.Errorf("failed to create task: task ID %w", overtureerrors.ErrEmptyValue)
	}

	taskDir := s.taskDir(task.ID)

	if _, err := os.Stat(taskDir); err == nil {
		return fmt.Errorf("failed to create task '%s': %w", task.ID, overtureerrors.ErrTaskExists)
	}

	if err := os.MkdirAll(taskDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create task directory: %w", err)
	}

	task.SchemaVersion = constants.TaskSchemaVersion

	lockFile, err := s.acquireLock(ctx, task.ID)
	if err != nil {
		_ = os.RemoveAll(taskDir)
		return fmt.Errorf("failed to create task '%s': %w", task.ID, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		_ = os.RemoveAll(taskDir)
		return fmt.Errorf("failed to create task '%s': %w", task.ID, err)
	}

	if err := atomicWrite(s.taskFilePath(task.ID), data); err != nil {
		_ = os.RemoveAll(taskDir)
		return fmt.Errorf("failed to create task '%s': %w", task.ID, err)
	}

	return nil
}

// Get retrieves a task by ID.
func (s *FileStore) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if taskID == "" {
		return nil, fmt.Errorf("failed to get task: task ID %w", overtureerrors.ErrEmptyValue)
	}

	if _, err := os.Stat(s.taskDir(taskID)); os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to get task '%s': %w", taskID, overtureerrors.ErrTaskNotFound)
	}

	lockFile, err := s.acquireLock(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task '%s': %w", taskID, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	return s.readLocked(taskID)
}

// List returns all tasks, sorted by creation time (newest first).
func (s *FileStore) List(ctx context.Context) ([]*domain.Task, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tasksDir := s.tasksDir()

	if _, err := os.Stat(tasksDir); os.IsNotExist(err) {
		return []*domain.Task{}, nil
	}

	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if !IsValidTaskID(entry.Name()) {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		task, err := s.Get(ctx, entry.Name())
		if err != nil {
			// Skip directories without a valid task.json
			continue
		}
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	return tasks, nil
}

// Delete removes a task and all its files.
func (s *FileStore) Delete(ctx context.Context, taskID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if taskID == "" {
		return fmt.Errorf("failed to delete task: task ID %w", overtureerrors.ErrEmptyValue)
	}

	taskDir := s.taskDir(taskID)

	if _, err := os.Stat(taskDir); os.IsNotExist(err) {
		return fmt.Errorf("failed to delete task '%s': %w", taskID, overtureerrors.ErrTaskNotFound)
	}

	lockFile, err := s.acquireLock(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task '%s': %w", taskID, err)
	}
	// Release before removal since the lock file is inside the task dir.
	_ = s.releaseLock(lockFile)

	if err := os.RemoveAll(taskDir); err != nil {
		return fmt.Errorf("failed to delete task '%s': %w", taskID, err)
	}

	return nil
}

// Mutate runs fn against the freshest persisted state under the task lock.
func (s *FileStore) Mutate(ctx context.Context, taskID string, fn func(*domain.Task) error) (*domain.Task, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if taskID == "" {
		return nil, fmt.Errorf("failed to mutate task: task ID %w", overtureerrors.ErrEmptyValue)
	}
	if fn == nil {
		return nil, fmt.Errorf("failed to mutate task: mutation %w", overtureerrors.ErrEmptyValue)
	}

	if _, err := os.Stat(s.taskDir(taskID)); os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to mutate task '%s': %w", taskID, overtureerrors.ErrTaskNotFound)
	}

	lockFile, err := s.acquireLock(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to mutate task '%s': %w", taskID, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	task, err := s.readLocked(taskID)
	if err != nil {
		return nil, err
	}

	if err := fn(task); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to mutate task '%s': %w", taskID, err)
	}

	if err := atomicWrite(s.taskFilePath(taskID), data); err != nil {
		return nil, fmt.Errorf("failed to mutate task '%s': %w", taskID, err)
	}

	return task, nil
}

// AppendLog appends a log entry to the task's log file (JSON-lines format).
func (s *FileStore) AppendLog(ctx context.Context, taskID string, entry []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if taskID == "" {
		return fmt.Errorf("failed to append log: task ID %w", overtureerrors.ErrEmptyValue)
	}

	if _, err := os.Stat(s.taskDir(taskID)); os.IsNotExist(err) {
		return fmt.Errorf("failed to append log: task '%s' %w", taskID, overtureerrors.ErrTaskNotFound)
	}

	lockFile, err := s.acquireLock(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	f, err := os.OpenFile(s.logFilePath(taskID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if len(entry) > 0 && entry[len(entry)-1] != '\n' {
		entry = append(entry, '\n')
	}

	if _, err := f.Write(entry); err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync log: %w", err)
	}

	return nil
}

// readLocked reads and parses the task file. Caller must hold the lock.
func (s *FileStore) readLocked(taskID string) (*domain.Task, error) {
	data, err := os.ReadFile(s.taskFilePath(taskID)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to get task '%s': %w", taskID, overtureerrors.ErrTaskNotFound)
		}
		return nil, fmt.Errorf("failed to read task '%s': %w", taskID, err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task '%s': corrupted state file: %w", taskID, err)
	}
	return &task, nil
}

// Helper methods for path construction

// tasksDir returns the path to the tasks directory.
func (s *FileStore) tasksDir() string {
	return filepath.Join(s.home, constants.TasksDir)
}

// taskDir returns the path to a specific task's directory.
func (s *FileStore) taskDir(taskID string) string {
	return filepath.Join(s.tasksDir(), taskID)
}

// taskFilePath returns the path to a task's JSON file.
func (s *FileStore) taskFilePath(taskID string) string {
	return filepath.Join(s.taskDir(taskID), constants.TaskFileName)
}

// logFilePath returns the path to a task's log file.
func (s *FileStore) logFilePath(taskID string) string {
	return filepath.Join(s.taskDir(taskID), constants.TaskLogFileName)
}

// lockFilePath returns the path to a task's lock file.
func (s *FileStore) lockFilePath(taskID string) string {
	return filepath.Join(s.taskDir(taskID), constants.TaskFileName+".lock")
}

// acquireLock acquires an exclusive file lock for the task.
// It respects context cancellation during the lock acquisition retry loop.
func (s *FileStore) acquireLock(ctx context.Context, taskID string) (*os.File, error) {
	lockPath := s.lockFilePath(taskID)

	if err := os.MkdirAll(s.taskDir(taskID), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G302,G304 -- lock file needs write access, path is constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(LockTimeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		// LOCK_EX = exclusive lock, LOCK_NB = non-blocking
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", overtureerrors.ErrLockTimeout)
		}

		time.Sleep(50 * time.Millisecond)
	}
}

// releaseLock releases a file lock.
func (s *FileStore) releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return f.Close()
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
