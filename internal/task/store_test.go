package task

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func newTestTask(id string) *domain.Task {
	now := time.Now().UTC()
	return &domain.Task{
		ID:        id,
		RepoURL:   "https://github.com/acme/shop",
		UserID:    "user-42",
		Status:    constants.TaskStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestNewTaskID(t *testing.T) {
	t.Parallel()

	id := NewTaskID()
	assert.True(t, IsValidTaskID(id), "generated ID %q should be valid", id)
	assert.NotEqual(t, id, NewTaskID())
}

func TestIsValidTaskID(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidTaskID("task-9f1b2c3d-4e5f-6a7b-8c9d-0e1f2a3b4c5d"))
	assert.False(t, IsValidTaskID("task-123"))
	assert.False(t, IsValidTaskID("9f1b2c3d-4e5f-6a7b-8c9d-0e1f2a3b4c5d"))
	assert.False(t, IsValidTaskID(""))
	assert.False(t, IsValidTaskID("task-../../../etc/passwd"))
}

func TestFileStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	tk := newTestTask(NewTaskID())

	require.NoError(t, store.Create(ctx, tk))

	got, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)
	assert.Equal(t, tk.RepoURL, got.RepoURL)
	assert.Equal(t, constants.TaskStatusCreated, got.Status)
	assert.Equal(t, constants.TaskSchemaVersion, got.SchemaVersion)
}

func TestFileStore_Create_Duplicate(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	tk := newTestTask(NewTaskID())

	require.NoError(t, store.Create(ctx, tk))
	err := store.Create(ctx, newTestTask(tk.ID))
	require.ErrorIs(t, err, overtureerrors.ErrTaskExists)
}

func TestFileStore_Create_Validation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.ErrorIs(t, store.Create(ctx, nil), overtureerrors.ErrEmptyValue)
	require.ErrorIs(t, store.Create(ctx, &domain.Task{}), overtureerrors.ErrEmptyValue)
}

func TestFileStore_Get_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Get(context.Background(), NewTaskID())
	require.ErrorIs(t, err, overtureerrors.ErrTaskNotFound)
}

func TestFileStore_Mutate(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	tk := newTestTask(NewTaskID())
	require.NoError(t, store.Create(ctx, tk))

	updated, err := store.Mutate(ctx, tk.ID, func(t *domain.Task) error {
		t.Plan = "1. do the thing"
		t.PlanVersion = 1
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1. do the thing", updated.Plan)

	// Mutation is persisted, not just returned.
	got, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlanVersion)
}

// TestFileStore_Mutate_ErrorDiscardsChanges verifies failed mutations write
// nothing: the precondition check and the write are one atomic unit.
func TestFileStore_Mutate_ErrorDiscardsChanges(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	tk := newTestTask(NewTaskID())
	require.NoError(t, store.Create(ctx, tk))

	_, err := store.Mutate(ctx, tk.ID, func(t *domain.Task) error {
		t.Plan = "should never persist"
		return overtureerrors.ErrInvalidTransition
	})
	require.ErrorIs(t, err, overtureerrors.ErrInvalidTransition)

	got, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Plan)
}

func TestFileStore_Mutate_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Mutate(context.Background(), NewTaskID(), func(*domain.Task) error { return nil })
	require.ErrorIs(t, err, overtureerrors.ErrTaskNotFound)
}

func TestFileStore_List(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	older := newTestTask(NewTaskID())
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newTestTask(NewTaskID())

	require.NoError(t, store.Create(ctx, older))
	require.NoError(t, store.Create(ctx, newer))

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	// Newest first
	assert.Equal(t, newer.ID, tasks[0].ID)
	assert.Equal(t, older.ID, tasks[1].ID)
}

func TestFileStore_List_EmptyDir(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	tasks, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestFileStore_List_SkipsInvalidEntries(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	store, err := NewFileStore(home)
	require.NoError(t, err)
	ctx := context.Background()

	tk := newTestTask(NewTaskID())
	require.NoError(t, store.Create(ctx, tk))

	// Stray directory that is not a task
	require.NoError(t, os.MkdirAll(filepath.Join(home, constants.TasksDir, "not-a-task"), 0o750))

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, tk.ID, tasks[0].ID)
}

func TestFileStore_Delete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	tk := newTestTask(NewTaskID())
	require.NoError(t, store.Create(ctx, tk))

	require.NoError(t, store.Delete(ctx, tk.ID))

	_, err := store.Get(ctx, tk.ID)
	require.ErrorIs(t, err, overtureerrors.ErrTaskNotFound)

	require.ErrorIs(t, store.Delete(ctx, tk.ID), overtureerrors.ErrTaskNotFound)
}

func TestFileStore_AppendLog(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	store, err := NewFileStore(home)
	require.NoError(t, err)
	ctx := context.Background()

	tk := newTestTask(NewTaskID())
	require.NoError(t, store.Create(ctx, tk))

	require.NoError(t, store.AppendLog(ctx, tk.ID, []byte(`{"event":"one"}`)))
	require.NoError(t, store.AppendLog(ctx, tk.ID, []byte(`{"event":"two"}`+"\n")))

	data, err := os.ReadFile(filepath.Join(home, constants.TasksDir, tk.ID, constants.TaskLogFileName))
	require.NoError(t, err)
	assert.Equal(t, "{\"event\":\"one\"}\n{\"event\":\"two\"}\n", string(data))
}

func TestFileStore_AppendLog_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	err := store.AppendLog(context.Background(), NewTaskID(), []byte("{}"))
	require.ErrorIs(t, err, overtureerrors.ErrTaskNotFound)
}

func TestFileStore_CanceledContext(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Create(ctx, newTestTask(NewTaskID())), context.Canceled)
	_, err := store.Get(ctx, NewTaskID())
	require.ErrorIs(t, err, context.Canceled)
	_, err = store.List(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
