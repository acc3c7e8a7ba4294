package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeoutTask_Lifecycle(t *testing.T) {
	task := NewTakeoutTask(context.Background(), "t1", "takeout", TakeoutParams{ChatIDs: []int64{1}})

	assert.Equal(t, TakeoutStatePending, task.State())

	task.SetState(TakeoutStateRunning)
	assert.Equal(t, TakeoutStateRunning, task.State())

	task.SetState(TakeoutStateCompleted)
	assert.Equal(t, TakeoutStateCompleted, task.State())

	// Terminal states stick.
	task.SetState(TakeoutStateRunning)
	assert.Equal(t, TakeoutStateCompleted, task.State())
	task.UpdateError(assert.AnError)
	assert.Equal(t, TakeoutStateCompleted, task.State())
	assert.NoError(t, task.Err())
}

func TestTakeoutTask_UpdateErrorMarksFailed(t *testing.T) {
	task := NewTakeoutTask(context.Background(), "t2", "takeout", TakeoutParams{})

	task.SetState(TakeoutStateRunning)
	task.UpdateError(assert.AnError)

	assert.Equal(t, TakeoutStateFailed, task.State())
	require.Error(t, task.Err())

	// A later error must not replace the first terminal outcome.
	task.UpdateError(context.Canceled)
	assert.ErrorIs(t, task.Err(), assert.AnError)
}

func TestTakeoutTask_AbortCancelsContext(t *testing.T) {
	task := NewTakeoutTask(context.Background(), "t3", "takeout", TakeoutParams{})

	require.NoError(t, task.Context().Err())
	task.Abort()
	assert.Error(t, task.Context().Err())

	// Abort does not force the state; the engine records it.
	assert.Equal(t, TakeoutStatePending, task.State())
}

func TestTakeoutTask_ProgressBounds(t *testing.T) {
	task := NewTakeoutTask(context.Background(), "t4", "takeout", TakeoutParams{})

	task.UpdateProgress(150, "Get messages")
	assert.Equal(t, 100, task.Progress().Percent)

	task.UpdateProgress(-5, "Get messages")
	assert.Equal(t, 0, task.Progress().Percent)

	task.UpdateProgress(55, "Get messages")
	progress := task.Progress()
	assert.Equal(t, 55, progress.Percent)
	assert.Equal(t, "Get messages", progress.Label)
}

func TestTakeoutTask_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := NewTakeoutTask(ctx, "t5", "takeout", TakeoutParams{})

	cancel()
	assert.Error(t, task.Context().Err())
}

func TestSyncOptions_Disabled(t *testing.T) {
	opts := SyncOptions{DisabledResolvers: []string{"embedding"}}
	assert.True(t, opts.Disabled("embedding"))
	assert.False(t, opts.Disabled("media"))
}

func TestVectors_Empty(t *testing.T) {
	assert.True(t, Vectors{}.Empty())
	assert.False(t, Vectors{Vector768: []float32{1}}.Empty())
	assert.False(t, Vectors{Vector1024: []float32{1}}.Empty())
	assert.False(t, Vectors{Vector1536: []float32{1}}.Empty())
}

func TestMediaKind_Downloadable(t *testing.T) {
	assert.True(t, MediaKindPhoto.Downloadable())
	assert.True(t, MediaKindSticker.Downloadable())
	assert.True(t, MediaKindDocument.Downloadable())
	assert.False(t, MediaKindWebpage.Downloadable())
	assert.False(t, MediaKindUnknown.Downloadable())
}
