package models

import (
	"context"
	"sync"
)

type TakeoutState string

const (
	TakeoutStatePending   TakeoutState = "pending"
	TakeoutStateRunning   TakeoutState = "running"
	TakeoutStateCompleted TakeoutState = "completed"
	TakeoutStateFailed    TakeoutState = "failed"
	TakeoutStateAborted   TakeoutState = "aborted"
)

// TakeoutParams describes what a takeout task should export. ForceRefetch
// re-runs enrichment even for messages that already carry vectors or stored
// media.
type TakeoutParams struct {
	ChatIDs      []int64     `json:"chatIds"`
	Increase     bool        `json:"increase"`
	ForceRefetch bool        `json:"forceRefetch"`
	SyncOptions  SyncOptions `json:"syncOptions"`
}

// TakeoutProgress is the coarse progress reported while a task runs.
type TakeoutProgress struct {
	Percent int    `json:"percent"`
	Label   string `json:"label"`
}

// TakeoutTask tracks one bulk-export run. State transitions are terminal once
// the task reaches completed, failed, or aborted. Cancellation is cooperative:
// Abort cancels the task context, and the engine observes it only at its
// checkpoints.
type TakeoutTask struct {
	ID     string        `json:"id"`
	Type   string        `json:"type"`
	Params TakeoutParams `json:"params"`

	mu       sync.RWMutex
	state    TakeoutState
	progress TakeoutProgress
	err      error

	ctx    context.Context
	cancel context.CancelFunc
}

// NewTakeoutTask creates a pending task whose lifetime is bound to parent.
func NewTakeoutTask(parent context.Context, id, taskType string, params TakeoutParams) *TakeoutTask {
	ctx, cancel := context.WithCancel(parent)
	return &TakeoutTask{
		ID:     id,
		Type:   taskType,
		Params: params,
		state:  TakeoutStatePending,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the cancellation context for this task.
func (t *TakeoutTask) Context() context.Context {
	return t.ctx
}

// Abort requests cooperative cancellation. It does not force the state; the
// engine records the aborted state once it observes the cancellation.
func (t *TakeoutTask) Abort() {
	t.cancel()
}

func (t *TakeoutTask) State() TakeoutState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// SetState advances the task state. Terminal states stick: once completed,
// failed, or aborted, further transitions are ignored.
func (t *TakeoutTask) SetState(s TakeoutState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminalLocked() {
		return
	}
	t.state = s
}

func (t *TakeoutTask) terminalLocked() bool {
	switch t.state {
	case TakeoutStateCompleted, TakeoutStateFailed, TakeoutStateAborted:
		return true
	}
	return false
}

func (t *TakeoutTask) Progress() TakeoutProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

// UpdateProgress records coarse progress, capping the percent at 100.
func (t *TakeoutTask) UpdateProgress(percent int, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	t.progress = TakeoutProgress{Percent: percent, Label: label}
}

// UpdateError records the terminal error and marks the task failed.
func (t *TakeoutTask) UpdateError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminalLocked() {
		return
	}
	t.err = err
	t.state = TakeoutStateFailed
}

func (t *TakeoutTask) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}
