package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chatvault/internal/events"
	"chatvault/internal/models"
	"chatvault/internal/queue"
	platform "chatvault/pkg/platform/types"
)

// TakeoutService owns takeout task lifecycles: it creates tasks, runs each
// export on the bounded batch pool, feeds yielded pages to the orchestrator
// and answers status and abort requests.
type TakeoutService struct {
	engine       *TakeoutEngine
	orchestrator *Orchestrator
	tracker      *AccountStateTracker
	pool         *queue.Pool
	bus          *events.Bus
	pageLimit    int
	tenantID     string
	logger       *logrus.Logger

	mu    sync.RWMutex
	tasks map[string]*models.TakeoutTask
}

func NewTakeoutService(engine *TakeoutEngine, orchestrator *Orchestrator, tracker *AccountStateTracker, pool *queue.Pool, bus *events.Bus, pageLimit int, tenantID string, logger *logrus.Logger) *TakeoutService {
	return &TakeoutService{
		engine:       engine,
		orchestrator: orchestrator,
		tracker:      tracker,
		pool:         pool,
		bus:          bus,
		pageLimit:    pageLimit,
		tenantID:     tenantID,
		logger:       logger,
		tasks:        make(map[string]*models.TakeoutTask),
	}
}

// Start creates a task for the given params and schedules it on the batch
// pool. It returns immediately with the pending task.
func (s *TakeoutService) Start(ctx context.Context, params models.TakeoutParams) (*models.TakeoutTask, error) {
	if len(params.ChatIDs) == 0 {
		return nil, fmt.Errorf("takeout requires at least one chat id")
	}

	task := models.NewTakeoutTask(ctx, uuid.NewString(), "takeout", params)

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	if err := s.pool.Submit(task.Context(), func(taskCtx context.Context) {
		s.run(taskCtx, task)
	}); err != nil {
		task.UpdateError(err)
		return task, err
	}

	s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"chats":   len(params.ChatIDs),
	}).Info("Takeout task scheduled")
	return task, nil
}

// Get returns a task by id.
func (s *TakeoutService) Get(id string) (*models.TakeoutTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	return task, ok
}

// Abort requests cooperative cancellation of a running task.
func (s *TakeoutService) Abort(id string) bool {
	task, ok := s.Get(id)
	if !ok {
		return false
	}
	task.Abort()
	return true
}

// Tasks returns a snapshot of all known tasks.
func (s *TakeoutService) Tasks() []*models.TakeoutTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.TakeoutTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task)
	}
	return out
}

// run walks every requested chat, batching yielded messages page-sized into
// the orchestrator. A failure on one chat ends the task; earlier chats keep
// what was already persisted.
func (s *TakeoutService) run(ctx context.Context, task *models.TakeoutTask) {
	total := 0
	for _, chatID := range task.Params.ChatIDs {
		if task.State() == models.TakeoutStateFailed || task.State() == models.TakeoutStateAborted {
			break
		}

		req := TakeoutRequest{ChatID: chatID}
		if task.Params.Increase {
			if state, err := s.tracker.ChannelPts(ctx, s.tenantID, chatID); err == nil {
				req.MinID = state
			}
		}
		req.ExpectedCount = s.engine.GetTotalMessageCount(ctx, chatID)

		total += s.exportChat(ctx, task, req)
	}

	if task.State() == models.TakeoutStateRunning {
		task.SetState(models.TakeoutStateCompleted)
		task.UpdateProgress(100, "Get messages")
	}

	s.bus.Publish(events.TopicTakeoutStats, map[string]interface{}{
		"taskId": task.ID,
		"state":  task.State(),
		"count":  total,
	})
	s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"state":   task.State(),
		"count":   total,
	}).Info("Takeout task finished")
}

// exportChat runs the engine for one chat, flushing collected messages to
// the orchestrator one page at a time. Returns the number of messages
// yielded.
func (s *TakeoutService) exportChat(ctx context.Context, task *models.TakeoutTask, req TakeoutRequest) int {
	var (
		pending []platform.RawMessage
		yielded int
		highest int64
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		opts := models.ProcessOptions{
			Takeout:      true,
			SyncOptions:  task.Params.SyncOptions,
			ForceRefetch: task.Params.ForceRefetch,
			BatchID:      task.ID,
			TenantID:     s.tenantID,
		}
		if err := s.orchestrator.Process(ctx, pending, opts); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"task_id": task.ID,
				"chat_id": req.ChatID,
			}).Error("Takeout batch processing failed")
		}
		pending = nil
	}

	s.engine.Export(ctx, task, req, func(msg platform.RawMessage) {
		yielded++
		if msg.ID > highest {
			highest = msg.ID
		}
		pending = append(pending, msg)
		if len(pending) >= s.pageLimit {
			flush()
		}
	})
	flush()

	if highest > 0 && task.State() == models.TakeoutStateRunning {
		if err := s.tracker.UpdateChannelPts(ctx, s.tenantID, req.ChatID, highest); err != nil {
			s.logger.WithError(err).WithField("chat_id", req.ChatID).Warn("Failed to advance chat cursor after takeout")
		}
	}
	return yielded
}
