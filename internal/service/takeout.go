package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"chatvault/internal/errors"
	"chatvault/internal/events"
	"chatvault/internal/models"
	platform "chatvault/pkg/platform/types"
)

// TakeoutRequest describes one chat walk within a takeout task.
type TakeoutRequest struct {
	ChatID int64
	MinID  int64 // exclusive lower bound, 0 disables
	MaxID  int64 // exclusive upper bound, 0 disables

	// ExpectedCount is a progress hint only; 0 means unknown.
	ExpectedCount int
}

// TakeoutEngine walks remote chat history through a platform takeout session:
// init, rate-limited paging, then a finish that is always attempted once a
// session exists. Cancellation is cooperative and observed only at the
// rate-wait checkpoint; it surfaces as the aborted task state, never as an
// error to the caller.
type TakeoutEngine struct {
	client       platform.Client
	bus          *events.Bus
	pageLimit    int
	rateInterval time.Duration
	logger       *logrus.Logger
}

func NewTakeoutEngine(client platform.Client, bus *events.Bus, pageLimit int, rateInterval time.Duration, logger *logrus.Logger) *TakeoutEngine {
	return &TakeoutEngine{
		client:       client,
		bus:          bus,
		pageLimit:    pageLimit,
		rateInterval: rateInterval,
		logger:       logger,
	}
}

// GetTotalMessageCount asks the platform for a chat's message total. Any
// failure degrades to 0 so callers can treat the count as a best-effort
// progress denominator.
func (e *TakeoutEngine) GetTotalMessageCount(ctx context.Context, chatID int64) int {
	count, err := e.client.GetTotalCount(ctx, chatID)
	if err != nil {
		e.logger.WithError(err).WithField("chat_id", chatID).Debug("Total message count unavailable")
		return 0
	}
	return count
}

// Export walks one chat and hands every non-placeholder message to yield in
// the order received. A clean boundary leaves the task running so callers can
// walk further chats; cooperative cancellation lands as aborted and init or
// page-fetch errors as failed. Export itself never returns an error to its
// caller, and once a session exists its finish is always attempted.
func (e *TakeoutEngine) Export(ctx context.Context, task *models.TakeoutTask, req TakeoutRequest, yield func(platform.RawMessage)) {
	task.SetState(models.TakeoutStateRunning)
	task.UpdateProgress(0, "Init takeout session")
	e.publishProgress(task)

	session, err := e.client.InitTakeoutSession(ctx)
	if err != nil {
		appErr := errors.NewTakeoutError("init", err)
		task.UpdateError(appErr)
		e.logger.WithError(appErr).WithField("task_id", task.ID).Error("Takeout session init failed")
		e.bus.PublishError(string(errors.ErrCodeTakeoutSession), "takeout session init failed")
		e.publishProgress(task)
		return
	}

	e.page(ctx, task, req, yield)

	e.finish(session, task)
	e.publishProgress(task)
}

// page runs the rate-limited history walk. It records aborted or failed on
// the task and returns; the caller handles session finishing.
func (e *TakeoutEngine) page(ctx context.Context, task *models.TakeoutTask, req TakeoutRequest, yield func(platform.RawMessage)) {
	anchor := req.MaxID
	yielded := 0

	for {
		if err := e.waitInterval(ctx); err != nil {
			task.SetState(models.TakeoutStateAborted)
			e.logger.WithField("task_id", task.ID).Info("Takeout aborted at rate-wait checkpoint")
			return
		}

		page, err := e.client.FetchHistoryPage(ctx, platform.HistoryRequest{
			ChatID:   req.ChatID,
			AnchorID: anchor,
			Limit:    e.pageLimit,
			MinID:    req.MinID,
			MaxID:    req.MaxID,
		})
		if err != nil {
			if ctx.Err() != nil {
				task.SetState(models.TakeoutStateAborted)
				return
			}
			appErr := errors.NewTakeoutError("fetch history page", err)
			task.UpdateError(appErr)
			e.logger.WithError(appErr).WithFields(logrus.Fields{
				"task_id": task.ID,
				"chat_id": req.ChatID,
				"anchor":  anchor,
			}).Error("Takeout page fetch failed")
			e.bus.PublishError(string(errors.ErrCodeTakeoutSession), "takeout page fetch failed")
			return
		}
		if len(page) == 0 {
			return
		}

		for _, msg := range page {
			anchor = msg.ID
			if msg.Empty {
				continue
			}
			yield(msg)
			yielded++
		}

		task.UpdateProgress(e.percent(yielded, req.ExpectedCount), "Get messages")
		e.publishProgress(task)
	}
}

// waitInterval enforces the minimum spacing between page fetches. It is the
// cancellation checkpoint: a signaled context returns immediately, even
// before any time has passed.
func (e *TakeoutEngine) waitInterval(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.rateInterval):
		return nil
	}
}

// finish closes the session, reporting success for every outcome except
// failed. Finish errors are logged and never change the task outcome. The
// call uses a fresh context because the task context may already be
// cancelled.
func (e *TakeoutEngine) finish(session platform.TakeoutSession, task *models.TakeoutTask) {
	success := task.State() != models.TakeoutStateFailed

	finishCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.client.FinishTakeoutSession(finishCtx, session, success); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"task_id": task.ID,
			"success": success,
		}).Warn("Failed to finish takeout session")
	}
}

func (e *TakeoutEngine) percent(yielded, expected int) int {
	if expected <= 0 {
		return 0
	}
	return yielded * 100 / expected
}

func (e *TakeoutEngine) publishProgress(task *models.TakeoutTask) {
	progress := task.Progress()
	e.bus.Publish(events.TopicTakeoutProgress, map[string]interface{}{
		"taskId":  task.ID,
		"state":   task.State(),
		"percent": progress.Percent,
		"label":   progress.Label,
	})
}
