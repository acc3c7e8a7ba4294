package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"chatvault/internal/models"
	platform "chatvault/pkg/platform/types"
)

// FeedPoller pulls live platform updates on a fixed interval, hands each
// burst inline to the orchestrator and advances the account cursors. Live
// bursts bypass the batch pool; they are small and latency matters more than
// fairness against takeout batches.
type FeedPoller struct {
	client       platform.Client
	orchestrator *Orchestrator
	tracker      *AccountStateTracker
	config       models.FeedConfig
	retryConfig  models.RetryConfig
	tenantID     string
	logger       *logrus.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	running      bool
	mu           sync.RWMutex
}

func NewFeedPoller(client platform.Client, orchestrator *Orchestrator, tracker *AccountStateTracker, feedConfig models.FeedConfig, retryConfig models.RetryConfig, tenantID string, logger *logrus.Logger) *FeedPoller {
	return &FeedPoller{
		client:       client,
		orchestrator: orchestrator,
		tracker:      tracker,
		config:       feedConfig,
		retryConfig:  retryConfig,
		tenantID:     tenantID,
		logger:       logger,
	}
}

// Start begins the background polling process.
func (fp *FeedPoller) Start(ctx context.Context) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.running {
		return fmt.Errorf("feed poller is already running")
	}

	if !fp.config.Enabled {
		fp.logger.Info("Realtime feed polling is disabled in configuration")
		return nil
	}

	if _, err := fp.client.GetMe(ctx); err != nil {
		return fmt.Errorf("failed to verify platform session before starting feed poller: %w", err)
	}

	fp.ctx, fp.cancel = context.WithCancel(ctx)
	fp.running = true

	fp.wg.Add(1)
	go fp.pollLoop()

	fp.logger.WithField("interval", fp.config.PollIntervalSec).Info("Feed poller started")
	return nil
}

// Stop gracefully stops the polling process.
func (fp *FeedPoller) Stop() {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if !fp.running {
		return
	}

	fp.cancel()
	fp.wg.Wait()
	fp.running = false
	fp.logger.Info("Feed poller stopped")
}

// IsRunning returns whether the poller is currently active.
func (fp *FeedPoller) IsRunning() bool {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	return fp.running
}

func (fp *FeedPoller) pollLoop() {
	defer fp.wg.Done()

	ticker := time.NewTicker(time.Duration(fp.config.PollIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-fp.ctx.Done():
			return
		case <-ticker.C:
			fp.pollWithRetry()
		}
	}
}

// pollWithRetry executes a single poll attempt with exponential backoff on
// failure.
func (fp *FeedPoller) pollWithRetry() {
	ctx, cancel := context.WithTimeout(fp.ctx, 30*time.Second)
	defer cancel()

	backoff := time.Duration(fp.retryConfig.InitialBackoffMs) * time.Millisecond
	maxBackoff := time.Duration(fp.retryConfig.MaxBackoffMs) * time.Millisecond

	for attempt := 0; attempt < fp.retryConfig.MaxAttempts; attempt++ {
		err := fp.poll(ctx)
		if err == nil {
			return
		}

		fp.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"error":   err,
			"backoff": backoff,
		}).Warn("Feed poll failed, retrying with backoff")

		if attempt < fp.retryConfig.MaxAttempts-1 {
			select {
			case <-fp.ctx.Done():
				return
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}
	}

	fp.logger.Error("Feed polling failed after all retry attempts")
}

// poll fetches pending updates, processes the messages inline and advances
// the account cursors to the values the platform reported.
func (fp *FeedPoller) poll(ctx context.Context) error {
	updates, err := fp.client.PollUpdates(ctx)
	if err != nil {
		return err
	}
	if updates == nil {
		return nil
	}

	if len(updates.Messages) > 0 {
		opts := models.ProcessOptions{TenantID: fp.tenantID}
		if err := fp.orchestrator.Process(ctx, updates.Messages, opts); err != nil {
			return err
		}
	}

	update := cursorUpdateFrom(updates)
	if update == (models.CursorUpdate{}) {
		return nil
	}
	return fp.tracker.UpdateState(ctx, fp.tenantID, update)
}

// cursorUpdateFrom maps reported cursor values into an update, leaving
// unreported fields nil so they stay untouched.
func cursorUpdateFrom(updates *platform.Updates) models.CursorUpdate {
	var update models.CursorUpdate
	if updates.Pts > 0 {
		pts := updates.Pts
		update.Pts = &pts
	}
	if updates.Qts > 0 {
		qts := updates.Qts
		update.Qts = &qts
	}
	if updates.Seq > 0 {
		seq := updates.Seq
		update.Seq = &seq
	}
	if updates.Date > 0 {
		date := updates.Date
		update.Date = &date
	}
	if len(updates.Messages) > 0 {
		now := time.Now().UTC()
		update.LastSyncAt = &now
	}
	return update
}
