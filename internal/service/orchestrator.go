package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"chatvault/internal/errors"
	"chatvault/internal/events"
	"chatvault/internal/metrics"
	"chatvault/internal/models"
	"chatvault/internal/resolver"
	"chatvault/internal/tracing"
	platform "chatvault/pkg/platform/types"
)

// MessageStore is the persistence surface the orchestrator depends on.
// PersistMessages upserts base rows keyed by (chat id, platform message id)
// and rewrites each message's UUID with the authoritative stored value.
// RecordEnrichment persists media refs and vectors for already-stored rows.
type MessageStore interface {
	PersistMessages(ctx context.Context, msgs []*models.Message) error
	RecordEnrichment(ctx context.Context, msgs []*models.Message) error
}

// Orchestrator drives one batch of raw platform messages through conversion,
// base persistence and the registered enrichment resolvers. The media
// resolver always runs to completion before any other resolver starts, so
// later resolvers can rely on populated query ids. All other resolvers race
// with isolated failures; each racing resolver that declares a message
// selection gets a disjoint view of the batch, so no message is shared
// between concurrently running resolvers.
type Orchestrator struct {
	registry     *resolver.Registry
	store        MessageStore
	bus          *events.Bus
	metrics      *metrics.Registry
	platformName string
	disabled     map[string]bool
	logger       *logrus.Logger
}

func NewOrchestrator(registry *resolver.Registry, store MessageStore, bus *events.Bus, reg *metrics.Registry, platformName string, disabledResolvers []string, logger *logrus.Logger) *Orchestrator {
	disabled := make(map[string]bool, len(disabledResolvers))
	for _, name := range disabledResolvers {
		disabled[name] = true
	}
	return &Orchestrator{
		registry:     registry,
		store:        store,
		bus:          bus,
		metrics:      reg,
		platformName: platformName,
		disabled:     disabled,
		logger:       logger,
	}
}

// Process runs one batch end to end. It returns an error only when base
// persistence fails; resolver failures are logged, surfaced on the error
// topic and otherwise swallowed.
func (o *Orchestrator) Process(ctx context.Context, raw []platform.RawMessage, opts models.ProcessOptions) error {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.process",
		attribute.Int("batch.raw_count", len(raw)),
		attribute.Bool("batch.takeout", opts.Takeout),
	)
	defer span.End()
	started := time.Now()

	msgs := o.convert(raw)
	if len(msgs) == 0 {
		return nil
	}

	if !opts.Takeout {
		o.bus.Publish(events.TopicMessageData, msgs)
	}

	if err := o.store.PersistMessages(ctx, msgs); err != nil {
		wrapped := errors.NewDatabaseError("persist message batch", err)
		tracing.RecordError(ctx, wrapped)
		o.bus.PublishError(string(errors.GetCode(wrapped)), "failed to persist message batch")
		o.logger.WithError(wrapped).WithField("count", len(msgs)).Error("Message batch persistence failed")
		return wrapped
	}

	batch := &resolver.Batch{
		Messages:     msgs,
		Raw:          raw,
		Options:      opts.SyncOptions,
		ForceRefetch: opts.ForceRefetch,
		BatchID:      opts.BatchID,
		TenantID:     opts.TenantID,
		Takeout:      opts.Takeout,
	}

	spans := o.runResolvers(ctx, batch, o.activeResolvers(opts))

	if o.metrics != nil {
		o.metrics.RecordTimer("message_batch_duration", time.Since(started), map[string]string{"takeout": boolLabel(opts.Takeout)})
		o.metrics.AddToCounter("messages_processed", float64(len(msgs)), nil)
	}

	if opts.BatchID != "" {
		o.bus.Publish(events.TopicMessageProcessed, models.BatchResult{
			BatchID: opts.BatchID,
			Count:   len(msgs),
			Spans:   spans,
		})
	}
	return nil
}

// convert turns raw wire messages into canonical records, newest first.
// Placeholder and malformed entries are dropped. The caller's slice is left
// untouched; ordering happens on a copy.
func (o *Orchestrator) convert(raw []platform.RawMessage) []*models.Message {
	sorted := make([]platform.RawMessage, len(raw))
	copy(sorted, raw)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	msgs := make([]*models.Message, 0, len(sorted))
	for i := range sorted {
		msg, ok := o.convertOne(&sorted[i])
		if !ok {
			o.logger.WithFields(logrus.Fields{
				"message_id": sorted[i].ID,
				"chat_id":    sorted[i].ChatID,
			}).Debug("Skipping unconvertible raw message")
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (o *Orchestrator) convertOne(raw *platform.RawMessage) (*models.Message, bool) {
	if raw.Empty || raw.ID == 0 || raw.ChatID == 0 {
		return nil, false
	}

	msg := &models.Message{
		Platform:          o.platformName,
		PlatformMessageID: raw.ID,
		ChatID:            raw.ChatID,
		FromID:            raw.FromID,
		FromName:          raw.FromName,
		Content:           raw.Text,
		PlatformTimestamp: raw.Date,
	}
	if raw.ReplyToID != 0 {
		id := raw.ReplyToID
		msg.ReplyToID = &id
	}
	if raw.ForwardFromID != 0 {
		id := raw.ForwardFromID
		msg.ForwardFromID = &id
	}
	for _, m := range raw.Media {
		msg.Media = append(msg.Media, models.MediaRef{
			Kind:       models.MediaKind(m.Kind),
			PlatformID: m.FileID,
			MimeType:   m.MimeType,
		})
	}
	return msg, true
}

// activeResolvers computes the names to run for this batch: everything
// registered minus tenant-disabled and per-batch opt-outs. Photo embedding
// depends on stored media, so skipping media also drops it.
func (o *Orchestrator) activeResolvers(opts models.ProcessOptions) []string {
	var active []string
	for _, name := range o.registry.Names() {
		if o.disabled[name] || opts.SyncOptions.Disabled(name) {
			continue
		}
		if opts.SyncOptions.SkipMedia && (name == resolver.NameMedia || name == resolver.NamePhotoEmbedding) {
			continue
		}
		if opts.SyncOptions.SkipEmbedding && name == resolver.NameEmbedding {
			continue
		}
		active = append(active, name)
	}
	return active
}

// runResolvers executes the active set: media strictly first, the rest
// concurrently with isolated failures. Batch views for the concurrent phase
// are computed here, before any goroutine starts, so message selection never
// races with resolver writes. Returns per-resolver timing spans.
func (o *Orchestrator) runResolvers(ctx context.Context, batch *resolver.Batch, active []string) []models.ResolverSpan {
	var (
		mu    sync.Mutex
		spans []models.ResolverSpan
	)
	record := func(name string, started time.Time, count int) {
		mu.Lock()
		spans = append(spans, models.ResolverSpan{
			Resolver:   name,
			DurationMs: time.Since(started).Milliseconds(),
			Count:      count,
		})
		mu.Unlock()
	}

	rest := make([]string, 0, len(active))
	for _, name := range active {
		if name == resolver.NameMedia {
			o.runOne(ctx, batch, name, record)
			continue
		}
		rest = append(rest, name)
	}

	var wg sync.WaitGroup
	for _, name := range rest {
		view := o.viewFor(batch, name)
		wg.Add(1)
		go func(name string, view *resolver.Batch) {
			defer wg.Done()
			o.runOne(ctx, view, name, record)
		}(name, view)
	}
	wg.Wait()

	sort.Slice(spans, func(i, j int) bool { return spans[i].Resolver < spans[j].Resolver })
	return spans
}

// viewFor narrows the batch to the messages a resolver claims via the
// Selector capability. Resolvers without a selection see the whole batch.
func (o *Orchestrator) viewFor(batch *resolver.Batch, name string) *resolver.Batch {
	res, ok := o.registry.Get(name)
	if !ok {
		return batch
	}
	sel, selecting := res.(resolver.Selector)
	if !selecting {
		return batch
	}

	view := *batch
	view.Messages = nil
	for _, msg := range batch.Messages {
		if sel.Selects(msg) {
			view.Messages = append(view.Messages, msg)
		}
	}
	return &view
}

// runOne dispatches a single resolver by capability and handles its output
// events. A resolver error never propagates; it is logged and published on
// the error topic so sibling resolvers and the batch outcome are unaffected.
func (o *Orchestrator) runOne(ctx context.Context, batch *resolver.Batch, name string, record func(string, time.Time, int)) {
	res, ok := o.registry.Get(name)
	if !ok {
		return
	}

	resCtx, span := tracing.StartSpan(ctx, "resolver."+name,
		attribute.String("resolver.name", name),
		attribute.Int("batch.size", len(batch.Messages)),
	)
	defer span.End()
	started := time.Now()

	switch r := res.(type) {
	case resolver.StreamResolver:
		count := 0
		err := r.Stream(resCtx, batch, func(msg *models.Message) {
			count++
			if !batch.Takeout {
				o.bus.Publish(events.TopicMessageData, []*models.Message{msg})
			}
			o.recordEnrichment(resCtx, name, []*models.Message{msg})
		})
		record(name, started, count)
		if err != nil {
			o.resolverFailed(resCtx, name, err)
		}
	case resolver.BatchResolver:
		enriched, err := r.Run(resCtx, batch)
		record(name, started, len(enriched))
		if err != nil {
			o.resolverFailed(resCtx, name, err)
			return
		}
		if len(enriched) > 0 {
			o.recordEnrichment(resCtx, name, enriched)
		}
	}
}

// recordEnrichment persists an enrichment delta and mirrors it on the record
// topic for external consumers.
func (o *Orchestrator) recordEnrichment(ctx context.Context, name string, msgs []*models.Message) {
	if err := o.store.RecordEnrichment(ctx, msgs); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"resolver": name,
			"count":    len(msgs),
		}).Error("Failed to persist enrichment delta")
		o.bus.PublishError(string(errors.ErrCodeDatabaseQuery), "failed to persist enrichment delta")
		return
	}
	o.bus.Publish(events.TopicRecordMessages, msgs)
}

func (o *Orchestrator) resolverFailed(ctx context.Context, name string, err error) {
	tracing.RecordError(ctx, err)
	o.logger.WithError(err).WithField("resolver", name).Error("Resolver failed, continuing batch")
	o.bus.PublishError(string(errors.GetCode(err)), "resolver "+name+" failed")
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
