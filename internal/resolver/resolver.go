package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chatvault/internal/models"
	platform "chatvault/pkg/platform/types"
)

// Well-known resolver names. The orchestrator refers to resolvers only by
// name; these constants exist so the ordering and dependency rules (media
// first, photo-embedding needs media) have a single spelling.
const (
	NameMedia          = "media"
	NameEmbedding      = "embedding"
	NamePhotoEmbedding = "photo-embedding"
)

// Batch is the in-memory unit of enrichment work: the canonical messages of
// one orchestrator batch plus the raw platform messages they were converted
// from (needed by the media resolver to locate file references).
type Batch struct {
	Messages     []*models.Message
	Raw          []platform.RawMessage
	Options      models.SyncOptions
	ForceRefetch bool
	BatchID      string
	TenantID     string
	Takeout      bool
}

// RawFor returns the raw message matching a canonical message, or nil.
func (b *Batch) RawFor(msg *models.Message) *platform.RawMessage {
	for i := range b.Raw {
		if b.Raw[i].ID == msg.PlatformMessageID && b.Raw[i].ChatID == msg.ChatID {
			return &b.Raw[i]
		}
	}
	return nil
}

// Modes declares which execution capability a resolver implements. Exactly
// one must be set.
type Modes struct {
	Batch  bool
	Stream bool
}

// Resolver is one pluggable enrichment step. Implementations additionally
// satisfy BatchResolver or StreamResolver, never both.
type Resolver interface {
	Name() string
	Modes() Modes
}

// BatchResolver consumes a whole batch and returns the enriched messages in
// one piece. Suited to provider calls that are naturally batched.
type BatchResolver interface {
	Resolver
	Run(ctx context.Context, batch *Batch) ([]*models.Message, error)
}

// StreamResolver emits enriched messages one at a time as they become ready.
// Suited to naturally incremental work such as per-attachment downloads.
type StreamResolver interface {
	Resolver
	Stream(ctx context.Context, batch *Batch, emit func(*models.Message)) error
}

// Selector narrows the messages a resolver receives. Resolvers that race on
// one batch must select disjoint message sets: the orchestrator evaluates
// Selects before launching the concurrent phase and hands each selecting
// resolver a batch view containing only its messages, so no message is read
// or written by two racing resolvers.
type Selector interface {
	Selects(msg *models.Message) bool
}

// Registry is the flat name-keyed capability registry. Resolvers register
// independently at startup and are looked up by name at dispatch time, so
// the orchestrator carries no compile-time coupling to implementations.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Resolver
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Resolver)}
}

// Register adds a resolver. A resolver must expose exactly one of the batch
// or stream capabilities and its name must be unique.
func (r *Registry) Register(res Resolver) error {
	name := res.Name()
	if name == "" {
		return fmt.Errorf("resolver name cannot be empty")
	}

	modes := res.Modes()
	if !modes.Batch && !modes.Stream {
		return fmt.Errorf("resolver %s exposes neither batch nor stream capability", name)
	}
	if modes.Batch && modes.Stream {
		return fmt.Errorf("resolver %s exposes both batch and stream capabilities", name)
	}
	if modes.Batch {
		if _, ok := res.(BatchResolver); !ok {
			return fmt.Errorf("resolver %s declares batch mode but does not implement BatchResolver", name)
		}
	}
	if modes.Stream {
		if _, ok := res.(StreamResolver); !ok {
			return fmt.Errorf("resolver %s declares stream mode but does not implement StreamResolver", name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("resolver %s already registered", name)
	}
	r.byName[name] = res
	return nil
}

// Get looks a resolver up by name.
func (r *Registry) Get(name string) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byName[name]
	return res, ok
}

// Names returns all registered resolver names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
