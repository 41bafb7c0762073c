package oracle

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/systemshift/dagvdf/message"
)

// Adapter wraps an Oracle with a Start/Stop lifecycle and callback
// registration; it satisfies Oracle itself, and round.Process only
// ever calls Choose on it. A mutex-guarded
// running flag gates Start/Stop, and a registered callback observes
// every decision. Decisions here are synchronous, one call per
// VDF-start tick, rather than an asynchronous stream, so there is no
// background goroutine to manage.
type Adapter struct {
	inner    Oracle
	onChoice func(round uint64, coffer mapset.Set[message.MessageId])

	mu      sync.Mutex
	running bool
}

// NewAdapter wraps inner. A nil inner is rejected.
func NewAdapter(inner Oracle) (*Adapter, error) {
	if inner == nil {
		return nil, fmt.Errorf("oracle: inner oracle cannot be nil")
	}
	return &Adapter{inner: inner}, nil
}

// OnChoice registers a callback invoked synchronously after every
// Choose call, for logging or test assertions.
func (a *Adapter) OnChoice(fn func(round uint64, coffer mapset.Set[message.MessageId])) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChoice = fn
}

// Start marks the adapter ready to serve decisions.
func (a *Adapter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("oracle: adapter already running")
	}
	a.running = true
	return nil
}

// Stop marks the adapter no longer ready; Choose after Stop still
// delegates (there is no background resource to release), Stop is
// idempotent-safe rather than a hard kill switch.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
	return nil
}

// Choose delegates to the wrapped Oracle and fires the registered
// callback, if any.
func (a *Adapter) Choose(view message.View, maxSeenRound uint64) (uint64, mapset.Set[message.MessageId]) {
	round, coffer := a.inner.Choose(view, maxSeenRound)

	a.mu.Lock()
	cb := a.onChoice
	a.mu.Unlock()
	if cb != nil {
		cb(round, coffer)
	}
	return round, coffer
}
