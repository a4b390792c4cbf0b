package stream

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/models"
)

// Source delivers raw event payloads by kind. Client and watch.Watcher
// implement it.
type Source interface {
	Listen(kind string, fn func([]byte)) (unsubscribe func(), err error)
}

var _ Source = (*Client)(nil)

// Handlers receive decoded events. A nil handler leaves its kind unheard.
type Handlers struct {
	StatsUpdated     func(models.Snapshot)
	ProviderSwitched func(models.Provider)
	FileChanged      func(paths []string)
}

type binding struct {
	kind string
	fn   func([]byte)
}

// SubscribeAll listens for every handled kind on src. Either all listeners
// are established or none are: on failure the ones already registered are
// removed before the error is returned. The handlers are bound once; firing
// them never causes a re-subscription.
func SubscribeAll(src Source, h Handlers) (func(), error) {
	bindings := []binding{
		{EventStatsUpdated, decoder(EventStatsUpdated, h.StatsUpdated)},
		{EventProviderSwitched, decoder(EventProviderSwitched, h.ProviderSwitched)},
		{EventFileChanged, decoder(EventFileChanged, h.FileChanged)},
	}

	unsubs := make([]func(), 0, len(bindings))
	unsubscribeAll := func() {
		for i := len(unsubs) - 1; i >= 0; i-- {
			unsubs[i]()
		}
	}

	for _, b := range bindings {
		if b.fn == nil {
			continue
		}
		unsub, err := src.Listen(b.kind, b.fn)
		if err != nil {
			unsubscribeAll()
			return nil, fmt.Errorf("listen %s: %w", b.kind, err)
		}
		unsubs = append(unsubs, unsub)
	}

	var once sync.Once
	return func() { once.Do(unsubscribeAll) }, nil
}

// decoder adapts a typed handler to raw payloads. Payloads that do not
// decode are logged and dropped.
func decoder[T any](kind string, fn func(T)) func([]byte) {
	if fn == nil {
		return nil
	}
	return func(data []byte) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			logger.Warn("dropping malformed event payload", "event", kind, "error", err)
			return
		}
		fn(v)
	}
}
