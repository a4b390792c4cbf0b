package stream

import (
	"errors"
	"slices"
	"testing"

	"github.com/j-veylop/token-monitor-tui/internal/models"
)

// fakeSource records listeners and can fail on a given kind.
type fakeSource struct {
	failOn    string
	listening map[string]func([]byte)
	removed   []string
}

func newFakeSource(failOn string) *fakeSource {
	return &fakeSource{failOn: failOn, listening: make(map[string]func([]byte))}
}

func (s *fakeSource) Listen(kind string, fn func([]byte)) (func(), error) {
	if kind == s.failOn {
		return nil, errors.New("listen refused")
	}
	s.listening[kind] = fn
	return func() {
		delete(s.listening, kind)
		s.removed = append(s.removed, kind)
	}, nil
}

func TestSubscribeAll_AllOrNothing(t *testing.T) {
	src := newFakeSource(EventFileChanged)

	_, err := SubscribeAll(src, Handlers{
		StatsUpdated:     func(models.Snapshot) {},
		ProviderSwitched: func(models.Provider) {},
		FileChanged:      func([]string) {},
	})
	if err == nil {
		t.Fatal("expected error when a listener fails")
	}
	if len(src.listening) != 0 {
		t.Errorf("listeners left behind: %v", src.listening)
	}
	want := []string{EventProviderSwitched, EventStatsUpdated}
	if !slices.Equal(src.removed, want) {
		t.Errorf("removed = %v, want %v (reverse order)", src.removed, want)
	}
}

func TestSubscribeAll_StableHandlers(t *testing.T) {
	src := newFakeSource("")

	var switched []int64
	unsub, err := SubscribeAll(src, Handlers{
		ProviderSwitched: func(p models.Provider) { switched = append(switched, p.ID) },
	})
	if err != nil {
		t.Fatalf("SubscribeAll() failed: %v", err)
	}
	if len(src.listening) != 1 {
		t.Fatalf("listening = %v, want only provider-switched", src.listening)
	}

	fn := src.listening[EventProviderSwitched]
	fn([]byte(`{"id":3,"is_active":true}`))
	fn([]byte(`{"id":`))
	fn([]byte(`{"id":4,"is_active":true}`))

	if !slices.Equal(switched, []int64{3, 4}) {
		t.Errorf("switched = %v, want [3 4]", switched)
	}
	if len(src.removed) != 0 {
		t.Error("handler firing caused a re-subscription")
	}

	unsub()
	unsub()
	if len(src.listening) != 0 || len(src.removed) != 1 {
		t.Errorf("after unsubscribe: listening = %v, removed = %v", src.listening, src.removed)
	}
}
