package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pitabwire/cmsadmin/internal/store"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatch_followsStore(t *testing.T) {
	st := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	if err := st.Set(ctx, "products", testDocs()[0].Data); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(nil, 0)
	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, reg, st, WatchOptions{
			OnReload: func(int, string) { reloads.Add(1) },
		})
	}()

	waitFor(t, func() bool { return len(reg.Collections("")) == 1 })

	if err := st.Set(ctx, "locations", testDocs()[1].Data); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(reg.Collections("")) == 2 })
	if reloads.Load() < 2 {
		t.Errorf("reloads = %d, want at least 2", reloads.Load())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestWatch_subscribeError(t *testing.T) {
	st := &flakyStore{MemoryStore: store.NewMemoryStore(), failFirst: true}
	err := Watch(context.Background(), NewRegistry(nil, 0), st, WatchOptions{})
	if err == nil {
		t.Fatal("Watch() = nil, want subscribe error")
	}
}

func TestWatch_resubscribes(t *testing.T) {
	st := &flakyStore{MemoryStore: store.NewMemoryStore(), closeFirst: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := st.MemoryStore.Set(ctx, "products", testDocs()[0].Data); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(nil, 0)
	go Watch(ctx, reg, st, WatchOptions{Resubscribe: 10 * time.Millisecond})

	waitFor(t, func() bool { return st.calls.Load() >= 2 })
	if err := st.MemoryStore.Set(ctx, "locations", testDocs()[1].Data); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(reg.Collections("")) == 2 })
}

// flakyStore fails or cuts short its first subscription.
type flakyStore struct {
	*store.MemoryStore
	failFirst  bool
	closeFirst bool
	calls      atomic.Int32
}

func (f *flakyStore) Subscribe(ctx context.Context) (<-chan []store.Document, error) {
	if f.calls.Add(1) == 1 {
		switch {
		case f.failFirst:
			return nil, errors.New("listen failed")
		case f.closeFirst:
			ch := make(chan []store.Document)
			close(ch)
			return ch, nil
		}
	}
	return f.MemoryStore.Subscribe(ctx)
}
