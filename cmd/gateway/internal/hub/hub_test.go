package hub_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/showmarket/pkg/models"
)

func setup(queueSize int) *hub.Hub {
	return hub.NewHub(queueSize, zap.NewNop())
}

func tick(price float64, ts int64) models.PriceTick {
	return models.PriceTick{Symbol: "BTCUSDT", Price: price, ObservedAtMs: ts}
}

func recv(t *testing.T, sub *hub.Subscription) (models.PriceTick, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sub.Recv(ctx)
}

func TestHub_SnapshotAbsentBeforePublish(t *testing.T) {
	h := setup(4)

	if _, ok := h.Snapshot(); ok {
		t.Fatal("Expected no snapshot before first publish")
	}

	h.Publish(tick(1, 1))
	for i := 0; i < 10; i++ {
		if _, ok := h.Snapshot(); !ok {
			t.Fatal("Snapshot reverted to absent after publish")
		}
	}
}

func TestHub_SnapshotLastWriteWins(t *testing.T) {
	h := setup(4)

	for i := 1; i <= 100; i++ {
		h.Publish(tick(float64(i), int64(i)))
	}

	got, ok := h.Snapshot()
	if !ok || got != tick(100, 100) {
		t.Errorf("Expected last tick, got %+v (ok=%v)", got, ok)
	}
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	h := setup(4)
	h.Publish(tick(1, 1))

	if h.Subscribers() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", h.Subscribers())
	}
}

func TestHub_SubscriberReceivesInOrder(t *testing.T) {
	h := setup(32)
	sub := h.Subscribe()
	defer sub.Close()

	const n = 20
	for i := 1; i <= n; i++ {
		h.Publish(tick(float64(i), int64(i)))
	}

	for i := 1; i <= n; i++ {
		got, err := recv(t, sub)
		if err != nil {
			t.Fatalf("Recv %d failed: %v", i, err)
		}
		if got != tick(float64(i), int64(i)) {
			t.Fatalf("Expected tick %d, got %+v", i, got)
		}
	}
}

func TestHub_SubscribeSeesOnlyLaterTicks(t *testing.T) {
	h := setup(8)
	h.Publish(tick(1, 1))

	sub := h.Subscribe()
	defer sub.Close()
	h.Publish(tick(2, 2))

	got, err := recv(t, sub)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if got.Price != 2 {
		t.Errorf("Expected only the tick published after subscribe, got %+v", got)
	}
	if sub.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", sub.Len())
	}
}

func TestHub_LaggingSubscriberDropsOldest(t *testing.T) {
	h := setup(4)
	sub := h.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 10; i++ {
			h.Publish(tick(float64(i), int64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	_, err := recv(t, sub)
	var lag *hub.LagError
	if !errors.As(err, &lag) {
		t.Fatalf("Expected lag error, got %v", err)
	}
	if lag.Missed != 6 {
		t.Errorf("Expected 6 missed ticks, got %d", lag.Missed)
	}

	// the newest four survive, in order
	for i := 7; i <= 10; i++ {
		got, err := recv(t, sub)
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if got.Price != float64(i) {
			t.Errorf("Expected price %d, got %v", i, got.Price)
		}
	}

	// catches up and keeps receiving
	h.Publish(tick(11, 11))
	got, err := recv(t, sub)
	if err != nil || got.Price != 11 {
		t.Errorf("Expected to resume with tick 11, got %+v err=%v", got, err)
	}
}

func TestHub_JoinReturnsSnapshotWithoutDuplicate(t *testing.T) {
	h := setup(8)
	h.Publish(models.PriceTick{Symbol: "BTCUSDT", Price: 42000.5, ObservedAtMs: 1000})

	snap, ok, sub := h.Join()
	defer sub.Close()

	if !ok || snap != (models.PriceTick{Symbol: "BTCUSDT", Price: 42000.5, ObservedAtMs: 1000}) {
		t.Fatalf("Unexpected snapshot %+v ok=%v", snap, ok)
	}
	if sub.Len() != 0 {
		t.Errorf("Snapshot tick must not also be queued, queue has %d", sub.Len())
	}
}

func TestHub_LatestPerSymbol(t *testing.T) {
	h := setup(4)
	h.Publish(models.PriceTick{Symbol: "BTCUSDT", Price: 1, ObservedAtMs: 1})
	h.Publish(models.PriceTick{Symbol: "000001.SH", Price: 3000, ObservedAtMs: 2})

	btc, ok := h.Latest("BTCUSDT")
	if !ok || btc.Price != 1 {
		t.Errorf("Expected BTCUSDT at 1, got %+v ok=%v", btc, ok)
	}
	if _, ok := h.Latest("ETHUSDT"); ok {
		t.Error("Expected no value for an unpublished symbol")
	}

	snap, _ := h.Snapshot()
	if snap.Symbol != "000001.SH" {
		t.Errorf("Global snapshot should be the last publish, got %s", snap.Symbol)
	}
}

func TestHub_CloseUnregisters(t *testing.T) {
	h := setup(4)
	sub := h.Subscribe()
	sub.Close()
	sub.Close()

	if h.Subscribers() != 0 {
		t.Errorf("Expected 0 subscribers after close, got %d", h.Subscribers())
	}
	if _, err := recv(t, sub); !errors.Is(err, hub.ErrSubscriptionClosed) {
		t.Errorf("Expected ErrSubscriptionClosed, got %v", err)
	}

	// publishing after close must not panic or requeue
	h.Publish(tick(1, 1))
	if sub.Len() != 0 {
		t.Errorf("Closed subscription should stay empty")
	}
}

func TestHub_RecvHonorsContext(t *testing.T) {
	h := setup(4)
	sub := h.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := sub.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestHub_RaceCondition(t *testing.T) {
	// Run with `go test -race ./...`
	h := setup(4)
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Publish(tick(float64(n*100+j), int64(j)))
			}
		}(i)
		go func() {
			defer wg.Done()
			sub := h.Subscribe()
			for j := 0; j < 10; j++ {
				h.Snapshot()
			}
			sub.Close()
		}()
	}
	wg.Wait()

	if h.Subscribers() != 0 {
		t.Errorf("Expected all subscribers closed, got %d", h.Subscribers())
	}
}
