package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// waitFor receives from ch or fails the test after a second.
func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	var zero T
	return zero
}

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		got := make(chan *domain.Message, 1)

		_, err := bus.Subscribe(ctx, tenantID, domain.TopicRunCompleted, func(ctx context.Context, msg *domain.Message) error {
			got <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		event := domain.RunEvent{RunID: "run-1", Status: domain.RunCompleted, TotalErrors: 2}
		if err := PublishJSON(ctx, bus, tenantID, domain.TopicRunCompleted, event); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		msg := waitFor(t, got)
		if msg.TenantID != tenantID || msg.Topic != domain.TopicRunCompleted || msg.ID == "" {
			t.Errorf("unexpected envelope: %+v", msg)
		}

		var decoded domain.RunEvent
		if err := Decode(msg, &decoded); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded != event {
			t.Errorf("expected %+v, got %+v", event, decoded)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		var received1, received2 atomic.Int32
		delivered := make(chan struct{}, 1)

		bus.Subscribe(ctx, "tenant-001", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received1.Add(1)
			delivered <- struct{}{}
			return nil
		})
		bus.Subscribe(ctx, "tenant-002", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received2.Add(1)
			return nil
		})

		bus.Publish(ctx, "tenant-001", "isolation.topic", []byte("msg1"))
		waitFor(t, delivered)
		time.Sleep(20 * time.Millisecond)

		if received1.Load() != 1 {
			t.Errorf("tenant1 should receive 1 message, got %d", received1.Load())
		}
		if received2.Load() != 0 {
			t.Errorf("tenant2 should receive 0 messages, got %d", received2.Load())
		}
	})

	t.Run("AnyTenant", func(t *testing.T) {
		tenants := make(chan string, 2)
		bus.Subscribe(ctx, domain.AnyTenant, "wild.topic", func(ctx context.Context, msg *domain.Message) error {
			tenants <- msg.TenantID
			return nil
		})

		bus.Publish(ctx, "tenant-a", "wild.topic", nil)
		bus.Publish(ctx, "tenant-b", "wild.topic", nil)

		seen := map[string]bool{waitFor(t, tenants): true, waitFor(t, tenants): true}
		if !seen["tenant-a"] || !seen["tenant-b"] {
			t.Errorf("expected both tenants, got %v", seen)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := bus.Publish(ctx, "", "topic", []byte("data")); !errors.Is(err, ErrTenantRequired) {
			t.Errorf("expected ErrTenantRequired, got %v", err)
		}

		_, err := bus.Subscribe(ctx, "", "topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if !errors.Is(err, ErrTenantRequired) {
			t.Errorf("expected ErrTenantRequired, got %v", err)
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32
		delivered := make(chan struct{}, 1)

		sub, _ := bus.Subscribe(ctx, tenantID, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			delivered <- struct{}{}
			return nil
		})

		bus.Publish(ctx, tenantID, "unsub.topic", []byte("1"))
		waitFor(t, delivered)

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}

		bus.Publish(ctx, tenantID, "unsub.topic", []byte("2"))
		time.Sleep(20 * time.Millisecond)

		if count.Load() != 1 {
			t.Errorf("expected 1 message before unsubscribe, got %d", count.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		got := make(chan int, 2)
		for i := 0; i < 2; i++ {
			bus.Subscribe(ctx, tenantID, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
				got <- i
				return nil
			})
		}

		bus.Publish(ctx, tenantID, "multi.topic", []byte("broadcast"))

		seen := map[int]bool{waitFor(t, got): true, waitFor(t, got): true}
		if len(seen) != 2 {
			t.Errorf("expected both subscribers, got %v", seen)
		}
	})

	t.Run("RequestReply", func(t *testing.T) {
		bus.Subscribe(ctx, tenantID, "echo.topic", func(ctx context.Context, msg *domain.Message) error {
			return Reply(ctx, bus, msg, append([]byte("re:"), msg.Payload...))
		})

		reqCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		reply, err := bus.Request(reqCtx, tenantID, "echo.topic", []byte("ping"))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if string(reply) != "re:ping" {
			t.Errorf("expected 're:ping', got %q", reply)
		}
	})

	t.Run("RequestTimeout", func(t *testing.T) {
		reqCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		if _, err := bus.Request(reqCtx, tenantID, "nobody.listens", nil); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("ReplyWithoutReplyTopic", func(t *testing.T) {
		msg := newMessage(tenantID, "x", nil)
		if err := Reply(ctx, bus, msg, nil); !errors.Is(err, ErrNoReplyTopic) {
			t.Errorf("expected ErrNoReplyTopic, got %v", err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, tenantID, domain.TopicRunAlert, func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if sub.Topic() != domain.TopicRunAlert {
			t.Errorf("expected topic %q, got %q", domain.TopicRunAlert, sub.Topic())
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(100)

	ctx := context.Background()
	tenantID := "tenant-001"

	bus.Subscribe(ctx, tenantID, "close.topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := bus.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}

	if err := bus.Publish(ctx, tenantID, "close.topic", []byte("data")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
	if err := bus.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ping error after close, got %v", err)
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		bus, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 50})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer bus.Close()

		if _, ok := bus.(*ChannelBus); !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestSubject(t *testing.T) {
	if got := subject("tenant-1", domain.TopicRunSubmitted); got != "heron.tenant-1.heron.run.submitted" {
		t.Errorf("unexpected subject %q", got)
	}
	if got := subject(domain.AnyTenant, domain.TopicRunAlert); got != "heron.*.heron.run.alert" {
		t.Errorf("unexpected wildcard subject %q", got)
	}
}

func TestChannelBusHighLoad(t *testing.T) {
	bus := NewChannelBus(1000)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-load"

	const messageCount = 100
	var received atomic.Int32
	done := make(chan struct{})

	bus.Subscribe(ctx, tenantID, "load.topic", func(ctx context.Context, msg *domain.Message) error {
		if received.Add(1) == messageCount {
			close(done)
		}
		return nil
	})

	for i := 0; i < messageCount; i++ {
		bus.Publish(ctx, tenantID, "load.topic", []byte("msg"))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout: received %d/%d messages", received.Load(), messageCount)
	}
}
