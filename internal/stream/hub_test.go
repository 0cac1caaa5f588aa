package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"kis-board/internal/models"
)

// Property: every fast subscriber receives every update, in publish order.
func TestProperty_AllSubscribersReceiveUpdates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("All fast subscribers receive all updates", prop.ForAll(
		func(subscriberCount int, updateCount int) bool {
			hub := NewHubWithConfig(HubConfig{
				BufferSize:           100,
				SubscriberBufferSize: 100,
			}, zerolog.Nop())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub.Start(ctx)
			defer hub.Stop()

			channels := make([]<-chan Update, subscriberCount)
			for i := range channels {
				channels[i] = hub.Subscribe(fmt.Sprintf("sub-%d", i))
			}

			for i := 0; i < updateCount; i++ {
				hub.Publish(Update{Frame: fmt.Sprintf("frame-%d", i)})
			}

			for _, ch := range channels {
				var last uint64
				for i := 0; i < updateCount; i++ {
					select {
					case u := <-ch:
						if u.Seq <= last || u.Frame != fmt.Sprintf("frame-%d", i) {
							return false
						}
						last = u.Seq
					case <-time.After(2 * time.Second):
						return false
					}
				}
			}
			// the delivered counter is bumped just after the send
			want := uint64(subscriberCount * updateCount)
			deadline := time.Now().Add(time.Second)
			for hub.Metrics().UpdatesDelivered != want {
				if time.Now().After(deadline) {
					return false
				}
				time.Sleep(time.Millisecond)
			}
			return true
		},
		gen.IntRange(1, 5),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHubWithConfig(HubConfig{BufferSize: 100, SubscriberBufferSize: 1}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	slow := hub.Subscribe("slow")
	fast := hub.Subscribe("fast")

	received := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			<-fast
		}
		close(received)
	}()

	for i := 0; i < 5; i++ {
		hub.Publish(Update{Frame: "x"})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("fast subscriber starved by slow one")
	}

	if len(slow) != 1 {
		t.Errorf("slow buffer = %d, want 1", len(slow))
	}
	if hub.Metrics().UpdatesDropped == 0 {
		t.Error("expected dropped updates for the slow subscriber")
	}
}

func TestHub_UnsubscribeAndStopCloseChannels(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Start(context.Background())

	a := hub.Subscribe("a")
	b := hub.Subscribe("b")
	hub.Unsubscribe("a")
	hub.Unsubscribe("a") // idempotent

	if _, ok := <-a; ok {
		t.Error("channel a should be closed after Unsubscribe")
	}
	if hub.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", hub.SubscriberCount())
	}

	hub.Stop()
	if _, ok := <-b; ok {
		t.Error("channel b should be closed after Stop")
	}
	if hub.IsStarted() {
		t.Error("hub still started after Stop")
	}
}

func TestHub_Consumers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	var got atomic.Value
	consumer := NewConsumerFunc(func(u Update) {
		got.Store(u.Frame)
		wg.Done()
	})
	hub.RegisterConsumer(consumer)
	if hub.Watchers() != 1 {
		t.Errorf("Watchers() = %d, want 1", hub.Watchers())
	}
	hub.Publish(Update{Frame: "hello"})
	wg.Wait()

	if got.Load() != "hello" {
		t.Errorf("consumer got %v", got.Load())
	}
	hub.UnregisterConsumer(consumer)
	if hub.ConsumerCount() != 0 {
		t.Errorf("ConsumerCount() = %d after unregister", hub.ConsumerCount())
	}
}

func TestRefreshJob_RunsForConsumers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	frames := make(chan string, 1)
	hub.RegisterConsumer(NewConsumerFunc(func(u Update) { frames <- u.Frame }))

	refresher := &stubRefresher{}
	if err := NewRefreshJob(hub, refresher, stubRenderer{}, time.Second).Run(); err != nil {
		t.Fatal(err)
	}
	select {
	case f := <-frames:
		if f != "<div>200</div>" {
			t.Errorf("frame = %q", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer received nothing")
	}
}

type stubRefresher struct {
	calls int64
	err   error
}

func (s *stubRefresher) Refresh(ctx context.Context) (*models.Valuation, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Valuation{Timestamp: "2024-03-04 15:30:00", TotalPL: 200}, nil
}

type stubRenderer struct{}

func (stubRenderer) Frame(v *models.Valuation) (string, error) {
	return fmt.Sprintf("<div>%d</div>", v.TotalPL), nil
}

func TestRefreshJob(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	refresher := &stubRefresher{}
	job := NewRefreshJob(hub, refresher, stubRenderer{}, time.Second)

	// nobody watching: no upstream calls
	if err := job.Run(); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt64(&refresher.calls) != 0 {
		t.Error("refresh ran without subscribers")
	}

	ch := hub.Subscribe("watcher")
	if err := NewScheduler(zerolog.Nop()).RunNow(job); err != nil {
		t.Fatal(err)
	}
	select {
	case u := <-ch:
		if u.Frame != "<div>200</div>" || u.Valuation.TotalPL != 200 {
			t.Errorf("update = %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update published")
	}

	refresher.err = errors.New("upstream down")
	if err := job.Run(); err == nil {
		t.Error("expected refresh error to surface")
	}
}

func TestScheduler_AddJob(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	if err := s.AddJob("not a schedule", NewRefreshJob(NewHub(zerolog.Nop()), &stubRefresher{}, stubRenderer{}, 0)); err == nil {
		t.Error("expected invalid schedule error")
	}
	if err := s.AddJob("@every 1h", NewRefreshJob(NewHub(zerolog.Nop()), &stubRefresher{}, stubRenderer{}, 0)); err != nil {
		t.Errorf("AddJob() error = %v", err)
	}
	s.Start()
	s.Stop()
}
