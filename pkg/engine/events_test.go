package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversInOrder(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("run-1")
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Publish(Event{RunID: "run-1", Iteration: i, Status: StatusRunning})
	}
	b.Finish(Event{RunID: "run-1", Iteration: 5, Status: StatusConverged})

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 6)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i].Iteration, got[i-1].Iteration)
	}
	require.Equal(t, StatusConverged, got[len(got)-1].Status)
}

func TestBrokerClampsBackwardsIterations(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("run-1")
	defer cancel()

	b.Publish(Event{RunID: "run-1", Iteration: 10, Status: StatusRunning})
	b.Publish(Event{RunID: "run-1", Iteration: 3, Status: StatusRunning})
	b.Finish(Event{RunID: "run-1", Iteration: 0, Status: StatusConverged})

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 3)
	require.Equal(t, 10, got[1].Iteration, "iteration numbers must never go backwards")
	require.Equal(t, 10, got[2].Iteration)
}

func TestBrokerIsolatesRuns(t *testing.T) {
	b := NewBroker()
	ch1, cancel1 := b.Subscribe("run-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("run-2")
	defer cancel2()

	b.Publish(Event{RunID: "run-1", Iteration: 1, Status: StatusRunning})
	b.Finish(Event{RunID: "run-1", Iteration: 1, Status: StatusConverged})
	b.Finish(Event{RunID: "run-2", Iteration: 0, Status: StatusCancelled})

	var got1 []Event
	for ev := range ch1 {
		got1 = append(got1, ev)
	}
	require.Len(t, got1, 2)

	var got2 []Event
	for ev := range ch2 {
		got2 = append(got2, ev)
	}
	require.Len(t, got2, 1)
	require.Equal(t, StatusCancelled, got2[0].Status)
}

func TestBrokerTerminalEventSurvivesFullBuffer(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("run-1")
	defer cancel()

	// Overflow the subscriber buffer without draining it.
	for i := 0; i < DefaultEventBuffer*2; i++ {
		b.Publish(Event{RunID: "run-1", Iteration: i, Status: StatusRunning})
	}
	b.Finish(Event{RunID: "run-1", Iteration: DefaultEventBuffer * 2, Status: StatusPartial})

	var last Event
	for ev := range ch {
		last = ev
	}
	require.Equal(t, StatusPartial, last.Status, "terminal event must not be dropped")
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("run-1")

	b.Publish(Event{RunID: "run-1", Iteration: 1, Status: StatusRunning})
	cancel()
	// Safe to cancel twice, and late events do not reach the channel.
	cancel()
	b.Publish(Event{RunID: "run-1", Iteration: 2, Status: StatusRunning})

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
}

func TestBrokerConcurrentPublishAndUnsubscribe(t *testing.T) {
	b := NewBroker()
	done := make(chan struct{})

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-done:
					return
				default:
					b.Publish(Event{RunID: "run-1", Iteration: i, Status: StatusRunning})
				}
			}
		}()
	}

	// Churn subscriptions while publishers are active. An unsubscribe
	// closing its channel concurrently with a publish used to panic with
	// a send on a closed channel.
	for i := 0; i < 500; i++ {
		ch, cancel := b.Subscribe("run-1")
		go func() {
			for range ch {
			}
		}()
		cancel()
	}

	close(done)
	wg.Wait()
}

func TestLeaseTable(t *testing.T) {
	lt := newLeaseTable()

	require.NoError(t, lt.acquire("design-a", "run-1"))
	err := lt.acquire("design-a", "run-2")
	require.Error(t, err)

	holder, ok := lt.holder("design-a")
	require.True(t, ok)
	require.Equal(t, "run-1", holder)

	lt.release("design-a")
	_, ok = lt.holder("design-a")
	require.False(t, ok)
	require.NoError(t, lt.acquire("design-a", "run-2"))

	// Releasing an unheld lease is harmless.
	lt.release("design-z")
}
