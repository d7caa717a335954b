package engine

import (
	"sync"
	"time"
)

// Event is one progress update from a run. Events for a given run carry
// non-decreasing iteration numbers; subscribers see them in publish order.
type Event struct {
	RunID     string    `json:"run_id"`
	Iteration int       `json:"iteration"`
	Round     int       `json:"round"`
	BestScore float64   `json:"best_score"`
	Status    Status    `json:"status"`
	Time      time.Time `json:"time"`
}

// DefaultEventBuffer is the subscriber channel depth. A subscriber that
// falls this far behind starts losing intermediate events; terminal events
// are still delivered because the channel is drained on close.
const DefaultEventBuffer = 64

// Broker fans run events out to subscribers. Safe for concurrent use.
type Broker struct {
	mu   sync.Mutex
	subs map[string][]chan Event
	last map[string]int // last published iteration per run
}

// NewBroker creates an event broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string][]chan Event),
		last: make(map[string]int),
	}
}

// Subscribe registers for a run's events. The returned cancel function
// unsubscribes and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, DefaultEventBuffer)

	b.mu.Lock()
	b.subs[runID] = append(b.subs[runID], ch)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			chans := b.subs[runID]
			for i, c := range chans {
				if c == ch {
					b.subs[runID] = append(chans[:i], chans[i+1:]...)
					// Closing under mu keeps the close mutually exclusive
					// with the sends in Publish and Finish. Finish closes
					// the channels it removed itself.
					close(ch)
					break
				}
			}
			if len(b.subs[runID]) == 0 {
				delete(b.subs, runID)
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event to the run's subscribers. Iteration numbers
// are clamped so a run's stream never goes backwards. Slow subscribers
// drop intermediate events rather than blocking the run.
//
// Sends happen under the broker mutex; they are non-blocking, and holding
// the lock is what makes an unsubscribe's close safe against a concurrent
// publish.
func (b *Broker) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if last, ok := b.last[ev.RunID]; ok && ev.Iteration < last {
		ev.Iteration = last
	}
	b.last[ev.RunID] = ev.Iteration

	for _, ch := range b.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full; drop this event for them.
		}
	}
}

// Finish publishes a terminal event and tears down the run's stream.
// Unlike Publish, delivery of the terminal event is guaranteed: a full
// subscriber buffer sheds its oldest entry to make room. Channels close
// after the terminal event, so a ranging consumer always observes the
// final status before its loop ends.
func (b *Broker) Finish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if last, ok := b.last[ev.RunID]; ok && ev.Iteration < last {
		ev.Iteration = last
	}
	chans := b.subs[ev.RunID]
	delete(b.subs, ev.RunID)
	delete(b.last, ev.RunID)

	for _, ch := range chans {
		for {
			select {
			case ch <- ev:
			default:
				// Shed the oldest buffered event and retry; both
				// operations are non-blocking, so this terminates.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
		close(ch)
	}
}
