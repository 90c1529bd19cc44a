// Package notify is a payload-less publish/subscribe signal. The ledger
// raises it after every successful mutation; observers pull a fresh
// snapshot when they wake up.
package notify

import "sync"

// Broker fans a signal out to any number of subscribers. Notify never
// blocks: each subscriber has a one-slot buffer, so a slow subscriber sees
// several signals coalesced into one.
type Broker struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewBroker creates a broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscription is one observer's view of the signal.
type Subscription struct {
	c      chan struct{}
	broker *Broker
	once   sync.Once
}

// Subscribe registers a new subscriber.
func (b *Broker) Subscribe() *Subscription {
	s := &Subscription{c: make(chan struct{}, 1), broker: b}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Notify signals every subscriber.
func (b *Broker) Notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.c <- struct{}{}:
		default:
			// A signal is already pending for this subscriber.
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// C returns the channel that receives signals. It is closed by Close.
func (s *Subscription) C() <-chan struct{} {
	return s.c
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		close(s.c)
		s.broker.mu.Unlock()
	})
}
