package store

import "sync"

// notifier fans record changes out to subscribers of a collection/id pair.
type notifier struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]*subscription
}

type subscription struct {
	mu       sync.Mutex
	onChange func(*Record)
	last     int64
	closed   bool
}

// deliver drops values older than the last one delivered, so the initial
// read and a concurrent write cannot reach the listener out of order.
func (s *subscription) deliver(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if rec != nil {
		if rec.Version <= s.last {
			return
		}
		s.last = rec.Version
	} else {
		s.last = 0
	}
	s.onChange(rec)
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[string]map[uint64]*subscription)}
}

func subscriptionKey(collection, id string) string {
	return collection + "/" + id
}

func (n *notifier) add(collection, id string, onChange func(*Record)) (*subscription, Unsubscribe) {
	key := subscriptionKey(collection, id)
	sub := &subscription{onChange: onChange}

	n.mu.Lock()
	n.next++
	token := n.next
	if n.subs[key] == nil {
		n.subs[key] = make(map[uint64]*subscription)
	}
	n.subs[key][token] = sub
	n.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[key], token)
			if len(n.subs[key]) == 0 {
				delete(n.subs, key)
			}
			n.mu.Unlock()

			sub.mu.Lock()
			sub.closed = true
			sub.mu.Unlock()
		})
	}
}

func (n *notifier) has(collection, id string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[subscriptionKey(collection, id)]) > 0
}

func (n *notifier) publish(collection, id string, rec *Record) {
	n.mu.RLock()
	subs := make([]*subscription, 0, len(n.subs[subscriptionKey(collection, id)]))
	for _, s := range n.subs[subscriptionKey(collection, id)] {
		subs = append(subs, s)
	}
	n.mu.RUnlock()

	for _, s := range subs {
		s.deliver(rec.Clone())
	}
}
