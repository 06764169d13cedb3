package goSession

import (
	"errors"
	"fmt"
	"sync"
)

type resetSubscriber struct {
	name   string
	target Resettable
}

// resetBus delivers the session-ended event to every subscriber, in
// registration order, on the publishing goroutine. Broadcasts never interleave.
type resetBus struct {
	mu          sync.Mutex
	subscribers []resetSubscriber
}

func newResetBus(auth Resettable, extra []resetSubscriber) (*resetBus, error) {
	if auth == nil {
		return nil, errors.New("reset bus requires the credential store")
	}
	b := &resetBus{
		subscribers: make([]resetSubscriber, 0, len(extra)+1),
	}
	b.subscribers = append(b.subscribers, resetSubscriber{name: ResetSubscriberAuth, target: auth})

	seen := map[string]struct{}{ResetSubscriberAuth: {}}
	for _, s := range extra {
		if s.name == "" {
			return nil, errors.New("reset subscriber name must be set")
		}
		if s.target == nil {
			return nil, fmt.Errorf("reset subscriber %q is nil", s.name)
		}
		if _, dup := seen[s.name]; dup {
			return nil, fmt.Errorf("reset subscriber %q registered twice", s.name)
		}
		seen[s.name] = struct{}{}
		b.subscribers = append(b.subscribers, s)
	}
	return b, nil
}

// publish resets every subscriber exactly once and returns their names in
// delivery order.
func (b *resetBus) publish() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		s.target.Reset()
		names = append(names, s.name)
	}
	return names
}

func (b *resetBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		names = append(names, s.name)
	}
	return names
}
