package relay

import (
	"context"
	"sync"

	"github.com/dcorrigan/room-monitor/internal/logic"
)

// FakePublisher records published snapshots for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Snapshots contains every snapshot passed to Publish, including failed ones.
	Snapshots []logic.Snapshot

	// PublishError, if set, will be returned by Publish.
	PublishError error
}

// NewFakePublisher creates a FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the snapshot.
func (f *FakePublisher) Publish(ctx context.Context, snap logic.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Snapshots = append(f.Snapshots, snap)
	return f.PublishError
}

// Count returns how many snapshots were published.
func (f *FakePublisher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Snapshots)
}

// Last returns the most recent snapshot.
func (f *FakePublisher) Last() (logic.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Snapshots) == 0 {
		return logic.Snapshot{}, false
	}
	return f.Snapshots[len(f.Snapshots)-1], true
}
