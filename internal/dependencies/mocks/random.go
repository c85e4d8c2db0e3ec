package mocks

import (
	"sync"

	"github.com/mcoot/lobbysync/internal/dependencies/random"
)

// MockRandom returns queued strings in order, then falls back to Fallback.
// An empty Fallback makes an exhausted queue return "".
type MockRandom struct {
	mu       sync.Mutex
	queue    []string
	Fallback string
}

var _ random.Random = (*MockRandom)(nil)

func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return r.Fallback
	}
	next := r.queue[0]
	r.queue = r.queue[1:]
	return next
}

// QueueString appends values to the result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	r.queue = append(r.queue, values...)
	r.mu.Unlock()
}
