package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ibkr-reporter/internal/types"
)

var (
	// ErrDuplicateRequest is returned when a request id is reused while the
	// earlier request with that id is still active.
	ErrDuplicateRequest = errors.New("request id already active")
	// ErrNotConnected is returned for requests issued before Connect.
	ErrNotConnected = errors.New("gateway not connected")
)

// RequestKey identifies one active subscription.
type RequestKey struct {
	Topic types.Topic
	ReqID int
}

func (k RequestKey) String() string {
	return fmt.Sprintf("%s/%d", k.Topic, k.ReqID)
}

// Registry tracks the cancel functions of active requests.
type Registry struct {
	mu     sync.Mutex
	active map[RequestKey]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[RequestKey]context.CancelFunc)}
}

// Add registers a request. It fails with ErrDuplicateRequest if the key is active.
func (r *Registry) Add(key RequestKey, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, key)
	}
	r.active[key] = cancel
	return nil
}

// Cancel stops a request. Unknown keys are ignored and report false.
func (r *Registry) Cancel(key RequestKey) bool {
	r.mu.Lock()
	cancel, ok := r.active[key]
	delete(r.active, key)
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// CancelAll stops every active request and returns how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	active := r.active
	r.active = make(map[RequestKey]context.CancelFunc)
	r.mu.Unlock()

	for _, cancel := range active {
		cancel()
	}
	return len(active)
}

// Active reports whether a key is registered.
func (r *Registry) Active(key RequestKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}
