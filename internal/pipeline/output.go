package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoOutput is returned by Output.Get before the producer called Set.
var ErrNoOutput = errors.New("output not produced")

// Output is a typed edge between tasks: the producing task sets it and
// downstream tasks read it. Dependency ordering guarantees the value is set
// before a dependent runs.
type Output[T any] struct {
	name  string
	mu    sync.RWMutex
	value T
	set   bool
}

// NewOutput creates an empty output. The name appears in errors.
func NewOutput[T any](name string) *Output[T] {
	return &Output[T]{name: name}
}

// Set stores the value, replacing any value from an earlier attempt.
func (o *Output[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = v
	o.set = true
}

// Get returns the stored value.
func (o *Output[T]) Get() (T, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.set {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrNoOutput, o.name)
	}
	return o.value, nil
}

// Reset clears the value so a new run starts empty.
func (o *Output[T]) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	var zero T
	o.value = zero
	o.set = false
}
