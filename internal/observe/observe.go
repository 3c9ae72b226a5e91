// Package observe provides a mutex-guarded value that notifies subscribers
// after every committed change.
package observe

import "sync"

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Value holds a comparable value. Reads may happen from any goroutine;
// listeners run synchronously on the goroutine that committed the change,
// in subscription order, after the lock is released.
type Value[T comparable] struct {
	mu     sync.RWMutex
	value  T
	subs   []subscriber[T]
	nextID int
}

// NewValue returns a Value holding initial.
func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{value: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores next and notifies subscribers. It reports whether the value
// changed; setting an equal value is not a mutation and notifies no one.
func (v *Value[T]) Set(next T) bool {
	v.mu.Lock()
	if v.value == next {
		v.mu.Unlock()
		return false
	}
	v.value = next
	subs := make([]subscriber[T], len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	for _, s := range subs {
		s.fn(next)
	}
	return true
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is safe to call more than once.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs = append(v.subs, subscriber[T]{id: id, fn: fn})
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			for i, s := range v.subs {
				if s.id == id {
					v.subs = append(v.subs[:i], v.subs[i+1:]...)
					return
				}
			}
		})
	}
}
