package mirror

import "sync"

// Observable is the read side of a Field.
type Observable[T any] interface {
	Get() T
	Subscribe(fn func(T)) (unsubscribe func())
}

// Field holds one value and notifies subscribers only when Set changes it
// according to the field's equality function.
type Field[T any] struct {
	mu    sync.Mutex
	val   T
	equal func(a, b T) bool
	subs  []subscriber[T]
	next  int
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

func NewField[T any](initial T, equal func(a, b T) bool) *Field[T] {
	return &Field[T]{val: initial, equal: equal}
}

// NewComparableField compares with ==.
func NewComparableField[T comparable](initial T) *Field[T] {
	return NewField(initial, func(a, b T) bool { return a == b })
}

func (f *Field[T]) Get() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val
}

// Set stores v and notifies every subscriber, in subscription order, if it
// differs from the current value. It reports whether a change happened.
// Subscribers run on the caller's goroutine after the field is unlocked.
func (f *Field[T]) Set(v T) bool {
	notify := f.swap(v)
	if notify == nil {
		return false
	}
	notify()
	return true
}

// swap stores v and returns the pending notification, or nil when v equals
// the current value. The caller decides when subscribers run.
func (f *Field[T]) swap(v T) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.equal(f.val, v) {
		return nil
	}
	f.val = v
	subs := make([]func(T), len(f.subs))
	for i, s := range f.subs {
		subs[i] = s.fn
	}
	return func() {
		for _, fn := range subs {
			fn(v)
		}
	}
}

func (f *Field[T]) Subscribe(fn func(T)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs = append(f.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, s := range f.subs {
				if s.id == id {
					f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
					return
				}
			}
		})
	}
}
