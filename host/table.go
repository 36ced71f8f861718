package host

import "sync"

// table maps guest-visible handles to host values. Handle 0 is never
// issued so a guest can use it as "none".
type table[T any] struct {
	mu      sync.Mutex
	next    uint32
	entries map[uint32]T
}

func (t *table[T]) add(v T) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries == nil {
		t.entries = make(map[uint32]T)
	}
	for {
		t.next++
		if t.next == 0 {
			continue
		}
		if _, used := t.entries[t.next]; !used {
			break
		}
	}
	t.entries[t.next] = v
	return t.next
}

func (t *table[T]) get(handle uint32) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[handle]
	return v, ok
}

func (t *table[T]) remove(handle uint32) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[handle]
	if ok {
		delete(t.entries, handle)
	}
	return v, ok
}

func (t *table[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
