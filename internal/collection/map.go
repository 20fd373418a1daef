package collection

import "sync"

// SyncMap is a mutex guarded generic map shared between request handlers
// and the background dispatcher.
type SyncMap[K comparable, V any] struct {
	m   map[K]V
	mux sync.RWMutex
}

func (m *SyncMap[K, V]) Get(k K) (V, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	v, ok := m.m[k]
	return v, ok
}

func (m *SyncMap[K, V]) Put(k K, v V) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.m[k] = v
}

// PutIfAbsent inserts v under k only when k has no entry yet, returning
// true on insertion. The check and the insert are a single atomic step.
func (m *SyncMap[K, V]) PutIfAbsent(k K, v V) bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.m[k]; ok {
		return false
	}
	m.m[k] = v
	return true
}

// Remove deletes k and returns the removed value when it was present.
func (m *SyncMap[K, V]) Remove(k K) (V, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	v, ok := m.m[k]
	if ok {
		delete(m.m, k)
	}
	return v, ok
}

// Range invokes f for every entry of a snapshot taken under the read lock,
// so f may safely mutate the map (e.g. remove the visited entry).
func (m *SyncMap[K, V]) Range(f func(key K, value V) bool) {
	m.mux.RLock()
	type entry struct {
		k K
		v V
	}
	snapshot := make([]entry, 0, len(m.m))
	for k, v := range m.m {
		snapshot = append(snapshot, entry{k, v})
	}
	m.mux.RUnlock()
	for _, e := range snapshot {
		if !f(e.k, e.v) {
			return
		}
	}
}

func (m *SyncMap[K, V]) Size() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return len(m.m)
}

func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{m: make(map[K]V)}
}
