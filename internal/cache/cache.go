package cache

import (
	"reflect"
	"sync"

	"github.com/mnordin/composite-hass/internal/tracker"
)

// Manager keeps the previously published composite state per tracker and
// answers the question: "has anything changed since the last time I asked?".
// Rejected updates still run the attribute merger, so a tracker's state can
// change without an acceptance; comparing here avoids republishing identical
// payloads either way.
//
// Behaviour:
//   - First call to Changed() for a tracker always returns true and stores
//     the snapshot.
//   - The stored snapshot is replaced only when a difference is detected.
//
// It is concurrency-safe: the per-tracker update goroutines call Changed
// while the router goroutine may call Forget during a reload.

type Manager struct {
	mu   sync.Mutex
	prev map[string]tracker.State
}

// Changed compares the supplied state against the previously published one
// for the tracker. If a change is detected it updates the stored snapshot and
// returns true.
func (m *Manager) Changed(id string, cur tracker.State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.prev[id]
	if ok && reflect.DeepEqual(prev, cur) {
		return false
	}
	m.prev[id] = cur
	return true
}

// Forget drops the stored snapshot for a tracker, forcing the next Changed()
// to return true. Used on reload so rebuilt trackers republish.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	delete(m.prev, id)
	m.mu.Unlock()
}

// NewManager returns a ready-to-use cache manager.
func NewManager() *Manager {
	return &Manager{prev: make(map[string]tracker.State)}
}
