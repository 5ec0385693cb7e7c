// Copyright 2024-2026 Aiku AI

package flowdock

import (
	"slices"
	"sync"
)

// snapshot is the complete in-memory picture of flows and users at a
// point in time. flowsByID and usersByID are exact by-id derivations of
// flows and its flattened member lists; a reload rebuilds all fields as
// a unit.
type snapshot struct {
	userID    string
	flows     []Flow
	flowsByID map[string]*Flow
	usersByID map[string]User
}

// stateStore owns the live snapshot for one client instance. The JS
// reference relied on a single-threaded event loop; here stream
// delivery, reloads, and command calls run on different goroutines, so
// the snapshot is guarded by a RWMutex. Accessors hand out copies,
// never references into the snapshot.
type stateStore struct {
	mu   sync.RWMutex
	snap snapshot
}

// applySnapshot replaces the current snapshot wholesale. It is the sole
// mutation path for flows and the only one that may shrink the user
// index.
func (s *stateStore) applySnapshot(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// recordUser inserts or overwrites a single entry in the user index
// without touching any other snapshot field. Used when a join event
// reveals a previously unknown user.
func (s *stateStore) recordUser(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.usersByID == nil {
		s.snap.usersByID = make(map[string]User)
	}
	s.snap.usersByID[user.ID] = user
}

func (s *stateStore) currentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.userID
}

// flowList returns a copy of the current flow list. Member lists are
// copied too, so mutating a returned Flow cannot write into the
// snapshot.
func (s *stateStore) flowList() []Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flows := make([]Flow, len(s.snap.flows))
	copy(flows, s.snap.flows)
	for i := range flows {
		flows[i].Users = slices.Clone(flows[i].Users)
	}
	return flows
}

func (s *stateStore) flowByID(id string) (Flow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flow, ok := s.snap.flowsByID[id]
	if !ok {
		return Flow{}, false
	}
	return *flow, true
}

func (s *stateStore) userByID(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.snap.usersByID[id]
	return user, ok
}

// counts returns the current flow and user index sizes, for load event
// reporting.
func (s *stateStore) counts() (flows, users int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snap.flows), len(s.snap.usersByID)
}
