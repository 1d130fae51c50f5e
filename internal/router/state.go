package router

import "sync"

// State is a conversation state of a chat
type State string

const (
	StateNone        State = ""
	StateWaitingRole State = "waiting_role"
)

// StateStore keeps the conversation state of each chat in memory.
type StateStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewStateStore returns an empty store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[int64]State)}
}

// Get returns the state of chatID, StateNone when unset.
func (s *StateStore) Get(chatID int64) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[chatID]
}

// Set records the state of chatID.
func (s *StateStore) Set(chatID int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = state
}

// Reset returns chatID to StateNone.
func (s *StateStore) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
}

// RoleStore keeps the AI role override of each chat in memory.
type RoleStore struct {
	mu    sync.RWMutex
	roles map[int64]string
}

// NewRoleStore returns an empty store.
func NewRoleStore() *RoleStore {
	return &RoleStore{roles: make(map[int64]string)}
}

// Get returns the role of chatID, empty when the default persona applies.
func (r *RoleStore) Get(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[chatID]
}

// Set stores role for chatID. An empty role restores the default persona.
func (r *RoleStore) Set(chatID int64, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role == "" {
		delete(r.roles, chatID)
		return
	}
	r.roles[chatID] = role
}

// Len returns the number of chats with a custom role.
func (r *RoleStore) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roles)
}
