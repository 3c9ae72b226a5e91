package mapstyle

import "github.com/streetside/panoview/internal/observe"

// Store owns the ConfigurationState. Mutations are expected to come from the
// core lane only; reads and subscriptions are safe from anywhere.
type Store struct {
	state *observe.Value[State]
}

// NewStore returns a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: observe.NewValue(initial)}
}

// State returns the current selection.
func (s *Store) State() State {
	return s.state.Get()
}

// Set replaces the whole selection. It reports whether anything changed.
func (s *Store) Set(st State) bool {
	return s.state.Set(st)
}

// Subscribe registers fn for every committed change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}
