package scene

import "github.com/streetside/panoview/internal/observe"

// State is what the panorama surface observes. Current is nil when no scene
// is displayed; ProducingRequestID is 0 exactly when Current is nil.
type State struct {
	Current            *Scene
	ProducingRequestID uint64
}

// Displayed reports whether a scene is showing.
func (s State) Displayed() bool {
	return s.Current != nil
}

// Store owns the SceneState.
type Store struct {
	state *observe.Value[State]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: observe.NewValue(State{})}
}

// State returns the current scene state.
func (s *Store) State() State {
	return s.state.Get()
}

// Show displays sc as the product of request id. A nil scene clears.
func (s *Store) Show(sc *Scene, requestID uint64) {
	if sc == nil {
		s.Clear()
		return
	}
	s.state.Set(State{Current: sc, ProducingRequestID: requestID})
}

// Clear hides any displayed scene.
func (s *Store) Clear() {
	s.state.Set(State{})
}

// Subscribe registers fn for every committed change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}
