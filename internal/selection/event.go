package selection

import (
	"fmt"

	"github.com/streetside/panoview/internal/geo"
)

// Event is what the map surface reports: Selected or Deselected.
type Event interface {
	isSelectionEvent()
}

// Selected is emitted when the user picks an annotation.
type Selected struct {
	Coordinate geo.Coordinate
}

// Deselected is emitted when the user dismisses the current annotation.
type Deselected struct{}

func (Selected) isSelectionEvent()   {}
func (Deselected) isSelectionEvent() {}

func (e Selected) String() string { return fmt.Sprintf("Selected(%s)", e.Coordinate) }
func (Deselected) String() string { return "Deselected()" }

// Phase is the coordinator's position in the selection lifecycle.
type Phase int

const (
	Idle Phase = iota
	Requesting
	Displayed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Displayed:
		return "displayed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
