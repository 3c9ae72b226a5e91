package selection

import (
	"errors"
	"fmt"

	"github.com/streetside/panoview/internal/geo"
)

// ErrEmptyResult is wrapped when a provider reports success without a scene.
var ErrEmptyResult = errors.New("provider returned no scene")

// LookupError is the only error the coordinator produces: the scene provider
// failed or found nothing for the coordinate of request RequestID.
type LookupError struct {
	RequestID  uint64
	Coordinate geo.Coordinate
	Err        error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("scene lookup %d at %s: %v", e.RequestID, e.Coordinate, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
