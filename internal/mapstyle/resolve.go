package mapstyle

import "fmt"

// Base is the tile family the map surface renders.
type Base string

const (
	BaseStandard Base = "standard"
	BaseHybrid   Base = "hybrid"
	BaseImagery  Base = "imagery"
)

// Elevation is the terrain rendering hint.
type Elevation string

const (
	ElevationRelief3D Elevation = "relief-3d"
	ElevationFlat     Elevation = "flat"
)

// Emphasis is the point-of-interest and road treatment. Only standard maps
// carry one; imagery based maps use EmphasisNone.
type Emphasis string

const (
	EmphasisNone       Emphasis = ""
	EmphasisHighlight  Emphasis = "highlight"
	EmphasisDesaturate Emphasis = "desaturate"
)

// RenderConfiguration is what the map surface applies. It is a comparable
// value with no identity, so it is always safe to recompute and reapply.
type RenderConfiguration struct {
	Base      Base
	Elevation Elevation
	Emphasis  Emphasis
	// Labels reports whether road and place labels are drawn over the base.
	Labels bool
}

func (c RenderConfiguration) String() string {
	if c.Emphasis == EmphasisNone {
		return fmt.Sprintf("%s/%s labels=%t", c.Base, c.Elevation, c.Labels)
	}
	return fmt.Sprintf("%s/%s/%s labels=%t", c.Base, c.Elevation, c.Emphasis, c.Labels)
}

// Resolve maps a style selection to a render configuration. It is pure and
// total: every State, including out-of-range enumerator values, resolves.
func Resolve(s State) RenderConfiguration {
	elevation := ElevationRelief3D
	if s.Elevation.normalize() == Flat {
		elevation = ElevationFlat
	}

	switch s.Map.normalize() {
	case Hybrid:
		return RenderConfiguration{Base: BaseHybrid, Elevation: elevation, Labels: true}
	case Imagery:
		return RenderConfiguration{Base: BaseImagery, Elevation: elevation}
	default:
		emphasis := EmphasisHighlight
		if s.Emphasis.normalize() == Muted {
			emphasis = EmphasisDesaturate
		}
		return RenderConfiguration{Base: BaseStandard, Elevation: elevation, Emphasis: emphasis, Labels: true}
	}
}
