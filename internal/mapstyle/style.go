// Package mapstyle holds the user's map style selection and resolves it into
// the render configuration applied to the map surface.
package mapstyle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStyle is returned when a style name cannot be parsed.
var ErrUnknownStyle = errors.New("unknown style")

// MapStyle selects the base map.
type MapStyle int

const (
	Standard MapStyle = iota
	Hybrid
	Imagery
)

// ElevationStyle selects how terrain and buildings are drawn.
type ElevationStyle int

const (
	Realistic ElevationStyle = iota
	Flat
)

// EmphasisStyle selects how points of interest and roads are drawn.
type EmphasisStyle int

const (
	DefaultEmphasis EmphasisStyle = iota
	Muted
)

var (
	mapStyleNames       = []string{"standard", "hybrid", "imagery"}
	elevationStyleNames = []string{"realistic", "flat"}
	emphasisStyleNames  = []string{"default", "muted"}
)

func name(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func parse(names []string, kind, s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s %q", ErrUnknownStyle, kind, s)
}

func (s MapStyle) String() string       { return name(mapStyleNames, int(s)) }
func (s ElevationStyle) String() string { return name(elevationStyleNames, int(s)) }
func (s EmphasisStyle) String() string  { return name(emphasisStyleNames, int(s)) }

// Next cycles to the following map style, wrapping around.
func (s MapStyle) Next() MapStyle { return MapStyle((int(s.normalize()) + 1) % len(mapStyleNames)) }

// Next cycles to the following elevation style, wrapping around.
func (s ElevationStyle) Next() ElevationStyle {
	return ElevationStyle((int(s.normalize()) + 1) % len(elevationStyleNames))
}

// Next cycles to the following emphasis style, wrapping around.
func (s EmphasisStyle) Next() EmphasisStyle {
	return EmphasisStyle((int(s.normalize()) + 1) % len(emphasisStyleNames))
}

// Out-of-range values behave as the first enumerator.
func (s MapStyle) normalize() MapStyle {
	if s < Standard || s > Imagery {
		return Standard
	}
	return s
}

func (s ElevationStyle) normalize() ElevationStyle {
	if s < Realistic || s > Flat {
		return Realistic
	}
	return s
}

func (s EmphasisStyle) normalize() EmphasisStyle {
	if s < DefaultEmphasis || s > Muted {
		return DefaultEmphasis
	}
	return s
}

// ParseMapStyle parses "standard", "hybrid" or "imagery".
func ParseMapStyle(s string) (MapStyle, error) {
	i, err := parse(mapStyleNames, "map style", s)
	return MapStyle(i), err
}

// ParseElevationStyle parses "realistic" or "flat".
func ParseElevationStyle(s string) (ElevationStyle, error) {
	i, err := parse(elevationStyleNames, "elevation style", s)
	return ElevationStyle(i), err
}

// ParseEmphasisStyle parses "default" or "muted".
func ParseEmphasisStyle(s string) (EmphasisStyle, error) {
	i, err := parse(emphasisStyleNames, "emphasis style", s)
	return EmphasisStyle(i), err
}

// State is the user's style selection. The zero value is
// {Standard, Realistic, DefaultEmphasis}.
type State struct {
	Map       MapStyle
	Elevation ElevationStyle
	Emphasis  EmphasisStyle
}

func (s State) String() string {
	return fmt.Sprintf("map=%s elevation=%s emphasis=%s", s.Map, s.Elevation, s.Emphasis)
}

// ParseState parses the three style names at once.
func ParseState(mapStyle, elevation, emphasis string) (State, error) {
	var st State
	var err error
	if st.Map, err = ParseMapStyle(mapStyle); err != nil {
		return State{}, err
	}
	if st.Elevation, err = ParseElevationStyle(elevation); err != nil {
		return State{}, err
	}
	if st.Emphasis, err = ParseEmphasisStyle(emphasis); err != nil {
		return State{}, err
	}
	return st, nil
}
