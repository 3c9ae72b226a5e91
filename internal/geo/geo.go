package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Coordinates are WGS84 (EPSG:4326) degrees. Persisted geometry is always
// projected to EPSG:3857 and stored as WKB, matching what map tiles use.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Coordinate is an immutable WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// ParseCoordinate parses a string in the format "lat,long".
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coordinate{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, ErrInvalidCoordinates
	}
	c := Coordinate{Latitude: lat, Longitude: long}
	if !c.Valid() {
		return Coordinate{}, ErrInvalidCoordinates
	}
	return c, nil
}

// MaxMercatorLatitude bounds the latitudes Web Mercator can represent.
const MaxMercatorLatitude = 85.05112878

// Point3857 projects the coordinate to Web Mercator. Latitudes beyond
// MaxMercatorLatitude, the poles included, have no finite projection and
// yield ErrInvalidCoordinates.
func (c Coordinate) Point3857() (geom.Point, error) {
	if !c.Valid() || math.Abs(c.Latitude) > MaxMercatorLatitude {
		return geom.Point{}, fmt.Errorf("projecting %s to EPSG:3857: %w", c, ErrInvalidCoordinates)
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(c.Longitude, c.Latitude, 0)
	if math.IsInf(x, 0) || math.IsInf(y, 0) || math.IsNaN(x) || math.IsNaN(y) {
		return geom.Point{}, fmt.Errorf("projecting %s to EPSG:3857: %w", c, ErrInvalidCoordinates)
	}
	p, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("projecting %s to EPSG:3857: %w", c, err)
	}
	return p, nil
}
