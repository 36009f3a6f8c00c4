package geo

import (
	"math"
	"strings"

	"github.com/golang/geo/s2"

	"github.com/ftl/wsprglobe/core"
)

// EarthRadiusKm is the mean earth radius used for all distances.
const EarthRadiusKm = 6371.0

// GridToLatLng returns the center of the given Maidenhead grid square. Four characters resolve to the 2°×1° square,
// six or more characters to the 5'×2.5' subsquare. Characters beyond the sixth are ignored.
func GridToLatLng(locator string) (core.LatLng, bool) {
	grid := strings.ToUpper(strings.TrimSpace(locator))
	if len(grid) < 4 {
		return core.LatLng{}, false
	}
	if !between(grid[0], 'A', 'R') || !between(grid[1], 'A', 'R') {
		return core.LatLng{}, false
	}
	if !between(grid[2], '0', '9') || !between(grid[3], '0', '9') {
		return core.LatLng{}, false
	}

	lng := float64(grid[0]-'A')*20 - 180 + float64(grid[2]-'0')*2
	lat := float64(grid[1]-'A')*10 - 90 + float64(grid[3]-'0')

	if len(grid) < 6 {
		return core.LatLng{Lat: lat + 0.5, Lng: lng + 1}, true
	}
	if !between(grid[4], 'A', 'X') || !between(grid[5], 'A', 'X') {
		return core.LatLng{}, false
	}

	lng += float64(grid[4]-'A') * (2.0 / 24.0)
	lat += float64(grid[5]-'A') * (1.0 / 24.0)
	return core.LatLng{Lat: lat + 0.5/24.0, Lng: lng + 1.0/24.0}, true
}

func between(c, from, to byte) bool {
	return c >= from && c <= to
}

// DistanceKm returns the great-circle distance between the two coordinates, rounded to the nearest km.
func DistanceKm(a, b core.LatLng) int {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return int(math.Floor(p1.Distance(p2).Radians()*EarthRadiusKm + 0.5))
}

// LocatorDistanceKm returns the distance between the centers of the two grid squares.
func LocatorDistanceKm(a, b string) (int, bool) {
	p1, ok := GridToLatLng(a)
	if !ok {
		return 0, false
	}
	p2, ok := GridToLatLng(b)
	if !ok {
		return 0, false
	}
	return DistanceKm(p1, p2), true
}
