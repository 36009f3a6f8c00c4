package geo

import (
	"math"
	"time"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/ftl/wsprglobe/core"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// SubsolarPoint returns the point on earth where the sun is in the zenith at the given time. The low precision
// solar coordinates are good enough for a visual day/night line.
func SubsolarPoint(t time.Time) core.LatLng {
	jd := float64(t.UnixMilli())/86400000.0 + 2440587.5
	n := jd - 2451545.0

	meanLongitude := normalize360(280.460 + 0.9856474*n)
	meanAnomaly := normalize360(357.528+0.9856003*n) * deg2rad

	lambda := (meanLongitude + 1.915*math.Sin(meanAnomaly) + 0.020*math.Sin(2*meanAnomaly)) * deg2rad
	epsilon := (23.439 - 0.0000004*n) * deg2rad

	declination := math.Asin(math.Sin(epsilon) * math.Sin(lambda))
	rightAscension := normalize360(math.Atan2(math.Cos(epsilon)*math.Sin(lambda), math.Cos(lambda)) * rad2deg)
	gmst := normalize360(280.46061837 + 360.98564736629*n)

	return core.LatLng{
		Lat: declination * rad2deg,
		Lng: normalize180(rightAscension - gmst),
	}
}

// Terminator returns the day/night line at the given time as a closed polyline with the given number of segments.
// All points are 90° away from the subsolar point.
func Terminator(t time.Time, segments int) []core.LatLng {
	if segments < 3 {
		segments = 3
	}
	sun := SubsolarPoint(t)
	center := s2.LatLngFromDegrees(sun.Lat, sun.Lng)
	distance := math.Pi / 2

	result := make([]core.LatLng, 0, segments+1)
	for i := 0; i <= segments; i++ {
		bearing := 2 * math.Pi * float64(i) / float64(segments)
		p := destination(center, bearing, distance)
		result = append(result, core.LatLng{Lat: p.Lat.Degrees(), Lng: normalize180(p.Lng.Degrees())})
	}
	return result
}

func destination(from s2.LatLng, bearing, angularDistance float64) s2.LatLng {
	lat := from.Lat.Radians()
	lng := from.Lng.Radians()

	lat2 := math.Asin(math.Sin(lat)*math.Cos(angularDistance) + math.Cos(lat)*math.Sin(angularDistance)*math.Cos(bearing))
	lng2 := lng + math.Atan2(
		math.Sin(bearing)*math.Sin(angularDistance)*math.Cos(lat),
		math.Cos(angularDistance)-math.Sin(lat)*math.Sin(lat2))

	return s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(lng2)}
}

// IsDaylight indicates if the sun is above the horizon at the given position.
func IsDaylight(p core.LatLng, t time.Time) bool {
	sun := SubsolarPoint(t)
	a := s2.LatLngFromDegrees(sun.Lat, sun.Lng)
	b := s2.LatLngFromDegrees(p.Lat, p.Lng)
	return a.Distance(b).Radians() < math.Pi/2
}

func normalize360(deg float64) float64 {
	result := math.Mod(deg, 360)
	if result < 0 {
		result += 360
	}
	return result
}

func normalize180(deg float64) float64 {
	result := math.Mod(deg+180, 360)
	if result < 0 {
		result += 360
	}
	return result - 180
}
