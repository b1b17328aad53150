package checkin

import "math"

// earthRadiusMeters is the mean Earth radius used for haversine distance.
const earthRadiusMeters = 6371000

// DistanceMeters returns the great-circle distance between two WGS84
// coordinates using the haversine formula. Accurate to well under a meter at
// venue scale, which is all the geofence needs.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// WithinRadius reports whether the point is inside the venue geofence.
func WithinRadius(venueLat, venueLng, radius, lat, lng float64) bool {
	return DistanceMeters(venueLat, venueLng, lat, lng) <= radius
}
