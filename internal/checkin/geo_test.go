package checkin

import (
	"math"
	"testing"
)

func TestDistanceMeters(t *testing.T) {
	t.Run("zero distance", func(t *testing.T) {
		if d := DistanceMeters(39.9042, 116.4074, 39.9042, 116.4074); d != 0 {
			t.Errorf("distance to self = %f, want 0", d)
		}
	})

	t.Run("one millidegree of latitude", func(t *testing.T) {
		// 0.001 deg of latitude is ~111.19 m everywhere on the sphere.
		d := DistanceMeters(39.9042, 116.4074, 39.9052, 116.4074)
		if math.Abs(d-111.19) > 0.5 {
			t.Errorf("distance = %f, want ~111.19", d)
		}
	})

	t.Run("symmetry", func(t *testing.T) {
		a := DistanceMeters(31.2304, 121.4737, 39.9042, 116.4074)
		b := DistanceMeters(39.9042, 116.4074, 31.2304, 121.4737)
		if math.Abs(a-b) > 1e-6 {
			t.Errorf("asymmetric distance: %f vs %f", a, b)
		}
	})
}

func TestWithinRadius(t *testing.T) {
	venueLat, venueLng := 39.9042, 116.4074
	cases := []struct {
		name     string
		lat, lng float64
		radius   float64
		want     bool
	}{
		{"at venue", venueLat, venueLng, 100, true},
		{"inside fence", 39.9046, 116.4074, 100, true},
		{"outside fence", 39.9142, 116.4074, 100, false},
		{"boundary generous", 39.9050, 116.4074, 100, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithinRadius(venueLat, venueLng, tc.radius, tc.lat, tc.lng); got != tc.want {
				t.Errorf("WithinRadius = %v, want %v", got, tc.want)
			}
		})
	}
}
