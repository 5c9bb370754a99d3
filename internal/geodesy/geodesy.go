// Package geodesy computes great-circle distances between geographic
// coordinates. All functions are pure and deterministic, so both the
// synchronous and the queued compute paths produce identical results for
// identical input.
package geodesy

import (
	"math"

	"github.com/lopatinay/dokka/internal/models"
)

// earthRadiusMeters is the WGS84 equatorial radius used by the haversine formula.
const earthRadiusMeters = 6378137.0

// Compute returns the great-circle distance between a and b in meters,
// using the haversine formula. It is symmetric and Compute(a, a) == 0.
func Compute(a, b models.CoordinateRecord) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// ComputeAll returns the distance for every unordered pair of records.
// Pairing policy: all pairs (i, j) with i < j, emitted in row order, so the
// result holds n*(n-1)/2 entries for n records and the sequence is fully
// determined by the input order.
func ComputeAll(records []models.CoordinateRecord) []models.DistancePair {
	if len(records) < 2 {
		return nil
	}

	pairs := make([]models.DistancePair, 0, len(records)*(len(records)-1)/2)
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			pairs = append(pairs, models.DistancePair{
				From:     records[i],
				To:       records[j],
				Distance: Compute(records[i], records[j]),
				Unit:     models.UnitMeters,
			})
		}
	}

	return pairs
}
