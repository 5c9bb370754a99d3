package geocoding

import (
	"context"

	"github.com/lopatinay/dokka/internal/models"
)

// Provider is an interface that defines a method for reverse geocoding.
// ReverseGeocode takes a context and a coordinate pair as input, and returns
// the human-readable address for that location, or an error if any occurs.
type Provider interface {
	ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error)
}
