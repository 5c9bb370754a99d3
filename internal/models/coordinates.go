package models

// Coordinates represents a geographical point defined by its latitude and longitude.
type Coordinates struct {
	Latitude  float64 // Latitude of the geographical point.
	Longitude float64 // Longitude of the geographical point.
}

// CoordinateRecord is a single validated row from an uploaded CSV file.
// Row is the 1-based index of the data row in the original upload and is
// preserved end-to-end so result ordering matches input ordering.
type CoordinateRecord struct {
	Name      string  `json:"name,omitempty"` // Name is the optional point label from the "Point" column.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Row       int     `json:"row"`
}

// DistanceUnit is the unit of a computed distance.
type DistanceUnit string

// UnitMeters is the only unit the engine produces.
const UnitMeters DistanceUnit = "meters"

// DistancePair holds the computed distance between two coordinate records.
// It is immutable once computed.
type DistancePair struct {
	From     CoordinateRecord `json:"from"`
	To       CoordinateRecord `json:"to"`
	Distance float64          `json:"distance"`
	Unit     DistanceUnit     `json:"unit"`
}

// ParseError describes a single malformed row in an upload. Malformed rows
// are excluded from computation but reported alongside the result.
type ParseError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
