// Package parser turns raw uploaded CSV bytes into validated coordinate
// records. A bad row never fails the whole batch; it is collected as a
// ParseError and excluded from the valid-record sequence.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lopatinay/dokka/internal/models"
)

// ErrInvalidInputFormat is returned when the entire input is unusable:
// empty payload, unreadable header, missing coordinate columns, or no data rows.
var ErrInvalidInputFormat = errors.New("invalid input format")

// Column names recognized in the upload header (case-insensitive).
const (
	columnName      = "point"
	columnLatitude  = "latitude"
	columnLongitude = "longitude"
)

// Latitude/longitude bounds in decimal degrees.
const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
)

// Parse reads a CSV upload with a "Point,Latitude,Longitude" style header
// (the Point column is optional) and returns the valid coordinate records in
// input order together with the per-row parse errors. The returned error is
// non-nil only when the whole input is unreadable, in which case it wraps
// ErrInvalidInputFormat.
func Parse(raw []byte) ([]models.CoordinateRecord, []models.ParseError, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, fmt.Errorf("%w: empty payload", ErrInvalidInputFormat)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: unreadable header: %v", ErrInvalidInputFormat, err)
	}

	nameIdx, latIdx, lonIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case columnName, "name":
			nameIdx = i
		case columnLatitude, "lat":
			latIdx = i
		case columnLongitude, "lon", "lng":
			lonIdx = i
		}
	}
	if latIdx < 0 || lonIdx < 0 {
		return nil, nil, fmt.Errorf("%w: header must contain latitude and longitude columns", ErrInvalidInputFormat)
	}

	var (
		records   []models.CoordinateRecord
		parseErrs []models.ParseError
		row       int
	)

	for {
		fields, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		row++
		if readErr != nil {
			// csv.Reader recovers at the next line, so a malformed row
			// stays a per-row error rather than a batch failure.
			parseErrs = append(parseErrs, models.ParseError{Row: row, Reason: readErr.Error()})
			continue
		}

		record, rowErr := parseRow(fields, nameIdx, latIdx, lonIdx, row)
		if rowErr != nil {
			parseErrs = append(parseErrs, models.ParseError{Row: row, Reason: rowErr.Error()})
			continue
		}
		records = append(records, record)
	}

	if row == 0 {
		return nil, nil, fmt.Errorf("%w: no data rows", ErrInvalidInputFormat)
	}

	return records, parseErrs, nil
}

// parseRow validates a single data row against the resolved column indexes.
func parseRow(fields []string, nameIdx, latIdx, lonIdx, row int) (models.CoordinateRecord, error) {
	if latIdx >= len(fields) || lonIdx >= len(fields) {
		return models.CoordinateRecord{}, errors.New("missing coordinate fields")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[latIdx]), 64)
	if err != nil {
		return models.CoordinateRecord{}, fmt.Errorf("invalid latitude %q", fields[latIdx])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[lonIdx]), 64)
	if err != nil {
		return models.CoordinateRecord{}, fmt.Errorf("invalid longitude %q", fields[lonIdx])
	}

	if lat < minLatitude || lat > maxLatitude {
		return models.CoordinateRecord{}, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lon < minLongitude || lon > maxLongitude {
		return models.CoordinateRecord{}, fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}

	var name string
	if nameIdx >= 0 && nameIdx < len(fields) {
		name = strings.TrimSpace(fields[nameIdx])
	}

	return models.CoordinateRecord{
		Name:      name,
		Latitude:  lat,
		Longitude: lon,
		Row:       row,
	}, nil
}
