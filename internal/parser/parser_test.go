package parser_test

import (
	"testing"

	"github.com/lopatinay/dokka/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("success - all rows valid", func(t *testing.T) {
		t.Parallel()
		raw := []byte("Point,Latitude,Longitude\nA,50.4501,30.5234\nB,49.8397,24.0297\n")

		records, parseErrs, err := parser.Parse(raw)

		require.NoError(t, err)
		require.Empty(t, parseErrs)
		require.Len(t, records, 2)
		assert.Equal(t, "A", records[0].Name)
		assert.InEpsilon(t, 50.4501, records[0].Latitude, 1e-9)
		assert.InEpsilon(t, 30.5234, records[0].Longitude, 1e-9)
		assert.Equal(t, 1, records[0].Row)
		assert.Equal(t, "B", records[1].Name)
		assert.Equal(t, 2, records[1].Row)
	})

	t.Run("success - malformed rows collected, not fatal", func(t *testing.T) {
		t.Parallel()
		raw := []byte("Point,Latitude,Longitude\n" +
			"A,50.4501,30.5234\n" +
			"B,not-a-number,24.0297\n" +
			"C,48.9226,24.7111\n" +
			"D,91.5,10.0\n" +
			"E,46.4825,30.7233\n")

		records, parseErrs, err := parser.Parse(raw)

		require.NoError(t, err)
		require.Len(t, records, 3)
		require.Len(t, parseErrs, 2)
		assert.Equal(t, 2, parseErrs[0].Row)
		assert.Contains(t, parseErrs[0].Reason, "invalid latitude")
		assert.Equal(t, 4, parseErrs[1].Row)
		assert.Contains(t, parseErrs[1].Reason, "out of range")
		// valid rows keep their original positions
		assert.Equal(t, []int{1, 3, 5}, []int{records[0].Row, records[1].Row, records[2].Row})
	})

	t.Run("success - missing fields reported per row", func(t *testing.T) {
		t.Parallel()
		raw := []byte("Point,Latitude,Longitude\nA,50.4501\nB,49.8397,24.0297\n")

		records, parseErrs, err := parser.Parse(raw)

		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Len(t, parseErrs, 1)
		assert.Equal(t, 1, parseErrs[0].Row)
		assert.Equal(t, "missing coordinate fields", parseErrs[0].Reason)
	})

	t.Run("success - header without point column", func(t *testing.T) {
		t.Parallel()
		raw := []byte("Latitude,Longitude\n50.4501,30.5234\n")

		records, parseErrs, err := parser.Parse(raw)

		require.NoError(t, err)
		require.Empty(t, parseErrs)
		require.Len(t, records, 1)
		assert.Empty(t, records[0].Name)
	})

	t.Run("success - out of range longitude excluded", func(t *testing.T) {
		t.Parallel()
		raw := []byte("Point,Latitude,Longitude\nA,10.0,181.0\nB,10.0,179.0\n")

		records, parseErrs, err := parser.Parse(raw)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "B", records[0].Name)
		require.Len(t, parseErrs, 1)
		assert.Contains(t, parseErrs[0].Reason, "longitude")
	})

	t.Run("error - empty payload", func(t *testing.T) {
		t.Parallel()
		_, _, err := parser.Parse([]byte("  \n "))

		require.Error(t, err)
		require.ErrorIs(t, err, parser.ErrInvalidInputFormat)
	})

	t.Run("error - missing coordinate columns", func(t *testing.T) {
		t.Parallel()
		_, _, err := parser.Parse([]byte("foo,bar\n1,2\n"))

		require.Error(t, err)
		require.ErrorIs(t, err, parser.ErrInvalidInputFormat)
		require.ErrorContains(t, err, "latitude and longitude")
	})

	t.Run("error - header only, no data rows", func(t *testing.T) {
		t.Parallel()
		_, _, err := parser.Parse([]byte("Point,Latitude,Longitude\n"))

		require.Error(t, err)
		require.ErrorIs(t, err, parser.ErrInvalidInputFormat)
		require.ErrorContains(t, err, "no data rows")
	})

	t.Run("error - non-csv binary payload", func(t *testing.T) {
		t.Parallel()
		_, _, err := parser.Parse([]byte{0x1f, 0x8b, 0x08, 0x00})

		require.Error(t, err)
		require.ErrorIs(t, err, parser.ErrInvalidInputFormat)
	})
}
