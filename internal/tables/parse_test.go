package tables

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventRows(rows ...[]string) [][]string {
	return append([][]string{EventColumns}, rows...)
}

func TestParseEvents(t *testing.T) {
	records := eventRows(
		[]string{"10/10/1949 20:30", "san marcos", "tx", "us", "cylinder", "2700", "45 minutes", "This event took place", "4/27/2004", "29.8830556", "-97.9411111", "Texas", "1"},
		[]string{"", "", "pa", "us", "light", "0", "", "", "", "40", "-75", " Pennsylvania ", "2.0"},
		[]string{"", "", "", "", "", "abc", "", "", "", "", "n/a", "Ohio", "x7"},
	)

	got, err := ParseEvents(records)
	require.NoError(t, err)
	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, int64(1), first.ID)
	assert.True(t, first.IDValid)
	assert.Equal(t, "Texas", first.Region)
	assert.Equal(t, "tx", first.State)
	assert.Equal(t, "san marcos", first.City)
	assert.Equal(t, "cylinder", first.Shape)
	assert.Equal(t, 2700.0, first.DurationSeconds)
	assert.Equal(t, "45 minutes", first.DurationText)
	assert.InDelta(t, 29.8830556, first.Lat, 1e-9)
	assert.InDelta(t, -97.9411111, first.Lon, 1e-9)
	assert.Equal(t, time.Date(1949, 10, 10, 20, 30, 0, 0, time.UTC), first.OccurredAt)
	assert.Equal(t, "4/27/2004", first.DatePosted)
	assert.True(t, first.Plottable())

	second := got[1]
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, " Pennsylvania ", second.Region, "trimming is the aggregator's job")
	assert.False(t, second.Plottable(), "zero duration")
	assert.True(t, second.OccurredAt.IsZero())

	third := got[2]
	assert.False(t, third.IDValid)
	assert.True(t, math.IsNaN(third.Lat))
	assert.True(t, math.IsNaN(third.Lon))
	assert.True(t, math.IsNaN(third.DurationSeconds))
	assert.Equal(t, "Ohio", third.Region)
}

func TestParseEvents_ColumnsAreCaseSensitive(t *testing.T) {
	_, err := ParseEvents([][]string{{"Latitude", "longitude", "state_full", "duration (seconds)", "sighting_id"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude")
}

func TestParseEvents_ShortRowsAndBOM(t *testing.T) {
	records := [][]string{
		{"\ufeffsighting_id", "state_full", "latitude", "longitude", "duration (seconds)"},
		{"5", "Iowa"},
	}
	got, err := ParseEvents(records)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].ID)
	assert.Equal(t, "Iowa", got[0].Region)
	assert.False(t, got[0].HasCoordinates())
}

func TestParseEvents_Empty(t *testing.T) {
	_, err := ParseEvents(nil)
	require.Error(t, err)
}

func TestParsePopulation(t *testing.T) {
	records := [][]string{
		PopulationColumns,
		{"Pennsylvania", "13002700"},
		{" Texas ", "29,145,505"},
		{"", "100"},
		{"Nowhere", "unknown"},
	}

	got, invalid, err := ParsePopulation(records)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Pennsylvania", got[0].Region)
	assert.Equal(t, 13002700.0, got[0].Population)
	assert.Equal(t, "Texas", got[1].Region)
	assert.Equal(t, 29145505.0, got[1].Population)
	assert.Equal(t, 2, invalid)
}

func TestParsePopulation_MissingColumn(t *testing.T) {
	_, _, err := ParsePopulation([][]string{{"area_name", "CENSUS_2020_POP"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Area_Name")
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"42", 42, true},
		{" 7 ", 7, true},
		{"12.0", 12, true},
		{"-3", -3, true},
		{"12.5", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"1e300", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
