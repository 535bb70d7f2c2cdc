package tables

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

// Events table columns.
const (
	ColDatetime        = "datetime"
	ColCity            = "city"
	ColState           = "state"
	ColCountry         = "country"
	ColShape           = "shape"
	ColDurationSeconds = "duration (seconds)"
	ColDurationText    = "duration (hours/min)"
	ColComments        = "comments"
	ColDatePosted      = "date posted"
	ColLatitude        = "latitude"
	ColLongitude       = "longitude"
	ColStateFull       = "state_full"
	ColSightingID      = "sighting_id"
)

// Population table columns.
const (
	ColAreaName   = "Area_Name"
	ColPopulation = "CENSUS_2020_POP"
)

// EventColumns lists the events header in file order.
var EventColumns = []string{
	ColDatetime, ColCity, ColState, ColCountry, ColShape, ColDurationSeconds,
	ColDurationText, ColComments, ColDatePosted, ColLatitude, ColLongitude,
	ColStateFull, ColSightingID,
}

// PopulationColumns lists the population header in file order.
var PopulationColumns = []string{ColAreaName, ColPopulation}

var requiredEventColumns = []string{ColStateFull, ColLatitude, ColLongitude, ColDurationSeconds, ColSightingID}

var datetimeLayouts = []string{
	"1/2/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

type header map[string]int

func newHeader(row []string, required []string) (header, error) {
	h := make(header, len(row))
	for i, name := range row {
		// Tolerate a UTF-8 BOM on the first column; matching is otherwise exact.
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		h[name] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return h, nil
}

func (h header) get(rec []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// ParseEvents maps rows onto EventRecords. Every row is kept: values that
// fail to parse are recorded as invalid (NaN coordinates and duration,
// IDValid false) so aggregation still counts the row.
func ParseEvents(records [][]string) ([]domain.EventRecord, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("parse events: empty table")
	}
	h, err := newHeader(records[0], requiredEventColumns)
	if err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}

	out := make([]domain.EventRecord, 0, len(records)-1)
	for _, rec := range records[1:] {
		id, idOK := parseID(h.get(rec, ColSightingID))
		out = append(out, domain.EventRecord{
			ID:              id,
			IDValid:         idOK,
			Region:          h.get(rec, ColStateFull),
			State:           h.get(rec, ColState),
			City:            h.get(rec, ColCity),
			Country:         h.get(rec, ColCountry),
			Shape:           h.get(rec, ColShape),
			Comments:        h.get(rec, ColComments),
			Lat:             parseNumber(h.get(rec, ColLatitude)),
			Lon:             parseNumber(h.get(rec, ColLongitude)),
			DurationSeconds: parseNumber(h.get(rec, ColDurationSeconds)),
			DurationText:    h.get(rec, ColDurationText),
			OccurredAt:      parseDatetime(h.get(rec, ColDatetime)),
			DatePosted:      h.get(rec, ColDatePosted),
		})
	}
	return out, nil
}

// ParsePopulation maps rows onto PopulationRecords. Rows without a name or
// with a non-numeric count are skipped and counted in invalid.
func ParsePopulation(records [][]string) (out []domain.PopulationRecord, invalid int, err error) {
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("parse population: empty table")
	}
	h, err := newHeader(records[0], PopulationColumns)
	if err != nil {
		return nil, 0, fmt.Errorf("parse population: %w", err)
	}

	out = make([]domain.PopulationRecord, 0, len(records)-1)
	for _, rec := range records[1:] {
		name := strings.TrimSpace(h.get(rec, ColAreaName))
		pop := parseNumber(strings.ReplaceAll(h.get(rec, ColPopulation), ",", ""))
		if name == "" || math.IsNaN(pop) {
			invalid++
			continue
		}
		out = append(out, domain.PopulationRecord{Region: name, Population: pop})
	}
	return out, invalid, nil
}

// parseNumber returns NaN for blank or non-numeric input.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseID accepts integers, including integral floats such as "12.0".
func parseID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	v := parseNumber(s)
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > 1<<53 {
		return 0, false
	}
	return int64(v), true
}

func parseDatetime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
