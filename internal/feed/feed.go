package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"fleetroute/internal/model"
)

// Arrival is one order arrival from the preprocessed history feed.
type Arrival struct {
	Order  model.Order
	Day    int
	Minute int
}

// Load reads an arrivals CSV and returns the arrivals for the given
// day of year, sorted by minute of day. Columns: order_id,
// location_index, demand, day_of_year, minute_of_day. A header row is
// detected and skipped.
func Load(r io.Reader, day int) ([]Arrival, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5

	var out []Arrival
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("feed: read: %w", err)
		}
		line++
		if line == 1 && rec[0] == "order_id" {
			continue
		}
		a, err := parseArrival(rec)
		if err != nil {
			return nil, fmt.Errorf("feed: line %d: %w", line, err)
		}
		if a.Day != day {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Minute < out[j].Minute })
	return out, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string, day int) ([]Arrival, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	defer f.Close()
	return Load(f, day)
}

func parseArrival(rec []string) (Arrival, error) {
	loc, err := strconv.Atoi(rec[1])
	if err != nil {
		return Arrival{}, fmt.Errorf("location_index %q: %w", rec[1], err)
	}
	demand, err := strconv.Atoi(rec[2])
	if err != nil {
		return Arrival{}, fmt.Errorf("demand %q: %w", rec[2], err)
	}
	day, err := strconv.Atoi(rec[3])
	if err != nil {
		return Arrival{}, fmt.Errorf("day_of_year %q: %w", rec[3], err)
	}
	minute, err := strconv.Atoi(rec[4])
	if err != nil {
		return Arrival{}, fmt.Errorf("minute_of_day %q: %w", rec[4], err)
	}
	if rec[0] == "" {
		return Arrival{}, fmt.Errorf("empty order_id")
	}
	if minute < 0 || minute >= 24*60 {
		return Arrival{}, fmt.Errorf("minute_of_day %d out of range", minute)
	}
	return Arrival{
		Order:  model.Order{ID: rec[0], Location: loc, Demand: demand},
		Day:    day,
		Minute: minute,
	}, nil
}
