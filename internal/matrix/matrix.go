package matrix

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"fleetroute/internal/model"
)

// Location is one service point. Index 0 is the depot.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Data is the precomputed matrix file: directed travel times in
// seconds and distances in kilometers over the same location set.
type Data struct {
	Locations      []Location   `json:"locations"`
	TimeMatrix     model.Matrix `json:"time_matrix"`
	DistanceMatrix model.Matrix `json:"distance_matrix"`
}

func Load(r io.Reader) (Data, error) {
	var d Data
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Data{}, fmt.Errorf("matrix: decode: %w", err)
	}
	if err := d.validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

func LoadFile(path string) (Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return Data{}, fmt.Errorf("matrix: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (d Data) validate() error {
	n := len(d.Locations)
	if n == 0 {
		return fmt.Errorf("matrix: no locations")
	}
	if err := square(d.TimeMatrix, n, "time_matrix"); err != nil {
		return err
	}
	return square(d.DistanceMatrix, n, "distance_matrix")
}

func square(m model.Matrix, n int, name string) error {
	if len(m) != n {
		return fmt.Errorf("matrix: %s has %d rows for %d locations", name, len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("matrix: %s row %d has %d columns, want %d", name, i, len(row), n)
		}
		for j, v := range row {
			if v < 0 {
				return fmt.Errorf("matrix: %s[%d][%d] is negative", name, i, j)
			}
		}
	}
	return nil
}
