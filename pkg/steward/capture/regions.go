// Package capture provides the screen-source boundary: region
// configuration loaded once at startup, and text sources that produce
// the raw snapshot for each supervision tick. OCR itself happens in an
// external helper; this package only plumbs its output.
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Region is one monitored screen rectangle in absolute coordinates.
type Region struct {
	Name   string `json:"name,omitempty"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Valid reports whether the region has a usable geometry.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d) %dx%d", r.X, r.Y, r.Width, r.Height)
}

// regionFile is the canonical on-disk shape written by `steward setup`.
type regionFile struct {
	Regions  []Region `json:"regions"`
	InputBox *Region  `json:"input_box,omitempty"`
}

// LoadRegions reads a region configuration file. Consumed once at
// startup, never re-read per tick. Three historical shapes are
// accepted:
//
//  1. canonical: {"regions": [{"x":..},...], "input_box": {...}}
//  2. tuple list: {"regions": [[x,y,w,h], ...]}
//  3. named map: {"chat": {"x":..,"y":..,"width":..,"height":..}, ...}
//
// The first region in file order is the primary one.
func LoadRegions(path string) ([]Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading region config: %w", err)
	}

	regions, err := parseRegions(data)
	if err != nil {
		return nil, fmt.Errorf("parsing region config %s: %w", path, err)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("region config %s contains no usable regions", path)
	}
	return regions, nil
}

func parseRegions(data []byte) ([]Region, error) {
	// Shape 1: canonical object with a regions list.
	var canonical regionFile
	if err := json.Unmarshal(data, &canonical); err == nil && len(canonical.Regions) > 0 {
		return filterValid(canonical.Regions), nil
	}

	// Shape 2: regions as [x,y,w,h] tuples.
	var tuples struct {
		Regions [][4]int `json:"regions"`
	}
	if err := json.Unmarshal(data, &tuples); err == nil && len(tuples.Regions) > 0 {
		out := make([]Region, 0, len(tuples.Regions))
		for _, t := range tuples.Regions {
			out = append(out, Region{X: t[0], Y: t[1], Width: t[2], Height: t[3]})
		}
		return filterValid(out), nil
	}

	// Shape 3: top-level map of name → region object.
	var named map[string]Region
	if err := json.Unmarshal(data, &named); err == nil && len(named) > 0 {
		out := make([]Region, 0, len(named))
		for name, r := range named {
			r.Name = name
			if r.Valid() {
				out = append(out, r)
			}
		}
		if len(out) > 0 {
			// Deterministic order for the map shape; "chat" sorts
			// before "result" which matches the historical
			// primary-first layout.
			sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
			return out, nil
		}
	}

	return nil, fmt.Errorf("unrecognized region file shape")
}

func filterValid(in []Region) []Region {
	out := in[:0]
	for _, r := range in {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// SaveRegions writes the canonical shape. Used by the setup wizard.
func SaveRegions(path string, regions []Region, inputBox *Region) error {
	data, err := json.MarshalIndent(regionFile{Regions: regions, InputBox: inputBox}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding region config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing region config: %w", err)
	}
	return nil
}
