// Package pcd defines the core domain types of the trainer: flight
// telemetry snapshots, scenario definitions and the unordered aircraft
// pairs ("PCDs") that make up a scenario's solution.
// It has zero external dependencies.
package pcd

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category is the aircraft wake/class category shown in the datablock.
type Category string

const (
	CategoryLight      Category = "L"
	CategoryMedium     Category = "M"
	CategoryHeavy      Category = "H"
	CategorySuper      Category = "J"
	CategoryRotorcraft Category = "R"
	CategoryUnknown    Category = "U"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLight, CategoryMedium, CategoryHeavy, CategorySuper, CategoryRotorcraft, CategoryUnknown:
		return true
	}
	return false
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	if s == "" {
		*c = CategoryUnknown
		return nil
	}
	*c = Category(s)
	return nil
}

// FlightSnapshot is the telemetry of a single aircraft at the instant the
// scenario was captured. Snapshots are never mutated once loaded.
type FlightSnapshot struct {
	ID                 string   `json:"id"`
	LatitudeDeg        float64  `json:"latitudeDeg"`
	LongitudeDeg       float64  `json:"longitudeDeg"`
	Callsign           string   `json:"callsign"`
	Category           Category `json:"category"`
	GroundSpeedKts     float64  `json:"groundSpeedKts"`
	TrackDeg           float64  `json:"trackDeg"`
	AltitudeFt         float64  `json:"altitudeFt"`
	VerticalSpeedFtpm  float64  `json:"verticalSpeedFtpm"`
	SelectedAltitudeFt *float64 `json:"selectedAltitudeFt,omitempty"`
}

// BoundingBox is a geographic box, encoded as [west, south, east, north].
type BoundingBox struct {
	West, South, East, North float64
}

// Contains reports whether the position lies strictly inside the box.
func (b BoundingBox) Contains(latitude, longitude float64) bool {
	if latitude <= b.South || latitude >= b.North {
		return false
	}
	// boxes spilling past ±180 also match the wrapped longitude
	for _, lon := range [...]float64{longitude, longitude - 360, longitude + 360} {
		if b.West < lon && lon < b.East {
			return true
		}
	}
	return false
}

// Center returns the box center as (longitude, latitude).
func (b BoundingBox) Center() (float64, float64) {
	return (b.West + b.East) / 2, (b.South + b.North) / 2
}

func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.West, b.South, b.East, b.North})
}

func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var v [4]float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("boundaries: %w", err)
	}
	*b = BoundingBox{West: v[0], South: v[1], East: v[2], North: v[3]}
	return nil
}

// View is the initial camera of a scenario.
type View struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
}

// Scenario is a named set of flights together with the pairs a player is
// expected to find.
type Scenario struct {
	ID         string           `json:"id,omitempty"`
	Name       string           `json:"name"`
	Flights    []FlightSnapshot `json:"flights"`
	PCDs       []Pair           `json:"pcds"`
	Boundaries BoundingBox      `json:"boundaries"`
	View       View             `json:"view"`
	CreatedAt  time.Time        `json:"createdAt,omitzero"`
}

// Flight returns the flight with the given id.
func (s *Scenario) Flight(id string) (FlightSnapshot, bool) {
	for _, f := range s.Flights {
		if f.ID == id {
			return f, true
		}
	}
	return FlightSnapshot{}, false
}

// InSolution reports whether the flight takes part in any solution pair.
func (s *Scenario) InSolution(id string) bool {
	for _, p := range s.PCDs {
		if p.Contains(id) {
			return true
		}
	}
	return false
}
