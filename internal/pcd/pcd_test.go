package pcd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Pair
		want bool
	}{
		{name: "same order", a: NewPair("A", "B"), b: NewPair("A", "B"), want: true},
		{name: "swapped", a: NewPair("A", "B"), b: NewPair("B", "A"), want: true},
		{name: "one shared id", a: NewPair("A", "B"), b: NewPair("A", "C"), want: false},
		{name: "disjoint", a: NewPair("A", "B"), b: NewPair("C", "D"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
			assert.Equal(t, tt.want, tt.a.Key() == tt.b.Key())
		})
	}
}

func TestPairValid(t *testing.T) {
	assert.True(t, NewPair("A", "B").Valid())
	assert.False(t, NewPair("A", "A").Valid())
	assert.False(t, NewPair("", "B").Valid())
}

func TestPairOther(t *testing.T) {
	p := NewPair("A", "B")
	assert.Equal(t, "B", p.Other("A"))
	assert.Equal(t, "A", p.Other("B"))
	assert.Equal(t, "", p.Other("C"))
}

func TestIntersect(t *testing.T) {
	solution := []Pair{NewPair("A", "B"), NewPair("C", "D")}
	guesses := []Pair{NewPair("B", "A"), NewPair("A", "C"), NewPair("A", "B")}
	assert.Equal(t, 1, Intersect(guesses, solution))
}

func TestScenarioJSON(t *testing.T) {
	raw := `{
		"name": "Two converging",
		"flights": [
			{"id": "A", "latitudeDeg": 40.1, "longitudeDeg": -3.5, "callsign": "IBE123", "category": "M",
			 "groundSpeedKts": 450, "trackDeg": 90, "altitudeFt": 35000, "verticalSpeedFtpm": 0},
			{"id": "B", "latitudeDeg": 40.2, "longitudeDeg": -3.2, "callsign": "RYR9K", "category": "",
			 "groundSpeedKts": 430, "trackDeg": 270, "altitudeFt": 34000, "verticalSpeedFtpm": 1500,
			 "selectedAltitudeFt": 36000}
		],
		"pcds": [{"firstId": "A", "secondId": "B"}],
		"boundaries": [-4, 39, -2, 41],
		"view": {"longitude": -3, "latitude": 40, "zoom": 7}
	}`

	var sc Scenario
	require.NoError(t, json.Unmarshal([]byte(raw), &sc))
	require.NoError(t, sc.Validate())

	assert.Equal(t, BoundingBox{West: -4, South: 39, East: -2, North: 41}, sc.Boundaries)
	assert.Equal(t, CategoryUnknown, sc.Flights[1].Category)
	require.NotNil(t, sc.Flights[1].SelectedAltitudeFt)
	assert.Equal(t, 36000.0, *sc.Flights[1].SelectedAltitudeFt)
	assert.True(t, sc.PCDs[0].Equal(NewPair("B", "A")))
	assert.True(t, sc.InSolution("A"))

	out, err := json.Marshal(sc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"boundaries":[-4,39,-2,41]`)
	assert.Contains(t, string(out), `"firstId":"A"`)
}

func TestScenarioValidate(t *testing.T) {
	base := func() Scenario {
		return Scenario{
			Name: "base",
			Flights: []FlightSnapshot{
				{ID: "A", LatitudeDeg: 1, LongitudeDeg: 1, Category: CategoryHeavy},
				{ID: "B", LatitudeDeg: 2, LongitudeDeg: 2, Category: CategoryLight},
			},
			PCDs:       []Pair{NewPair("A", "B")},
			Boundaries: BoundingBox{West: 0, South: 0, East: 3, North: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{name: "valid", mutate: func(*Scenario) {}},
		{name: "missing name", mutate: func(s *Scenario) { s.Name = " " }, wantErr: "name is required"},
		{name: "no flights", mutate: func(s *Scenario) { s.Flights = nil; s.PCDs = nil }, wantErr: "at least one flight"},
		{name: "duplicate id", mutate: func(s *Scenario) { s.Flights[1].ID = "A"; s.PCDs = nil }, wantErr: "duplicate id"},
		{name: "unknown pair id", mutate: func(s *Scenario) { s.PCDs = []Pair{NewPair("A", "Z")} }, wantErr: `unknown flight "Z"`},
		{name: "self pair", mutate: func(s *Scenario) { s.PCDs = []Pair{NewPair("A", "A")} }, wantErr: "two distinct flights"},
		{name: "duplicate pair", mutate: func(s *Scenario) { s.PCDs = append(s.PCDs, NewPair("B", "A")) }, wantErr: "duplicate pair"},
		{name: "bad track", mutate: func(s *Scenario) { s.Flights[0].TrackDeg = 360 }, wantErr: "track"},
		{name: "bad category", mutate: func(s *Scenario) { s.Flights[0].Category = "X" }, wantErr: "unknown category"},
		{name: "bad boundaries", mutate: func(s *Scenario) { s.Boundaries.West = 5 }, wantErr: "boundaries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := base()
			tt.mutate(&sc)
			err := sc.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBoundingBoxContainsIsStrict(t *testing.T) {
	b := BoundingBox{West: 0, South: 0, East: 10, North: 10}
	assert.True(t, b.Contains(5, 5))
	assert.False(t, b.Contains(0, 5))
	assert.False(t, b.Contains(5, 10))
	assert.False(t, b.Contains(11, 5))
}

func TestBoundingBoxContainsAcrossAntimeridian(t *testing.T) {
	east := BoundingBox{West: 170, South: -10, East: 190, North: 10}
	assert.True(t, east.Contains(0, 175))
	assert.True(t, east.Contains(0, -175))
	assert.False(t, east.Contains(0, -165))

	west := BoundingBox{West: -190, South: -10, East: -170, North: 10}
	assert.True(t, west.Contains(0, 175))
	assert.False(t, west.Contains(0, 165))
}
