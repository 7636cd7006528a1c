package mapview

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playpcd/pcdtrainer/internal/pcd"
	"github.com/playpcd/pcdtrainer/internal/synth"
)

var _ synth.Projector = Viewport{}

func TestProjectCenter(t *testing.T) {
	v := Viewport{Longitude: -3.7, Latitude: 40.4, Zoom: 6, Width: 800, Height: 600}
	px := v.Project(orb.Point{-3.7, 40.4})
	assert.InDelta(t, 400, px.X, 1e-6)
	assert.InDelta(t, 300, px.Y, 1e-6)
}

func TestProjectRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		bearing float64
	}{
		{name: "north up", bearing: 0},
		{name: "rotated", bearing: 37},
		{name: "south up", bearing: 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Viewport{Longitude: 2.35, Latitude: 48.85, Zoom: 7.5, Bearing: tt.bearing, Width: 1024, Height: 768}
			p := orb.Point{3.1, 49.2}
			back := v.Unproject(v.Project(p))
			assert.InDelta(t, p.Lon(), back.Lon(), 1e-9)
			assert.InDelta(t, p.Lat(), back.Lat(), 1e-9)
		})
	}
}

func TestProjectOrientation(t *testing.T) {
	v := Viewport{Longitude: 0, Latitude: 0, Zoom: 5, Width: 400, Height: 400}
	north := v.Project(orb.Point{0, 1})
	east := v.Project(orb.Point{1, 0})
	assert.Less(t, north.Y, 200.0)
	assert.Greater(t, east.X, 200.0)

	// top of the window faces east: north is now to the left
	v.Bearing = 90
	north = v.Project(orb.Point{0, 1})
	assert.Less(t, north.X, 200.0)
	assert.InDelta(t, 200, north.Y, 1e-6)
}

func TestZoomDoublesScale(t *testing.T) {
	v := Viewport{Zoom: 3, Width: 100, Height: 100}
	a := v.Project(orb.Point{1, 0})
	v.Zoom = 4
	b := v.Project(orb.Point{1, 0})
	assert.InDelta(t, 2*(a.X-50), b.X-50, 1e-6)
}

func TestBounds(t *testing.T) {
	v := Viewport{Longitude: 10, Latitude: 45, Zoom: 6, Width: 800, Height: 600}
	b := v.Bounds()
	assert.Less(t, b.West, 10.0)
	assert.Greater(t, b.East, 10.0)
	assert.Less(t, b.South, 45.0)
	assert.Greater(t, b.North, 45.0)
	assert.True(t, b.Contains(45, 10))

	// rotation widens the envelope
	v.Bearing = 45
	rb := v.Bounds()
	assert.Greater(t, rb.East-rb.West, b.East-b.West)
}

func TestAntimeridianWindow(t *testing.T) {
	v := Viewport{Longitude: 179.9, Latitude: 0, Zoom: 8, Width: 800, Height: 600}
	b := v.Bounds()
	assert.Greater(t, b.East, 180.0)
	assert.True(t, b.Contains(0, -179.9))

	// 0.2 degrees east of center at 512 * 2^8 px per world
	px := v.Project(orb.Point{-179.9, 0})
	assert.InDelta(t, 400+512*256*0.2/360, px.X, 1e-6)
	assert.InDelta(t, 300, px.Y, 1e-6)

	back := v.Project(orb.Point{179.5, 0})
	assert.Less(t, back.X, 400.0)
}

func TestFitBounds(t *testing.T) {
	box := pcd.BoundingBox{West: -4, South: 39, East: -2, North: 41}
	v := FitBounds(box, 800, 600, 20)
	require.NoError(t, v.Validate())

	for _, c := range []orb.Point{{-4, 39}, {-2, 41}, {-4, 41}, {-2, 39}} {
		px := v.Project(c)
		assert.GreaterOrEqual(t, px.X, 20-1e-6)
		assert.LessOrEqual(t, px.X, 780+1e-6)
		assert.GreaterOrEqual(t, px.Y, 20-1e-6)
		assert.LessOrEqual(t, px.Y, 580+1e-6)
	}

	lng, lat := box.Center()
	assert.InDelta(t, lng, v.Longitude, 1e-9)
	// Mercator center sits slightly north of the arithmetic mean
	assert.InDelta(t, lat, v.Latitude, 0.05)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		v    Viewport
		ok   bool
	}{
		{name: "ok", v: Viewport{Zoom: 5, Width: 10, Height: 10}, ok: true},
		{name: "no width", v: Viewport{Zoom: 5, Height: 10}},
		{name: "zoom", v: Viewport{Zoom: 30, Width: 10, Height: 10}},
		{name: "latitude", v: Viewport{Latitude: 89, Zoom: 1, Width: 10, Height: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSynthesizeThroughViewport(t *testing.T) {
	v := Viewport{Longitude: -3, Latitude: 40, Zoom: 7, Bearing: 30, Width: 800, Height: 600}
	in := synth.Input{
		Flights: []pcd.FlightSnapshot{
			{ID: "A", LatitudeDeg: 40.1, LongitudeDeg: -3.1, Callsign: "AAA", GroundSpeedKts: 400, TrackDeg: 45, AltitudeFt: 30000},
			{ID: "B", LatitudeDeg: 60, LongitudeDeg: 20, Callsign: "BBB", GroundSpeedKts: 400, AltitudeFt: 30000},
		},
		View: v.View(),
	}
	fc := synth.Synthesize(in, v)
	assert.Equal(t, []string{"A"}, fc.Refs(synth.KindPosition))
}
