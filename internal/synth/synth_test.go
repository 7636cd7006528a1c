package synth

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playpcd/pcdtrainer/internal/pcd"
)

// affine is a deterministic projector: k pixels per degree, north up,
// origin at the top-left corner (west, north).
type affine struct {
	west, north, k float64
}

func (a affine) Project(p orb.Point) Pixel {
	return Pixel{(p.Lon() - a.west) * a.k, (a.north - p.Lat()) * a.k}
}

func (a affine) Unproject(px Pixel) orb.Point {
	return orb.Point{a.west + px.X/a.k, a.north - px.Y/a.k}
}

var (
	testBounds = pcd.BoundingBox{West: 0, South: 0, East: 10, North: 10}
	testProj   = affine{west: 0, north: 10, k: 100}
)

func flight(id string, lat, lng float64) pcd.FlightSnapshot {
	return pcd.FlightSnapshot{
		ID:             id,
		LatitudeDeg:    lat,
		LongitudeDeg:   lng,
		Callsign:       "CS" + id,
		Category:       pcd.CategoryMedium,
		GroundSpeedKts: 400,
		TrackDeg:       90,
		AltitudeFt:     35000,
	}
}

func baseInput() Input {
	return Input{
		Flights: []pcd.FlightSnapshot{
			flight("A", 5, 2),
			flight("B", 5, 4),
			flight("C", 2, 8),
			flight("D", 8, 8),
		},
		View:          View{Bounds: testBounds, Zoom: 4},
		SolutionPairs: []pcd.Pair{pcd.NewPair("A", "B"), pcd.NewPair("C", "D")},
	}
}

func find(fc FeatureCollection, k Kind, ref string) (Feature, bool) {
	for _, f := range fc.Features {
		if f.Kind == k && f.Ref == ref {
			return f, true
		}
	}
	return Feature{}, false
}

func TestSynthesizeDeterministic(t *testing.T) {
	in := baseInput()
	in.SelectedFlightID = "C"
	in.ConfirmedPairs = []pcd.Pair{pcd.NewPair("B", "A")}

	first := Synthesize(in, testProj)
	second := Synthesize(in, testProj)

	require.NotEmpty(t, first.Features)
	assert.Equal(t, first, second)
}

func TestSynthesizeEmitsPerFlightFeatures(t *testing.T) {
	fc := Synthesize(baseInput(), testProj)

	for _, k := range []Kind{KindPosition, KindPositionBorder, KindSpeed, KindHalo, KindLabelLink, KindLabel, KindLabelText} {
		assert.Equal(t, 4, fc.Count(k), "kind %s", k)
	}
	assert.Zero(t, fc.Count(KindPairLink))
	assert.Zero(t, fc.Count(KindPairText))
}

func TestSynthesizeCulling(t *testing.T) {
	in := baseInput()
	in.Flights = append(in.Flights, flight("OUT", 20, 20), flight("EDGE", 10, 5))

	fc := Synthesize(in, testProj)
	for _, f := range fc.Features {
		assert.NotEqual(t, "OUT", f.Ref)
		assert.NotEqual(t, "EDGE", f.Ref, "bounds are exclusive")
	}

	in.ConfirmedPairs = []pcd.Pair{pcd.NewPair("A", "OUT")}
	fc = Synthesize(in, testProj)
	_, ok := find(fc, KindPosition, "OUT")
	assert.True(t, ok, "confirmed flight stays visible out of view")
	assert.Equal(t, 1, fc.Count(KindPairLink))
}

func TestSynthesizeSelection(t *testing.T) {
	in := baseInput()
	in.SelectedFlightID = "B"
	fc := Synthesize(in, testProj)

	for _, f := range fc.Features {
		if f.Kind != KindPosition && f.Kind != KindPositionBorder {
			continue
		}
		assert.Equal(t, f.Ref == "B", f.Selected, "ref %s", f.Ref)
	}
}

func TestSynthesizeHaloCorrectness(t *testing.T) {
	in := baseInput()
	in.ConfirmedPairs = []pcd.Pair{pcd.NewPair("B", "A"), pcd.NewPair("C", "A")}
	fc := Synthesize(in, testProj)

	tests := []struct {
		ref  string
		want *bool
	}{
		{ref: "A", want: ptr(false)},
		{ref: "B", want: ptr(true)},
		{ref: "C", want: ptr(false)},
		{ref: "D", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			h, ok := find(fc, KindHalo, tt.ref)
			require.True(t, ok)
			assert.Equal(t, tt.want, h.Correct)
		})
	}
}

func TestSynthesizePairLinks(t *testing.T) {
	in := baseInput()
	in.ConfirmedPairs = []pcd.Pair{pcd.NewPair("B", "A")}

	fc := Synthesize(in, testProj)
	require.Equal(t, 1, fc.Count(KindPairLink))
	link, _ := find(fc, KindPairLink, pcd.NewPair("A", "B").Key())
	assert.True(t, link.Judged)
	assert.Equal(t, ptr(true), link.Correct)

	text, ok := find(fc, KindPairText, pcd.NewPair("A", "B").Key())
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(text.Text, "NM 0ft"), text.Text)
	assert.Equal(t, pairLabelFontSize, text.FontSize)

	// unguessed solution pairs are revealed neutrally once the round is over
	in.IsOver = true
	fc = Synthesize(in, testProj)
	require.Equal(t, 2, fc.Count(KindPairLink))
	reveal, ok := find(fc, KindPairLink, pcd.NewPair("C", "D").Key())
	require.True(t, ok)
	assert.False(t, reveal.Judged)
	assert.Nil(t, reveal.Correct)
	assert.Equal(t, 2, fc.Count(KindPairLabel))
}

func TestSynthesizeRevealNeedsBothFlights(t *testing.T) {
	in := baseInput()
	in.Flights[3] = flight("D", 30, 30)
	in.IsOver = true

	fc := Synthesize(in, testProj)
	_, ok := find(fc, KindPairLink, pcd.NewPair("C", "D").Key())
	assert.False(t, ok)
	_, ok = find(fc, KindPairLink, pcd.NewPair("A", "B").Key())
	assert.True(t, ok)
}

func TestSynthesizeSpeedVector(t *testing.T) {
	in := baseInput()
	in.Flights[0].GroundSpeedKts = 200
	in.Flights[1].GroundSpeedKts = 500
	in.Flights[2].TrackDeg = 0
	fc := Synthesize(in, testProj)

	length := func(ref string) float64 {
		f, ok := find(fc, KindSpeed, ref)
		require.True(t, ok)
		ls := f.Geometry.(orb.LineString)
		a, b := testProj.Project(ls[0]), testProj.Project(ls[1])
		return b.sub(a).length()
	}

	// 500 kts * zoom² 16 * 0.004
	assert.InDelta(t, 32.0, length("B"), 1e-6)
	assert.Greater(t, length("B"), length("A"))

	east, _ := find(fc, KindSpeed, "A")
	ls := east.Geometry.(orb.LineString)
	assert.Greater(t, ls[1].Lon(), ls[0].Lon())
	assert.InDelta(t, ls[0].Lat(), ls[1].Lat(), 1e-9)

	north, _ := find(fc, KindSpeed, "C")
	ls = north.Geometry.(orb.LineString)
	assert.Greater(t, ls[1].Lat(), ls[0].Lat())
}

func TestSynthesizeHaloScalesWithZoom(t *testing.T) {
	radius := func(zoom float64) float64 {
		in := baseInput()
		in.View.Zoom = zoom
		fc := Synthesize(in, testProj)
		h, ok := find(fc, KindHalo, "A")
		require.True(t, ok)
		ring := h.Geometry.(orb.LineString)
		c := testProj.Project(orb.Point{2, 5})
		return testProj.Project(ring[0]).sub(c).length()
	}
	assert.InDelta(t, 0.35*4, radius(2), 1e-6)
	assert.InDelta(t, 0.35*16, radius(4), 1e-6)
}

func TestSynthesizeLabelsAvoidOverlap(t *testing.T) {
	in := baseInput()
	// A and B sit 20 px apart so the first choice for B collides with A's label
	in.Flights = []pcd.FlightSnapshot{flight("A", 5, 5), flight("B", 5, 5.2), flight("C", 5.2, 5)}

	fc := Synthesize(in, testProj)
	var boxes []extent
	for _, f := range fc.Features {
		if f.Kind != KindLabel {
			continue
		}
		ring := f.Geometry.(orb.Polygon)[0]
		boxes = append(boxes, extent{testProj.Project(ring[0]), testProj.Project(ring[2])})
	}
	require.Len(t, boxes, 3)
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			assert.False(t, boxes[i].overlaps(boxes[j]), "labels %d and %d overlap", i, j)
		}
	}

	txt, _ := find(fc, KindLabelText, "A")
	assert.Equal(t, "CSA\n350\n40 M", txt.Text)
	assert.Equal(t, labelFontSize, txt.FontSize)
}

func TestSynthesizeDensityDegradation(t *testing.T) {
	in := baseInput()
	s := New(Options{DensityThreshold: 4})
	fc := s.Synthesize(in, testProj)

	assert.Equal(t, 4, fc.Count(KindPosition))
	assert.Equal(t, 4, fc.Count(KindHalo))
	assert.Zero(t, fc.Count(KindLabelLink))
	for _, f := range fc.Features {
		if f.Kind == KindLabelText {
			assert.NotContains(t, f.Text, "\n")
			assert.Equal(t, denseLabelFontSize, f.FontSize)
		}
	}

	// one flight fewer in view drops below the threshold again
	in.Flights[3] = flight("D", 11, 11)
	fc = s.Synthesize(in, testProj)
	assert.Equal(t, 3, fc.Count(KindLabelLink))
}

func TestDatablock(t *testing.T) {
	sel := 24000.0
	f := pcd.FlightSnapshot{
		Callsign:           "IBE123",
		Category:           pcd.CategoryHeavy,
		GroundSpeedKts:     452,
		AltitudeFt:         18040,
		VerticalSpeedFtpm:  1800,
		SelectedAltitudeFt: &sel,
	}
	assert.Equal(t, "IBE123\n180↑240\n45 H", datablock(f))

	f.VerticalSpeedFtpm = -900
	f.SelectedAltitudeFt = nil
	f.Category = ""
	assert.Equal(t, "IBE123\n180↓\n45 U", datablock(f))
}

func TestSeparationText(t *testing.T) {
	a := pcd.FlightSnapshot{LatitudeDeg: 0, LongitudeDeg: 0, AltitudeFt: 35000}
	b := pcd.FlightSnapshot{LatitudeDeg: 0, LongitudeDeg: 1, AltitudeFt: 34040}
	// one degree of longitude on the equator is 111.3 km
	assert.Equal(t, "60.1NM 1000ft", separationText(a, b))
}

func TestGeoJSON(t *testing.T) {
	in := baseInput()
	in.ConfirmedPairs = []pcd.Pair{pcd.NewPair("A", "B")}
	gj := Synthesize(in, testProj).GeoJSON()

	raw, err := json.Marshal(gj)
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry   struct{ Type string } `json:"geometry"`
			Properties map[string]any        `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "FeatureCollection", decoded.Type)

	kinds := map[string]string{}
	for _, f := range decoded.Features {
		kind := f.Properties["type"].(string)
		kinds[kind] = f.Geometry.Type
		if kind == string(KindPairLink) {
			assert.Equal(t, true, f.Properties["correct"])
		}
		if kind == string(KindPosition) {
			_, has := f.Properties["text"]
			assert.False(t, has)
		}
	}
	assert.Equal(t, "Polygon", kinds["position"])
	assert.Equal(t, "LineString", kinds["halo"])
	assert.Equal(t, "Point", kinds["label-text"])
	assert.Equal(t, "LineString", kinds["pcd-link"])
}

func TestTrackDirectionFollowsProjector(t *testing.T) {
	// mirror the x axis: east points left on screen
	mirrored := mirror{testProj}
	f := flight("A", 5, 5)
	f.TrackDeg = 90
	d := trackDirection(mirrored, f)
	assert.InDelta(t, -1, d.X, 1e-9)
	assert.InDelta(t, 0, d.Y, 1e-9)
	assert.False(t, math.IsNaN(d.X))
}

type mirror struct{ affine }

func (m mirror) Project(p orb.Point) Pixel {
	px := m.affine.Project(p)
	return Pixel{-px.X, px.Y}
}

func (m mirror) Unproject(px Pixel) orb.Point {
	return m.affine.Unproject(Pixel{-px.X, px.Y})
}

func ptr[T any](v T) *T { return &v }
