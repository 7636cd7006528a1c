// Package synth turns flight snapshots plus the current interaction state
// into the vector features a map host draws: position dots, speed
// vectors, halos, datablock labels and pair links.
//
// Synthesis is a pure function of its inputs. Geometry is laid out in
// screen pixels through a host-supplied Projector and converted back to
// geographic coordinates, so the same collection renders correctly in a
// GeoJSON source regardless of rotation or zoom.
package synth

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/playpcd/pcdtrainer/internal/pcd"
)

// Pixel is a screen position, x to the right and y down.
type Pixel struct {
	X, Y float64
}

func (p Pixel) add(q Pixel) Pixel     { return Pixel{p.X + q.X, p.Y + q.Y} }
func (p Pixel) sub(q Pixel) Pixel     { return Pixel{p.X - q.X, p.Y - q.Y} }
func (p Pixel) scale(s float64) Pixel { return Pixel{p.X * s, p.Y * s} }
func (p Pixel) length() float64       { return math.Hypot(p.X, p.Y) }

func (p Pixel) normalize() Pixel {
	l := p.length()
	if l == 0 {
		return Pixel{}
	}
	return p.scale(1 / l)
}

// Projector converts between geographic points (lng, lat) and the host's
// current pixel space.
type Projector interface {
	Project(orb.Point) Pixel
	Unproject(Pixel) orb.Point
}

// Kind tags a feature with the layer it belongs to. The string values are
// the "type" property the map host filters on.
type Kind string

const (
	KindPosition       Kind = "position"
	KindPositionBorder Kind = "position-border"
	KindSpeed          Kind = "speed"
	KindHalo           Kind = "halo"
	KindLabelLink      Kind = "label-link"
	KindLabel          Kind = "label"
	KindLabelText      Kind = "label-text"
	KindPairLink       Kind = "pcd-link"
	KindPairLabel      Kind = "pcd-label"
	KindPairText       Kind = "pcd-text"
)

// Feature is a single renderable geometry with its style attributes.
type Feature struct {
	Kind     Kind
	Ref      string
	Geometry orb.Geometry
	Correct  *bool
	Selected bool
	Judged   bool
	Text     string
	FontSize float64
}

// FeatureCollection is regenerated wholesale on every call to Synthesize.
type FeatureCollection struct {
	Features []Feature
}

// Count returns the number of features of kind k.
func (fc FeatureCollection) Count(k Kind) int {
	n := 0
	for _, f := range fc.Features {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// Refs returns the distinct refs of features of kind k in emission order.
func (fc FeatureCollection) Refs(k Kind) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, f := range fc.Features {
		if f.Kind == k && !seen[f.Ref] {
			seen[f.Ref] = true
			refs = append(refs, f.Ref)
		}
	}
	return refs
}

// View is the part of the host camera the synthesizer needs.
type View struct {
	Bounds pcd.BoundingBox
	Zoom   float64
}

// Input is everything a synthesis depends on. It is read, never retained.
type Input struct {
	Flights          []pcd.FlightSnapshot
	View             View
	SelectedFlightID string
	ConfirmedPairs   []pcd.Pair
	SolutionPairs    []pcd.Pair
	IsOver           bool
}

const DefaultDensityThreshold = 200

type Options struct {
	// DensityThreshold is the in-view flight count at which labels
	// degrade to a callsign only. Zero means DefaultDensityThreshold.
	DensityThreshold int
}

// Synthesizer holds tuning options. The zero value is ready to use.
type Synthesizer struct {
	opts Options
}

func New(opts Options) *Synthesizer {
	return &Synthesizer{opts: opts}
}

func (s *Synthesizer) threshold() int {
	if s == nil || s.opts.DensityThreshold <= 0 {
		return DefaultDensityThreshold
	}
	return s.opts.DensityThreshold
}

var defaultSynthesizer = &Synthesizer{}

// Synthesize runs the default synthesizer.
func Synthesize(in Input, proj Projector) FeatureCollection {
	return defaultSynthesizer.Synthesize(in, proj)
}

// Geometry constants, in pixels at scalingFactor 1 unless noted.
const (
	speedVectorFactor = 0.004
	haloFactor        = 0.35
	dotFactor         = 0.08
	minDotRadiusPx    = 2.0
	ringSegments      = 24
)

// Synthesize builds the feature collection for in, laying geometry out
// in the pixel space of proj.
func (s *Synthesizer) Synthesize(in Input, proj Projector) FeatureCollection {
	scalingFactor := in.View.Zoom * in.View.Zoom

	flights := cull(in)
	pos := make([]Pixel, len(flights))
	byID := make(map[string]int, len(flights))
	for i, f := range flights {
		pos[i] = proj.Project(orb.Point{f.LongitudeDeg, f.LatitudeDeg})
		byID[f.ID] = i
	}

	inView := 0
	for _, f := range flights {
		if in.View.Bounds.Contains(f.LatitudeDeg, f.LongitudeDeg) {
			inView++
		}
	}

	dotRadius := math.Max(minDotRadiusPx, dotFactor*scalingFactor)
	haloRadius := haloFactor * scalingFactor

	var out FeatureCollection
	emit := func(f Feature) { out.Features = append(out.Features, f) }

	for i, f := range flights {
		p := pos[i]
		selected := f.ID == in.SelectedFlightID

		ring := circle(proj, p, dotRadius)
		emit(Feature{Kind: KindPosition, Ref: f.ID, Geometry: orb.Polygon{ring}, Selected: selected})
		emit(Feature{Kind: KindPositionBorder, Ref: f.ID, Geometry: orb.LineString(ring), Selected: selected})

		end := p.add(trackDirection(proj, f).scale(f.GroundSpeedKts * scalingFactor * speedVectorFactor))
		emit(Feature{Kind: KindSpeed, Ref: f.ID, Geometry: orb.LineString{proj.Unproject(p), proj.Unproject(end)}})

		emit(Feature{
			Kind:     KindHalo,
			Ref:      f.ID,
			Geometry: orb.LineString(circle(proj, p, haloRadius)),
			Correct:  haloCorrectness(f.ID, in.ConfirmedPairs, in.SolutionPairs),
		})
	}

	var lp labelPlacer
	if inView >= s.threshold() {
		lp = labelPlacer{dense: true}
	} else {
		lp = labelPlacer{dots: make([]extent, len(pos))}
		for i, p := range pos {
			lp.dots[i] = extentAround(p, dotRadius)
		}
	}
	for i, f := range flights {
		for _, lf := range lp.place(proj, f, pos[i]) {
			emit(lf)
		}
	}

	pairFeatures := func(p pcd.Pair, judged bool, correct *bool) {
		ia, okA := byID[p.First()]
		ib, okB := byID[p.Second()]
		if !okA || !okB {
			return
		}
		a, b := pos[ia], pos[ib]
		ref := p.Key()
		emit(Feature{
			Kind:     KindPairLink,
			Ref:      ref,
			Geometry: orb.LineString{proj.Unproject(a), proj.Unproject(b)},
			Correct:  correct,
			Judged:   judged,
		})
		for _, lf := range pairLabel(proj, flights[ia], flights[ib], a, b) {
			lf.Ref = ref
			lf.Correct = correct
			lf.Judged = judged
			emit(lf)
		}
	}

	for _, p := range in.ConfirmedPairs {
		ok := pcd.ContainsPair(in.SolutionPairs, p)
		pairFeatures(p, true, &ok)
	}
	if in.IsOver {
		for _, p := range in.SolutionPairs {
			if pcd.ContainsPair(in.ConfirmedPairs, p) {
				continue
			}
			pairFeatures(p, false, nil)
		}
	}

	return out
}

// cull keeps flights that are strictly inside the view bounds or that take
// part in a confirmed pair, preserving input order.
func cull(in Input) []pcd.FlightSnapshot {
	inPair := make(map[string]bool, 2*len(in.ConfirmedPairs))
	for _, p := range in.ConfirmedPairs {
		inPair[p.First()] = true
		inPair[p.Second()] = true
	}
	var out []pcd.FlightSnapshot
	for _, f := range in.Flights {
		if inPair[f.ID] || in.View.Bounds.Contains(f.LatitudeDeg, f.LongitudeDeg) {
			out = append(out, f)
		}
	}
	return out
}

// haloCorrectness is nil while the flight is in no confirmed pair, false
// once any of its confirmed pairs is wrong and true otherwise.
func haloCorrectness(id string, confirmed, solution []pcd.Pair) *bool {
	var res *bool
	for _, p := range confirmed {
		if !p.Contains(id) {
			continue
		}
		ok := pcd.ContainsPair(solution, p)
		if !ok {
			return &ok
		}
		res = &ok
	}
	return res
}

// trackDirection returns the unit pixel vector for the flight's track.
// North and east are measured through the projector so rotated or skewed
// viewports get the right direction.
func trackDirection(proj Projector, f pcd.FlightSnapshot) Pixel {
	const probeDeg = 0.01
	origin := proj.Project(orb.Point{f.LongitudeDeg, f.LatitudeDeg})
	north := proj.Project(orb.Point{f.LongitudeDeg, f.LatitudeDeg + probeDeg}).sub(origin).normalize()
	east := proj.Project(orb.Point{f.LongitudeDeg + probeDeg, f.LatitudeDeg}).sub(origin).normalize()

	rad := f.TrackDeg * math.Pi / 180
	return north.scale(math.Cos(rad)).add(east.scale(math.Sin(rad))).normalize()
}

// circle returns a closed ring of radius r pixels around c, in geographic
// coordinates.
func circle(proj Projector, c Pixel, r float64) orb.Ring {
	ring := make(orb.Ring, 0, ringSegments+1)
	for i := 0; i < ringSegments; i++ {
		a := 2 * math.Pi * float64(i) / ringSegments
		ring = append(ring, proj.Unproject(Pixel{c.X + r*math.Cos(a), c.Y + r*math.Sin(a)}))
	}
	return append(ring, ring[0])
}
