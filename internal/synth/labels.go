package synth

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/playpcd/pcdtrainer/internal/pcd"
)

const (
	labelFontSize      = 12.0
	denseLabelFontSize = 10.0
	pairLabelFontSize  = 11.0

	leaderLengthPx   = 30.0
	denseOffsetPx    = 10.0
	pairLabelOffset  = 12.0
	labelPaddingPx   = 2.0
	charWidthRatio   = 0.6
	lineHeightRatio  = 1.2
	verticalTrendFPM = 100.0
)

// compass offsets tried in order when placing a datablock, clockwise from
// northeast. Angles are screen bearings in degrees.
var compass = []float64{45, 90, 135, 180, 225, 270, 315, 0}

// extent is an axis-aligned pixel rectangle.
type extent struct {
	p0, p1 Pixel
}

func extentAround(c Pixel, r float64) extent {
	return extent{Pixel{c.X - r, c.Y - r}, Pixel{c.X + r, c.Y + r}}
}

func (e extent) overlaps(o extent) bool {
	return e.p0.X < o.p1.X && o.p0.X < e.p1.X && e.p0.Y < o.p1.Y && o.p0.Y < e.p1.Y
}

func (e extent) center() Pixel {
	return Pixel{(e.p0.X + e.p1.X) / 2, (e.p0.Y + e.p1.Y) / 2}
}

func (e extent) polygon(proj Projector) orb.Polygon {
	return orb.Polygon{orb.Ring{
		proj.Unproject(e.p0),
		proj.Unproject(Pixel{e.p1.X, e.p0.Y}),
		proj.Unproject(e.p1),
		proj.Unproject(Pixel{e.p0.X, e.p1.Y}),
		proj.Unproject(e.p0),
	}}
}

// textSize estimates the pixel box of a monospaced text block.
func textSize(text string, fontSize float64) (w, h float64) {
	lines := strings.Split(text, "\n")
	longest := 0
	for _, l := range lines {
		longest = max(longest, utf8.RuneCountInString(l))
	}
	w = float64(longest)*fontSize*charWidthRatio + 2*labelPaddingPx
	h = float64(len(lines))*fontSize*lineHeightRatio + 2*labelPaddingPx
	return w, h
}

// boxAt returns the label box hanging off end in the direction of the
// screen bearing deg.
func boxAt(end Pixel, deg, w, h float64) extent {
	rad := deg * math.Pi / 180
	sx, sy := sign(math.Sin(rad)), sign(-math.Cos(rad))
	c := Pixel{end.X + sx*w/2, end.Y + sy*h/2}
	return extent{Pixel{c.X - w/2, c.Y - h/2}, Pixel{c.X + w/2, c.Y + h/2}}
}

func sign(v float64) float64 {
	switch {
	case v > 1e-9:
		return 1
	case v < -1e-9:
		return -1
	}
	return 0
}

func leaderEnd(p Pixel, deg, length float64) Pixel {
	rad := deg * math.Pi / 180
	return Pixel{p.X + length*math.Sin(rad), p.Y - length*math.Cos(rad)}
}

// datablock is the three-line label: callsign, altitude in hundreds with
// the vertical trend and selected altitude, ground speed in tens with the
// category.
func datablock(f pcd.FlightSnapshot) string {
	alt := fmt.Sprintf("%03d", int(math.Round(f.AltitudeFt/100)))
	switch {
	case f.VerticalSpeedFtpm > verticalTrendFPM:
		alt += "↑"
	case f.VerticalSpeedFtpm < -verticalTrendFPM:
		alt += "↓"
	default:
		alt += " "
	}
	if f.SelectedAltitudeFt != nil {
		alt += fmt.Sprintf("%03d", int(math.Round(*f.SelectedAltitudeFt/100)))
	}
	cat := f.Category
	if cat == "" {
		cat = pcd.CategoryUnknown
	}
	spd := fmt.Sprintf("%02d %s", int(math.Round(f.GroundSpeedKts/10)), cat)
	return f.Callsign + "\n" + strings.TrimRight(alt, " ") + "\n" + spd
}

// labelPlacer lays out datablocks one flight at a time. Boxes placed
// earlier win, so the result depends only on input order.
type labelPlacer struct {
	dense  bool
	dots   []extent
	placed []extent
}

func (lp *labelPlacer) allowed(b extent) bool {
	for _, d := range lp.dots {
		if b.overlaps(d) {
			return false
		}
	}
	for _, o := range lp.placed {
		if b.overlaps(o) {
			return false
		}
	}
	return true
}

func (lp *labelPlacer) place(proj Projector, f pcd.FlightSnapshot, p Pixel) []Feature {
	if lp.dense {
		w, h := textSize(f.Callsign, denseLabelFontSize)
		box := boxAt(leaderEnd(p, compass[0], denseOffsetPx), compass[0], w, h)
		return []Feature{
			{Kind: KindLabel, Ref: f.ID, Geometry: box.polygon(proj)},
			{Kind: KindLabelText, Ref: f.ID, Geometry: proj.Unproject(box.center()), Text: f.Callsign, FontSize: denseLabelFontSize},
		}
	}

	text := datablock(f)
	w, h := textSize(text, labelFontSize)

	deg := compass[0]
	box := boxAt(leaderEnd(p, deg, leaderLengthPx), deg, w, h)
	for _, d := range compass {
		b := boxAt(leaderEnd(p, d, leaderLengthPx), d, w, h)
		if lp.allowed(b) {
			deg, box = d, b
			break
		}
	}
	lp.placed = append(lp.placed, box)

	end := leaderEnd(p, deg, leaderLengthPx)
	return []Feature{
		{Kind: KindLabelLink, Ref: f.ID, Geometry: orb.LineString{proj.Unproject(p), proj.Unproject(end)}},
		{Kind: KindLabel, Ref: f.ID, Geometry: box.polygon(proj)},
		{Kind: KindLabelText, Ref: f.ID, Geometry: proj.Unproject(box.center()), Text: text, FontSize: labelFontSize},
	}
}

// pairLabel places the separation readout next to the midpoint of the
// link between a and b.
func pairLabel(proj Projector, fa, fb pcd.FlightSnapshot, a, b Pixel) []Feature {
	text := separationText(fa, fb)
	w, h := textSize(text, pairLabelFontSize)

	d := b.sub(a)
	perp := Pixel{-d.Y, d.X}.normalize()
	if perp == (Pixel{}) {
		perp = Pixel{0, -1}
	}
	// keep the label above the link whichever way the pair is ordered
	if perp.Y > 0 || (perp.Y == 0 && perp.X < 0) {
		perp = perp.scale(-1)
	}
	c := a.add(d.scale(0.5)).add(perp.scale(pairLabelOffset + h/2))
	box := extent{Pixel{c.X - w/2, c.Y - h/2}, Pixel{c.X + w/2, c.Y + h/2}}

	return []Feature{
		{Kind: KindPairLabel, Geometry: box.polygon(proj)},
		{Kind: KindPairText, Geometry: proj.Unproject(c), Text: text, FontSize: pairLabelFontSize},
	}
}

// separationText reports horizontal distance in nautical miles and
// vertical separation rounded to 100 ft.
func separationText(a, b pcd.FlightSnapshot) string {
	const metersPerNM = 1852.0
	dist := geo.DistanceHaversine(
		orb.Point{a.LongitudeDeg, a.LatitudeDeg},
		orb.Point{b.LongitudeDeg, b.LatitudeDeg},
	) / metersPerNM
	vsep := int(math.Round(math.Abs(a.AltitudeFt-b.AltitudeFt)/100)) * 100
	return fmt.Sprintf("%.1fNM %dft", dist, vsep)
}
