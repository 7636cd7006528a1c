// Package mapview is the server-side stand-in for the map host camera: a
// Web-Mercator viewport with rotation that converts between geographic
// coordinates and window pixels.
package mapview

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/playpcd/pcdtrainer/internal/pcd"
	"github.com/playpcd/pcdtrainer/internal/synth"
)

// TileSize is the world width in pixels at zoom 0.
const TileSize = 512

const (
	MaxZoom = 22
	// earth circumference at the equator in Mercator meters
	worldMeters = 2 * math.Pi * 6378137
)

// Viewport describes the host camera. Bearing is the compass direction the
// top of the window faces, in degrees clockwise from north.
type Viewport struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
	Bearing   float64 `json:"bearing"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

var (
	ErrEmptyWindow = errors.New("viewport width and height must be positive")
	ErrZoomRange   = errors.New("viewport zoom out of range")
)

// Validate rejects viewports that cannot produce a projection.
func (v Viewport) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return ErrEmptyWindow
	}
	if v.Zoom < 0 || v.Zoom > MaxZoom {
		return ErrZoomRange
	}
	if v.Latitude < -85.06 || v.Latitude > 85.06 || v.Longitude < -180 || v.Longitude > 180 {
		return errors.New("viewport center out of range")
	}
	return nil
}

func (v Viewport) worldSize() float64 {
	return TileSize * math.Exp2(v.Zoom)
}

// world returns the Mercator pixel position of p at the viewport zoom,
// origin at the north-west corner of the world.
func (v Viewport) world(p orb.Point) synth.Pixel {
	m := project.WGS84.ToMercator(p)
	ws := v.worldSize()
	return synth.Pixel{
		X: (m[0]/worldMeters + 0.5) * ws,
		Y: (0.5 - m[1]/worldMeters) * ws,
	}
}

func (v Viewport) fromWorld(px synth.Pixel) orb.Point {
	ws := v.worldSize()
	m := orb.Point{
		(px.X/ws - 0.5) * worldMeters,
		(0.5 - px.Y/ws) * worldMeters,
	}
	return project.Mercator.ToWGS84(m)
}

func (v Viewport) rotate(p synth.Pixel, deg float64) synth.Pixel {
	if deg == 0 {
		return p
	}
	s, c := math.Sincos(deg * math.Pi / 180)
	return synth.Pixel{X: p.X*c - p.Y*s, Y: p.X*s + p.Y*c}
}

// Project implements synth.Projector. Points are placed on the world copy
// nearest the center, so a window across the antimeridian draws both sides.
func (v Viewport) Project(p orb.Point) synth.Pixel {
	center := v.world(orb.Point{v.Longitude, v.Latitude})
	w := v.world(p)
	ws := v.worldSize()
	dx := w.X - center.X
	dx -= ws * math.Round(dx/ws)
	d := v.rotate(synth.Pixel{X: dx, Y: w.Y - center.Y}, -v.Bearing)
	return synth.Pixel{X: d.X + v.Width/2, Y: d.Y + v.Height/2}
}

// Unproject implements synth.Projector.
func (v Viewport) Unproject(px synth.Pixel) orb.Point {
	center := v.world(orb.Point{v.Longitude, v.Latitude})
	d := v.rotate(synth.Pixel{X: px.X - v.Width/2, Y: px.Y - v.Height/2}, v.Bearing)
	return v.fromWorld(synth.Pixel{X: d.X + center.X, Y: d.Y + center.Y})
}

// Bounds returns the geographic box enclosing the window. With a bearing
// the box is the envelope of the rotated window. Longitudes are not wrapped:
// a window across the antimeridian yields West < -180 or East > 180.
func (v Viewport) Bounds() pcd.BoundingBox {
	corners := []synth.Pixel{{X: 0, Y: 0}, {X: v.Width, Y: 0}, {X: v.Width, Y: v.Height}, {X: 0, Y: v.Height}}
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range corners {
		b = b.Extend(v.Unproject(c))
	}
	return pcd.BoundingBox{West: b.Min.Lon(), South: b.Min.Lat(), East: b.Max.Lon(), North: b.Max.Lat()}
}

// View returns what the synthesizer needs from this camera.
func (v Viewport) View() synth.View {
	return synth.View{Bounds: v.Bounds(), Zoom: v.Zoom}
}

// FitBounds returns a north-up viewport of the given window size centered
// on b and zoomed so b fits inside the window minus padding on each side.
func FitBounds(b pcd.BoundingBox, width, height, padding float64) Viewport {
	v := Viewport{Width: width, Height: height}

	nw := v.world(orb.Point{b.West, b.North})
	se := v.world(orb.Point{b.East, b.South})
	dx, dy := se.X-nw.X, se.Y-nw.Y

	availW, availH := width-2*padding, height-2*padding
	if availW <= 0 || availH <= 0 {
		availW, availH = width, height
	}

	zoom := float64(MaxZoom)
	if dx > 0 && dy > 0 {
		zoom = math.Log2(math.Min(availW/dx, availH/dy))
	}
	center := v.fromWorld(synth.Pixel{X: (nw.X + se.X) / 2, Y: (nw.Y + se.Y) / 2})

	v.Longitude, v.Latitude = center.Lon(), center.Lat()
	v.Zoom = math.Max(0, math.Min(MaxZoom, zoom))
	return v
}
