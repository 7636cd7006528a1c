package synth

import "github.com/paulmach/orb/geojson"

// GeoJSON converts the collection into a GeoJSON feature collection whose
// properties match the host's layer filters.
func (fc FeatureCollection) GeoJSON() *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		gf := geojson.NewFeature(f.Geometry)
		gf.Properties["type"] = string(f.Kind)
		gf.Properties["ref"] = f.Ref
		gf.Properties["selected"] = f.Selected
		gf.Properties["judged"] = f.Judged
		if f.Correct != nil {
			gf.Properties["correct"] = *f.Correct
		}
		if f.Text != "" {
			gf.Properties["text"] = f.Text
			gf.Properties["fontSize"] = f.FontSize
		}
		out.Append(gf)
	}
	return out
}
