package server

import (
	"github.com/paulmach/orb/geojson"

	"github.com/playpcd/pcdtrainer/internal/engine"
	"github.com/playpcd/pcdtrainer/internal/mapview"
	"github.com/playpcd/pcdtrainer/internal/synth"
)

// renderFeatures synthesizes the overlay for the game's current state as
// seen through vp.
func renderFeatures(s *synth.Synthesizer, e *engine.Engine, vp mapview.Viewport) *geojson.FeatureCollection {
	st := e.Snapshot()
	sc := e.Scenario()
	in := synth.Input{
		Flights:          sc.Flights,
		View:             vp.View(),
		SelectedFlightID: st.SelectedFlightID,
		ConfirmedPairs:   st.ConfirmedPairs,
		SolutionPairs:    sc.PCDs,
		IsOver:           st.IsOver,
	}
	return s.Synthesize(in, vp).GeoJSON()
}
