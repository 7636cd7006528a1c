package pcd

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the scenario invariants and returns every violation
// found, joined. The game core assumes a validated scenario; this is the
// upload path's job.
func (s *Scenario) Validate() error {
	var errs []error

	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(s.Flights) == 0 {
		errs = append(errs, errors.New("at least one flight is required"))
	}

	ids := make(map[string]struct{}, len(s.Flights))
	for i, f := range s.Flights {
		if f.ID == "" {
			errs = append(errs, fmt.Errorf("flight %d: id is required", i))
			continue
		}
		if _, dup := ids[f.ID]; dup {
			errs = append(errs, fmt.Errorf("flight %q: duplicate id", f.ID))
		}
		ids[f.ID] = struct{}{}

		if f.LatitudeDeg < -90 || f.LatitudeDeg > 90 {
			errs = append(errs, fmt.Errorf("flight %q: latitude %v out of range", f.ID, f.LatitudeDeg))
		}
		if f.LongitudeDeg < -180 || f.LongitudeDeg > 180 {
			errs = append(errs, fmt.Errorf("flight %q: longitude %v out of range", f.ID, f.LongitudeDeg))
		}
		if f.TrackDeg < 0 || f.TrackDeg >= 360 {
			errs = append(errs, fmt.Errorf("flight %q: track %v out of range", f.ID, f.TrackDeg))
		}
		if f.GroundSpeedKts < 0 {
			errs = append(errs, fmt.Errorf("flight %q: negative ground speed", f.ID))
		}
		if f.Category != "" && !f.Category.Valid() {
			errs = append(errs, fmt.Errorf("flight %q: unknown category %q", f.ID, f.Category))
		}
	}

	seen := make(map[string]struct{}, len(s.PCDs))
	for _, p := range s.PCDs {
		if !p.Valid() {
			errs = append(errs, fmt.Errorf("pcd %s: must reference two distinct flights", p))
			continue
		}
		for _, id := range p {
			if _, ok := ids[id]; !ok {
				errs = append(errs, fmt.Errorf("pcd %s: unknown flight %q", p, id))
			}
		}
		if _, dup := seen[p.Key()]; dup {
			errs = append(errs, fmt.Errorf("pcd %s: duplicate pair", p))
		}
		seen[p.Key()] = struct{}{}
	}

	b := s.Boundaries
	if b.West >= b.East || b.South >= b.North {
		errs = append(errs, errors.New("boundaries must be [west, south, east, north] with west < east and south < north"))
	}

	return errors.Join(errs...)
}
