package web

import (
	"net/http"

	geojson "github.com/paulmach/go.geojson"
)

func (s *Server) handlePublicInbox(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.PublicInbox(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handlePublicInboxGeoJSON serves the public inbox as a feature collection
// of points for map clients.
func (s *Server) handlePublicInboxGeoJSON(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.PublicInbox(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, e := range entries {
		f := geojson.NewPointFeature([]float64{e.Coordinates.Lon, e.Coordinates.Lat})
		f.SetProperty("title", e.Title)
		if e.StationID != "" {
			f.SetProperty("countryCode", e.CountryCode)
			f.SetProperty("stationId", e.StationID)
		}
		fc.AddFeature(f)
	}

	body, err := fc.MarshalJSON()
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
