package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/roadmap"
	"github.com/alpha216/dwroadmap/pkg/storage"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// record loads the snapshot named by ?id=, or the latest one.
func (s *Server) record(w http.ResponseWriter, r *http.Request) (*storage.Record, bool) {
	var (
		rec *storage.Record
		err error
	)
	if id := r.URL.Query().Get("id"); id != "" {
		rec, err = s.DB.GetSnapshot(r.Context(), id)
	} else {
		rec, err = s.DB.LatestSnapshot(r.Context())
	}
	if errors.Is(err, storage.ErrNoSnapshot) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return rec, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.DB.ListSnapshots(r.Context(), 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	writeJSON(w, rec.Snapshot)
}

func (s *Server) handleRoadmap(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	sections := rec.Snapshot.Roadmap()
	if name := r.URL.Query().Get("section"); name != "" {
		sec, found := roadmap.FindSection(sections, name)
		if !found {
			http.Error(w, "section not found", http.StatusNotFound)
			return
		}
		sections = []roadmap.Section{sec}
	}
	writeJSON(w, sections)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	writeJSON(w, rec.Snapshot.Summary())
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	code, err := audit.ParseCourseCode(strings.ToUpper(r.PathValue("code")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	writeJSON(w, rec.Snapshot.Course(code))
}
