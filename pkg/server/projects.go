package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	errs "github.com/matzehuels/stratum/pkg/errors"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleSaveProject stores the current registry under {name}.
func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := errs.ValidateID(name); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	doc := s.reg.Serialize()
	s.mu.Unlock()

	info, err := s.store.Save(r.Context(), name, doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// handleLoadProject replaces the registry with the stored project {name}.
func (s *Server) handleLoadProject(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deserialize(w, r, doc)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
