package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dayroster/internal/core"
)

const maxJSONBody = 64 << 10

func (s *Server) handleListRoomMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.service.ListRoomMappings(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, mappings)
}

func (s *Server) handleGetRoomMapping(w http.ResponseWriter, r *http.Request) {
	m, err := s.service.GetRoomMapping(r.Context(), chi.URLParam(r, "prefix"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, m)
}

func (s *Server) handleCreateRoomMapping(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeMappingInput(w, r)
	if !ok {
		return
	}
	m, err := s.service.CreateRoomMapping(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateRoomMapping(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeMappingInput(w, r)
	if !ok {
		return
	}
	prefix := chi.URLParam(r, "prefix")
	if err := s.service.UpdateRoomMapping(r.Context(), prefix, in); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleDeleteRoomMapping(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRoomMapping(r.Context(), chi.URLParam(r, "prefix")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeMappingInput(w http.ResponseWriter, r *http.Request) (core.RoomMappingInput, bool) {
	var in core.RoomMappingInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadParameter, err))
		return in, false
	}
	return in, true
}
