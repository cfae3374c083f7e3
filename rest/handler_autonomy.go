package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	api "github.com/warden-io/warden/api/v1"
)

type setAutoExecuteRequest struct {
	AutoExecute bool `json:"autoExecute"`
}

func (s *Server) HandleListAutonomy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	prefs, err := s.autonomy.ListPreferences(r.Context(), vars["workspace"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, prefs)
}

func (s *Server) HandleSetAutoExecute(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req setAutoExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, api.ValidationError{Message: "invalid request payload"})
		return
	}
	pref, err := s.autonomy.SetAutoExecute(r.Context(), vars["workspace"], vars["action"], req.AutoExecute)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pref)
}

func (s *Server) HandleResetAutonomy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cleared, err := s.autonomy.ResetAll(r.Context(), vars["workspace"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}
