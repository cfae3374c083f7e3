package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/model"
)

type createWorkflowRequest struct {
	model.WorkflowDefinition
	Actor string `json:"actor"`
}

type updateWorkflowRequest struct {
	model.WorkflowDefinition
	Actor             string `json:"actor"`
	ChangeDescription string `json:"changeDescription"`
}

func (s *Server) HandleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, api.ValidationError{Message: "invalid request payload"})
		return
	}
	def, err := s.metadata.Create(r.Context(), &req.WorkflowDefinition, req.Actor)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, def)
}

func (s *Server) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	def, err := s.metadata.Get(r.Context(), vars["workspace"], vars["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (s *Server) HandleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req updateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, api.ValidationError{Message: "invalid request payload"})
		return
	}
	req.WorkflowDefinition.Workspace = vars["workspace"]
	req.WorkflowDefinition.Id = vars["id"]
	def, err := s.metadata.Update(r.Context(), &req.WorkflowDefinition, req.Actor, req.ChangeDescription)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (s *Server) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	versions, err := s.metadata.ListVersions(r.Context(), vars["workspace"], vars["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, versions)
}

func (s *Server) HandleRestoreWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		respondWithError(w, api.ValidationError{Message: "version must be a number"})
		return
	}
	result, err := s.metadata.Restore(r.Context(), vars["workspace"], vars["id"], version, r.URL.Query().Get("actor"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
