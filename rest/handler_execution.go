package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/model"
)

type executionDetail struct {
	Execution *model.WorkflowExecution `json:"execution"`
	Steps     []model.StepExecution    `json:"steps"`
}

func (s *Server) HandleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	var req model.WorkflowRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, api.ValidationError{Message: "invalid request payload"})
		return
	}
	execution, err := s.engine.StartExecution(r.Context(), req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, execution)
}

func (s *Server) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	execution, err := s.executions.GetExecution(r.Context(), vars["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	steps, err := s.executions.ListStepExecutions(r.Context(), vars["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, executionDetail{Execution: execution, Steps: steps})
}

func (s *Server) HandleCancelExecution(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := s.executions.GetExecution(r.Context(), vars["id"]); err != nil {
		respondWithError(w, err)
		return
	}
	s.engine.CancelExecution(vars["id"])
	respondOK(w, "cancellation requested")
}
