package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/model"
)

func (s *Server) HandleQueryAudit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	query := r.URL.Query()
	filter := model.AuditFilter{
		Workspace:   vars["workspace"],
		WorkflowId:  query.Get("workflowId"),
		ExecutionId: query.Get("executionId"),
	}
	if from := query.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			respondWithError(w, api.ValidationError{Message: "from must be RFC3339"})
			return
		}
		filter.From = t
	}
	if to := query.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			respondWithError(w, api.ValidationError{Message: "to must be RFC3339"})
			return
		}
		filter.To = t
	}
	records, err := s.trail.Query(r.Context(), filter)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}
