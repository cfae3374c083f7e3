package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/approval"
	"github.com/warden-io/warden/model"
)

type decideRequest struct {
	Approved bool   `json:"approved"`
	Actor    string `json:"actor"`
	Comment  string `json:"comment"`
}

type bulkDecideRequest struct {
	RequestIds []string `json:"requestIds"`
	Approved   bool     `json:"approved"`
	Actor      string   `json:"actor"`
}

func (s *Server) HandleListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var filter *approval.PendingFilter
	query := r.URL.Query()
	if query.Get("tier") != "" || query.Get("workflowId") != "" {
		filter = &approval.PendingFilter{WorkflowId: query.Get("workflowId")}
		if tierParam := query.Get("tier"); tierParam != "" {
			tier, ok := model.ParseRiskTier(tierParam)
			if !ok {
				respondWithError(w, api.ValidationError{Message: "unknown risk tier " + tierParam})
				return
			}
			filter.Tier = &tier
		}
	}
	pending, err := s.approvals.ListPending(r.Context(), vars["workspace"], filter)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pending)
}

func (s *Server) HandleDecide(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, api.ValidationError{Message: "invalid request payload"})
		return
	}
	if req.Actor == "" {
		respondWithError(w, api.ValidationError{Message: "actor can not be empty"})
		return
	}
	decided, err := s.approvals.Decide(r.Context(), vars["id"], req.Approved, req.Actor, req.Comment)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, decided)
}

func (s *Server) HandleBulkDecide(w http.ResponseWriter, r *http.Request) {
	var req bulkDecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, api.ValidationError{Message: "invalid request payload"})
		return
	}
	if req.Actor == "" {
		respondWithError(w, api.ValidationError{Message: "actor can not be empty"})
		return
	}
	result := s.approvals.BulkDecide(r.Context(), req.RequestIds, req.Approved, req.Actor)
	respondWithJSON(w, http.StatusOK, result)
}
