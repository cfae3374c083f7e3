package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/approval"
	"github.com/warden-io/warden/audit"
	"github.com/warden-io/warden/autonomy"
	"github.com/warden-io/warden/engine"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/store"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port       int
	metadata   *store.Service
	engine     *engine.Engine
	approvals  *approval.Service
	autonomy   *autonomy.Service
	trail      *audit.Trail
	executions persistence.ExecutionStorage
}

func NewServer(httpPort int, metadata *store.Service, eng *engine.Engine, approvals *approval.Service,
	autonomyService *autonomy.Service, trail *audit.Trail, executions persistence.ExecutionStorage) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		Port:       httpPort,
		metadata:   metadata,
		engine:     eng,
		approvals:  approvals,
		autonomy:   autonomyService,
		trail:      trail,
		executions: executions,
	}

	router := mux.NewRouter()
	router.HandleFunc("/workflow", s.HandleCreateWorkflow).Methods(http.MethodPost)
	router.HandleFunc("/workflow/{workspace}/{id}", s.HandleGetWorkflow).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{workspace}/{id}", s.HandleUpdateWorkflow).Methods(http.MethodPut)
	router.HandleFunc("/workflow/{workspace}/{id}/versions", s.HandleListVersions).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{workspace}/{id}/restore/{version}", s.HandleRestoreWorkflow).Methods(http.MethodPost)
	router.HandleFunc("/execution", s.HandleRunWorkflow).Methods(http.MethodPost)
	router.HandleFunc("/execution/{id}", s.HandleGetExecution).Methods(http.MethodGet)
	router.HandleFunc("/execution/{id}/cancel", s.HandleCancelExecution).Methods(http.MethodPost)
	router.HandleFunc("/approval/{workspace}", s.HandleListPendingApprovals).Methods(http.MethodGet)
	router.HandleFunc("/approval/{workspace}/bulk-decide", s.HandleBulkDecide).Methods(http.MethodPost)
	router.HandleFunc("/approval/{workspace}/{id}/decide", s.HandleDecide).Methods(http.MethodPost)
	router.HandleFunc("/autonomy/{workspace}", s.HandleListAutonomy).Methods(http.MethodGet)
	router.HandleFunc("/autonomy/{workspace}/reset", s.HandleResetAutonomy).Methods(http.MethodPost)
	router.HandleFunc("/autonomy/{workspace}/{action}", s.HandleSetAutoExecute).Methods(http.MethodPut)
	router.HandleFunc("/audit/{workspace}", s.HandleQueryAudit).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, "ok")
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message string) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondWithError maps the service error taxonomy onto http status codes
// and always carries the machine-checkable kind in the payload.
func respondWithError(w http.ResponseWriter, err error) {
	kind := api.KindOf(err)
	code := http.StatusInternalServerError
	switch kind {
	case api.KindValidation:
		code = http.StatusBadRequest
	case api.KindNotFound:
		code = http.StatusNotFound
	case api.KindNotActive, api.KindConflict:
		code = http.StatusConflict
	case api.KindTimeout:
		code = http.StatusGatewayTimeout
	}
	respondWithJSON(w, code, map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}
