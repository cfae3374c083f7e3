package agent

import (
	"sync"
	"time"

	"github.com/warden-io/warden/approval"
	"github.com/warden-io/warden/audit"
	"github.com/warden-io/warden/autonomy"
	"github.com/warden-io/warden/config"
	"github.com/warden-io/warden/dispatch"
	"github.com/warden-io/warden/engine"
	"github.com/warden-io/warden/executor"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/persistence/inmem"
	"github.com/warden-io/warden/persistence/redis"
	"github.com/warden-io/warden/rest"
	"github.com/warden-io/warden/risk"
	"github.com/warden-io/warden/store"
)

// Agent wires the full service together: storage, metadata store, risk
// classifier, autonomy model, approval queue, execution engine, pollers and
// the http surface.
type Agent struct {
	Config          config.Config
	Dispatcher      *dispatch.Registry
	storage         persistence.Storage
	metadata        *store.Service
	classifier      *risk.Classifier
	autonomyService *autonomy.Service
	approvals       *approval.Service
	trail           *audit.Trail
	engine          *engine.Engine
	retryExecutor   *executor.RetryExecutor
	expiryExecutor  *executor.ExpiryExecutor
	httpServer      *rest.Server
	shutdown        bool
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config:     conf,
		Dispatcher: dispatch.NewRegistry(),
	}
	setup := []func() error{
		a.setupStorage,
		a.setupServices,
		a.setupEngine,
		a.setupExecutors,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.storage = redis.NewStorage(redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		})
	default:
		a.storage = inmem.NewStorage()
	}
	return nil
}

func (a *Agent) setupServices() error {
	var err error
	a.metadata = store.NewService(a.storage.Workflows())
	a.classifier = risk.NewClassifier(a.Config.RiskOverrides)
	a.autonomyService = autonomy.NewService(a.storage.Autonomy(), a.Config.Autonomy)
	expiry := time.Duration(a.Config.Engine.ApprovalExpirySeconds) * time.Second
	a.approvals = approval.NewService(a.storage.Approvals(), a.autonomyService, nil, a.storage.DelayQueue(), expiry)
	a.trail, err = audit.NewTrail(a.storage.Audit(), a.Config.AuditLogFile)
	return err
}

func (a *Agent) setupEngine() error {
	a.engine = engine.NewEngine(a.Config, a.storage, a.metadata, a.classifier,
		a.autonomyService, a.approvals, a.trail, a.Dispatcher, &a.wg)
	a.approvals.SetResumer(a.engine)
	a.engine.Start()
	return nil
}

func (a *Agent) setupExecutors() error {
	a.retryExecutor = executor.NewRetryExecutor(a.storage.DelayQueue(), a.engine, &a.wg)
	a.expiryExecutor = executor.NewExpiryExecutor(a.storage.DelayQueue(), a.approvals, &a.wg)
	if err := a.retryExecutor.Start(); err != nil {
		return err
	}
	return a.expiryExecutor.Start()
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadata, a.engine,
		a.approvals, a.autonomyService, a.trail, a.storage.Executions())
	return err
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.httpServer.Stop,
		a.retryExecutor.Stop,
		a.expiryExecutor.Stop,
		a.engine.Stop,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
