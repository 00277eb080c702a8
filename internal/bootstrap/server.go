package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/telcoops/vnf-lifecycle-manager/internal/config"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/persistence"
	"github.com/telcoops/vnf-lifecycle-manager/internal/saga"
	"github.com/telcoops/vnf-lifecycle-manager/internal/transport/http/handlers"
	"github.com/telcoops/vnf-lifecycle-manager/internal/transport/http/middleware"
	"github.com/telcoops/vnf-lifecycle-manager/internal/usecase"
)

// Run starts the northbound API server.
func Run(ctx context.Context, cfg config.Config) error {
	start := time.Now()
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	conn, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	log.Infof("bootstrap: db init in %s", time.Since(start))
	defer conn.Close()

	eventStore := persistence.NewEventStore(conn)
	orch := saga.NewOrchestrator(
		conn,
		persistence.NewSagaRepository(conn),
		persistence.NewTimeoutRepository(conn),
		persistence.NewOutboxRepository(conn),
		eventStore,
		saga.Definitions(saga.Topics{
			Reserve: cfg.NATS.ReserveSubject,
			Deploy:  cfg.NATS.DeploySubject,
			Release: cfg.NATS.ReleaseSubject,
		}),
		cfg.Saga.StepTimeout,
		log,
	)
	lifecycle := usecase.NewLifecycle(conn, eventStore, orch, log)
	idemRepo := persistence.NewIdempotencyRepository(conn)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(log), gin.Recovery())
	requireIdemKey := cfg.Env == "prod"
	handler := handlers.NewHandler(lifecycle, conn)
	routerBuilder := handlers.NewRouter(handler)
	routerBuilder.RegisterRoutes(router, middleware.Idempotency(idemRepo, requireIdemKey, log))

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("bootstrap: server listening on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.WithError(err).Error("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}

	return nil
}
