package main

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/giropos/fiscal/internal/api"
	v1 "github.com/giropos/fiscal/internal/api/v1"
	"github.com/giropos/fiscal/internal/authority"
	"github.com/giropos/fiscal/internal/config"
	"github.com/giropos/fiscal/internal/domain/contingency"
	"github.com/giropos/fiscal/internal/domain/sequence"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/pubsub"
	"github.com/giropos/fiscal/internal/pubsub/memory"
	pubsubRouter "github.com/giropos/fiscal/internal/pubsub/router"
	"github.com/giropos/fiscal/internal/repository/filestore"
	"github.com/giropos/fiscal/internal/retransmit"
	"github.com/giropos/fiscal/internal/service"
	"github.com/giropos/fiscal/internal/signer"
	"github.com/giropos/fiscal/internal/validator"
	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/fx"
)

func init() {
	// Fiscal timestamps carry an explicit offset; the process itself
	// runs in UTC
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Signing credential
			provideCredential,
			signer.NewSigner,

			// Repositories
			provideContingencyRepository,
			provideSequenceCounter,

			// Authority webservice
			authority.NewClient,

			// PubSub
			memory.NewPubSub,
			pubsubRouter.NewRouter,
			retransmit.NewPublisher,

			// Services
			service.NewServiceParams,
			service.NewEmissionService,
			service.NewRetransmissionService,
			service.NewStatusService,

			// Retransmission worker
			provideRetransmitHandler,

			// API
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(startServer),
	)
	app.Run()
}

func provideCredential(cfg *config.Configuration) (*signer.Credential, error) {
	return signer.LoadCredential(cfg.Certificate.Path, cfg.Certificate.Password)
}

func provideContingencyRepository(cfg *config.Configuration, log *logger.Logger) (contingency.Repository, error) {
	return filestore.NewContingencyRepository(cfg.Contingency.Dir, log)
}

func provideSequenceCounter(cfg *config.Configuration) (sequence.Counter, error) {
	return filestore.NewSequenceCounter(cfg.Contingency.Dir)
}

func provideRetransmitHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	retransmissionService service.RetransmissionService,
	log *logger.Logger,
) (retransmit.Handler, error) {
	return retransmit.NewHandler(pubSub, cfg, retransmissionService, log)
}

func provideHandlers(
	cfg *config.Configuration,
	log *logger.Logger,
	_ *validatorv10.Validate,
	emissionService service.EmissionService,
	retransmissionService service.RetransmissionService,
	statusService service.StatusService,
) api.Handlers {
	return api.Handlers{
		Emission:    v1.NewEmissionHandler(emissionService, cfg, log),
		Contingency: v1.NewContingencyHandler(retransmissionService, log),
		Health:      v1.NewHealthHandler(statusService, log),
	}
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	handler retransmit.Handler,
	retransmissionService service.RetransmissionService,
	publisher retransmit.Publisher,
	log *logger.Logger,
) {
	startAPIServer(lc, r, cfg, log)
	startMessageRouter(lc, router, handler, log)
	startContingencySweep(lc, retransmissionService, log)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	handler retransmit.Handler,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			handler.RegisterHandler(router)
			go func() {
				if err := router.Run(); err != nil {
					log.Errorw("message router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return router.Close()
		},
	})
}

// startContingencySweep re-enqueues every pending contingency document
// left over from previous runs. Retried with backoff because the queue
// directory may sit on storage that is still coming up.
func startContingencySweep(
	lc fx.Lifecycle,
	retransmissionService service.RetransmissionService,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				sweep := func() error {
					count, err := retransmissionService.RetransmitPending(context.Background())
					if err != nil {
						return err
					}
					if count > 0 {
						log.Infow("re-enqueued pending contingency documents", "count", count)
					}
					return nil
				}

				bo := backoff.NewExponentialBackOff()
				bo.MaxElapsedTime = 2 * time.Minute
				if err := backoff.Retry(sweep, bo); err != nil {
					log.Errorw("contingency sweep failed", "error", err)
				}
			}()
			return nil
		},
	})
}
