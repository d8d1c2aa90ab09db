package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"flashdeal/internal/config"
	service "flashdeal/internal/domain/service/deal"
	"flashdeal/internal/infrastructure/memstore"
	"flashdeal/internal/infrastructure/notifier"
	"flashdeal/internal/infrastructure/persistence"
	"flashdeal/internal/infrastructure/redisstore"
	"flashdeal/internal/server"
	"flashdeal/internal/worker"
	"flashdeal/pkg/application/connectors"
	"flashdeal/pkg/application/modules"
	"flashdeal/pkg/logx"
	"flashdeal/pkg/middlewarex"
)

const httpServerReadHeaderTimeout = 5 * time.Second

func Run(ctx context.Context, log *slog.Logger) error {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	clock := clockwork.NewRealClock()

	// 2. Stores
	dealStore, userStore, productStore, closeStores, err := newStores(ctx, cfg, clock)
	if err != nil {
		return fmt.Errorf("stores: %w", err)
	}
	defer closeStores(ctx)

	// 3. Redemption service
	svc := service.NewDealService(dealStore, userStore, productStore, clock).
		WithZeroDiscountPolicy(cfg.Deal.DeactivateZeroDiscount)

	// 4. Alerting (optional)
	if cfg.Bot.Enabled() {
		alertBot, err := notifier.NewTelegramBot(cfg.Bot.Token, cfg.Bot.ChatID)
		if err != nil {
			return fmt.Errorf("notifier bot: %w", err)
		}

		events := make(chan service.Event, 100)
		svc = svc.WithEvents(events)

		go func() {
			log.Info("notifier bot started listening")
			if err := alertBot.Run(ctx, events); err != nil && ctx.Err() == nil {
				log.Error("notifier bot stopped", logx.Error(err))
			}
		}()
	}

	// 5. Expiration sweeper
	sweeper := worker.NewSweeper(svc, clock, cfg.Sweeper.Period)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("sweeper.Start: %w", err)
	}
	defer sweeper.Stop()

	// 6. HTTP
	var masker logx.SensitiveDataMaskerInterface = logx.NewSensitiveDataMasker()
	if !cfg.HTTP.MaskSensitiveData {
		masker = logx.NewNopSensitiveDataMasker()
	}

	router := chi.NewRouter()
	router.Use(
		middlewarex.TraceID,
		middlewarex.Logger,
		middlewarex.Recovery,
		middlewarex.RequestLogging(masker, cfg.HTTP.LogFieldMaxLen),
		middlewarex.ResponseLogging(masker, cfg.HTTP.LogFieldMaxLen),
	)

	server.NewServer(server.NewDealServer(svc)).RegisterRoutes(router)

	g, ctx := errgroup.WithContext(ctx)

	modules.HTTPServer{ShutdownTimeout: cfg.HTTP.ShutdownTimeout}.Run(ctx, g, &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: httpServerReadHeaderTimeout,
	})

	modules.ProbeServer{
		Name:          cfg.App.Name,
		Version:       cfg.App.Version,
		ListenAddress: cfg.HTTP.ProbeListenAddress,
	}.Run(ctx, g)

	modules.MetricServer{ListenAddress: cfg.HTTP.MetricsListenAddress}.Run(ctx, g)

	// 7. Distributed sweep scheduling (optional)
	if cfg.Sweeper.UseAsynq && cfg.Redis.Address != "" {
		modules.AsynqServer{
			RedisUsername: cfg.Redis.Username,
			RedisPassword: cfg.Redis.Password,
			RedisAddress:  cfg.Redis.Address,
			RedisDB:       cfg.Redis.DatabaseNumber,
		}.Run(ctx, g,
			modules.AsynqQueues{"default": 1},
			modules.AsynqHandler{
				Pattern: worker.TaskDeactivateExpired,
				Handle:  worker.HandleDeactivateExpired(svc),
			},
		)

		modules.AsynqScheduler{
			RedisUsername: cfg.Redis.Username,
			RedisPassword: cfg.Redis.Password,
			RedisAddress:  cfg.Redis.Address,
			RedisDB:       cfg.Redis.DatabaseNumber,
		}.Run(ctx, g, modules.AsynqSchedulerEntry{
			Cronspec: "@every " + cfg.Sweeper.Period.String(),
			Task:     worker.NewDeactivateExpiredTask(),
		})
	}

	return g.Wait()
}

func newStores(
	ctx context.Context,
	cfg config.Config,
	clock clockwork.Clock,
) (service.DealStore, service.UserStore, service.ProductStore, func(context.Context), error) {
	switch cfg.Store.Backend {
	case "postgres":
		pg := &connectors.Postgres{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		}

		db := pg.Client(ctx)
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("db ping: %w", err)
		}

		dealRepo := persistence.NewDealRepository(db, clock).WithLockTimeout(cfg.Deal.LockTimeout)

		return dealRepo, persistence.NewUserRepository(db), persistence.NewProductRepository(db), pg.Close, nil

	case "redis":
		rd := &connectors.Redis{
			Username:           cfg.Redis.Username,
			Password:           cfg.Redis.Password,
			Address:            cfg.Redis.Address,
			DatabaseNumber:     cfg.Redis.DatabaseNumber,
			PoolSize:           cfg.Redis.PoolSize,
			MinIdleConnections: cfg.Redis.MinIdleConnections,
			MaxIdleConnections: cfg.Redis.MaxIdleConnections,
		}

		client := rd.Client(ctx)

		return redisstore.NewDealStore(client, clock), redisstore.NewUserStore(client), redisstore.NewProductStore(client), rd.Close, nil

	case "memory":
		dealStore := memstore.NewDealStore(clock).WithLockTimeout(cfg.Deal.LockTimeout)

		return dealStore, memstore.NewUserStore(), memstore.NewProductStore(), func(context.Context) {}, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
