package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	natsgo "github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchapp/internal/config"
	"github.com/ivankudzin/matchapp/internal/infra/pubsub"
	pgrepo "github.com/ivankudzin/matchapp/internal/repo/postgres"
	redrepo "github.com/ivankudzin/matchapp/internal/repo/redis"
	convsvc "github.com/ivankudzin/matchapp/internal/services/conversations"
	likessvc "github.com/ivankudzin/matchapp/internal/services/likes"
	matchessvc "github.com/ivankudzin/matchapp/internal/services/matches"
	"github.com/ivankudzin/matchapp/internal/services/notify"
	ratesvc "github.com/ivankudzin/matchapp/internal/services/rate"
	userssvc "github.com/ivankudzin/matchapp/internal/services/users"
	"github.com/ivankudzin/matchapp/internal/transport/http/handlers"
	"github.com/ivankudzin/matchapp/internal/transport/http/ws"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	nats       *natsgo.Conn
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
		if cfg.Postgres.AutoMigrate {
			if err := pgrepo.RunMigrations(cfg.Postgres.DSN); err != nil {
				pool.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			log.Info("postgres migrations applied")
		}
	}

	var redisClient *goredis.Client
	if c, err := redrepo.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Warn("redis init failed, like rate limiting disabled", zap.Error(err))
	} else {
		redisClient = c
	}

	transport, err := newTransport(cfg, redisClient, log)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}

	userRepo := pgrepo.NewUserRepo(pool)
	likeRepo := pgrepo.NewLikeRepo(pool)
	conversationRepo := pgrepo.NewConversationRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)

	dispatcher := notify.NewDispatcher(transport.publisher, notify.Config{
		ChannelPrefix:    cfg.Notify.ChannelPrefix,
		PublishTimeout:   cfg.Notify.PublishTimeout,
		FailureThreshold: cfg.Notify.Breaker.FailureThreshold,
		BreakerInterval:  cfg.Notify.Breaker.Interval,
		BreakerTimeout:   cfg.Notify.Breaker.OpenTimeout,
	}, log.Named("notify"))

	ledger := likessvc.NewLedger(likessvc.Dependencies{
		Likes: likeRepo,
		Users: userRepo,
	}, likessvc.Config{ListLimitDefault: cfg.Matching.ListLimitDefault})

	conversationService := convsvc.NewService(convsvc.Dependencies{
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Users:         userRepo,
		Notifier:      dispatcher,
	}, convsvc.Config{
		ListLimitDefault: cfg.Matching.ListLimitDefault,
		MessageMaxLength: cfg.Matching.MessageMaxLength,
	})

	matchDeps := matchessvc.Dependencies{
		Tx:            pgrepo.NewPairTxRunner(pool),
		Ledger:        ledger,
		Conversations: conversationService,
		Notifier:      dispatcher,
		Logger:        log.Named("matches"),
	}
	if redisClient != nil {
		matchDeps.Limiter = ratesvc.NewLimiter(
			redrepo.NewWindowRepo(redisClient),
			cfg.Matching.LikeRatePerMinute,
			cfg.Matching.LikeRatePer10Sec,
		)
	}
	matchService := matchessvc.NewService(matchDeps, matchessvc.Config{
		ProvisionRetries: cfg.Matching.ProvisionRetries,
	})

	RegisterRoutes(r, Dependencies{
		Users:         handlers.NewUsersHandler(userssvc.NewService(userRepo)),
		Likes:         handlers.NewLikesHandler(matchService, ledger),
		Conversations: handlers.NewConversationsHandler(conversationService),
		Health:        handlers.NewHealthHandler(healthChecks(pool, redisClient, transport.nats)...),
		Events:        ws.NewEventsHandler(transport.subscriber, dispatcher, log.Named("events")),
		Logger:        log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		nats:       transport.nats,
		httpRouter: r,
	}, nil
}

type pushTransport struct {
	publisher  notify.Publisher
	subscriber ws.Subscriber
	nats       *natsgo.Conn
}

func newTransport(cfg config.Config, redisClient *goredis.Client, log *zap.Logger) (pushTransport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Notify.Transport)) {
	case config.TransportNATS:
		nc, err := pubsub.ConnectNATS(pubsub.NATSOptions{
			URL:           cfg.NATS.URL,
			Name:          "matchapp-api",
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		}, log.Named("nats"))
		if err != nil {
			return pushTransport{}, err
		}
		return pushTransport{
			publisher:  pubsub.NewNATSPublisher(nc),
			subscriber: pubsub.NewNATSSubscriber(nc),
			nats:       nc,
		}, nil
	default:
		if redisClient == nil {
			log.Warn("redis unavailable, push notifications disabled")
			return pushTransport{}, nil
		}
		return pushTransport{
			publisher:  pubsub.NewRedisPublisher(redisClient),
			subscriber: pubsub.NewRedisSubscriber(redisClient),
		}, nil
	}
}

func healthChecks(pool *pgxpool.Pool, redisClient *goredis.Client, nc *natsgo.Conn) []handlers.HealthCheck {
	checks := []handlers.HealthCheck{{
		Name: "postgres",
		Check: func(ctx context.Context) error {
			if pool == nil {
				return errors.New("not configured")
			}
			return pool.Ping(ctx)
		},
	}}
	if redisClient != nil {
		checks = append(checks, handlers.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	if nc != nil {
		checks = append(checks, handlers.HealthCheck{
			Name: "nats",
			Check: func(context.Context) error {
				if !nc.IsConnected() {
					return fmt.Errorf("status %s", nc.Status())
				}
				return nil
			},
		})
	}
	return checks
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.nats != nil {
		if err := a.nats.Drain(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
