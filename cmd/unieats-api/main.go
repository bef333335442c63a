// README: Entry point; loads config, wires stores, realtime hub and services, starts the HTTP server.
package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lm7452/UniEats/internal/config"
	httptransport "github.com/Lm7452/UniEats/internal/http"
	"github.com/Lm7452/UniEats/internal/infra"
	"github.com/Lm7452/UniEats/internal/modules/availability"
	"github.com/Lm7452/UniEats/internal/modules/order"
	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/notify"
	"github.com/Lm7452/UniEats/internal/observability"
	"github.com/Lm7452/UniEats/internal/realtime"
	"github.com/Lm7452/UniEats/internal/service"
	"github.com/Lm7452/UniEats/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inst, shutdownTelemetry, err := observability.Init(ctx, observability.Options{
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Env,
		LogLevel:     cfg.Telemetry.LogLevel,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("observability init: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			inst.Logger.Error("telemetry shutdown", "err", err)
		}
	}()
	logger := inst.Logger

	orderRepo, userRepo, closeDB := buildStores(ctx, cfg, logger)
	defer closeDB()

	bus, closeBus := buildBus(ctx, cfg, logger)
	defer closeBus()

	var hubOpts []realtime.Option
	var tickets *realtime.Tickets
	if cfg.Realtime.TicketSecret != "" {
		tickets = realtime.NewTickets(cfg.Realtime.TicketSecret, cfg.Realtime.TicketTTL)
		hubOpts = append(hubOpts, realtime.WithTickets(tickets))
	} else {
		logger.Warn("UNIEATS_REALTIME_TICKET_SECRET not set, websocket registrations are unauthenticated")
	}
	hubOpts = append(hubOpts,
		realtime.WithSendQueue(cfg.Realtime.SendQueue),
		realtime.WithAllowedOrigins(cfg.Realtime.AllowedOrigins...),
		realtime.WithLogger(logger),
	)
	hub := realtime.NewHub(bus, hubOpts...)
	if err := hub.Start(ctx); err != nil {
		logger.Error("realtime hub start", "err", err)
		os.Exit(1)
	}
	defer hub.Close()

	var verifier infra.TokenVerifier = infra.DevVerifier{}
	var notifier service.Notifier
	if cfg.Firebase.ProjectID != "" {
		fb, err := infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.Credentials)
		if err != nil {
			logger.Error("firebase init", "err", err)
			os.Exit(1)
		}
		if verifier, err = fb.Verifier(ctx); err != nil {
			logger.Error("firebase auth", "err", err)
			os.Exit(1)
		}
		if cfg.Push.Enabled {
			fcm, err := fb.Messaging(ctx)
			if err != nil {
				logger.Error("firebase messaging", "err", err)
				os.Exit(1)
			}
			notifier = notify.NewPusher(fcm, logger)
		}
	} else {
		logger.Warn("UNIEATS_FIREBASE_PROJECT_ID not set, using the development token verifier")
	}

	userSvc := user.NewService(userRepo, cfg.AdminEmails, logger)
	orderSvc := service.NewOrderService(service.OrderDeps{
		Orders:       orderRepo,
		Users:        userRepo,
		Coordinator:  order.NewCoordinator(orderRepo, logger),
		Availability: availability.NewRegistry(userRepo, logger),
		Emitter:      hub,
		Notifier:     notifier,
		Logger:       logger,
		EmitTimeout:  cfg.EmitTimeout,
	})
	defer orderSvc.Wait()

	api := service.NewTraced(orderSvc,
		service.WithLogger(logger),
		service.WithTracer(inst.Tracer("internal.service.orders")),
		service.WithMeter(inst.Meter("internal.service.orders")),
	)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Orders:         api,
		Users:          userSvc,
		Verifier:       verifier,
		Hub:            hub,
		Tickets:        tickets,
		Logger:         logger,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracerProvider: inst.TracerProvider,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Websocket connections are hijacked, so Shutdown does not track them.
	server.RegisterOnShutdown(hub.Close)

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		logger.Error("http listen", "addr", cfg.HTTP.Addr, "err", err)
		return
	}
	logger.Info("UniEats API listening", "addr", ln.Addr().String())
	if err := serve(ctx, server, ln, 10*time.Second); err != nil {
		logger.Error("http server exited", "err", err)
	}
	// Deferred Wait, bus and pool closes run from here, after every handler
	// has returned.
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (order.Repository, user.Repository, func()) {
	if cfg.DB.DSN == "" {
		logger.Warn("UNIEATS_DB_DSN not set, falling back to in-memory stores")
		return order.NewMemoryStore(), user.NewMemoryStore(), func() {}
	}
	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("postgres connect", "err", err)
		os.Exit(1)
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		logger.Error("apply migrations", "err", err)
		os.Exit(1)
	}
	logger.Info("stores configured with postgres", "statement_timeout", cfg.DB.StatementTimeout)
	return order.NewStore(pool, cfg.DB.StatementTimeout), user.NewStore(pool, cfg.DB.StatementTimeout), pool.Close
}

func buildBus(ctx context.Context, cfg config.Config, logger *slog.Logger) (realtime.Bus, func()) {
	if cfg.Redis.Addr == "" {
		logger.Info("UNIEATS_REDIS_ADDR not set, realtime events stay in this process")
		return realtime.NewLocalBus(), func() {}
	}
	rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Error("redis connect", "err", err)
		os.Exit(1)
	}
	logger.Info("realtime fan-out via redis", "addr", cfg.Redis.Addr, "channel", cfg.Realtime.Channel)
	return realtime.NewRedisBus(rdb, cfg.Realtime.Channel, logger), func() { _ = rdb.Close() }
}
