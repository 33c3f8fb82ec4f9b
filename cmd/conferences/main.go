// Command conferences is the process bootstrap (E6): wires configuration,
// the store, the bus, the authorization gate, the dispatcher and its
// registered handlers, the vacuum scheduler, and a minimal ops HTTP
// surface, then runs until signalled to shut down — grounded on the
// teacher's cmd/v1/session/main.go graceful-shutdown shape.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/netology-group/conferences/internal/alert"
	"github.com/netology-group/conferences/internal/authz/httpgate"
	"github.com/netology-group/conferences/internal/bus"
	"github.com/netology-group/conferences/internal/config"
	"github.com/netology-group/conferences/internal/correlate"
	"github.com/netology-group/conferences/internal/dispatch"
	"github.com/netology-group/conferences/internal/envelope"
	"github.com/netology-group/conferences/internal/handler"
	"github.com/netology-group/conferences/internal/logging"
	"github.com/netology-group/conferences/internal/scheduler"
	"github.com/netology-group/conferences/internal/store"
	"github.com/netology-group/conferences/internal/store/postgres"
	"github.com/netology-group/conferences/internal/telemetry"
)

const blockingPoolSize = 32

func main() {
	// Best-effort local-dev convenience; absence is expected in every
	// deployed environment, where variables come from the orchestrator.
	_ = godotenv.Load()

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		logging.Fatal(ctx, "failed to apply database migrations", zap.Error(err))
	}

	pgStore, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logging.Fatal(ctx, "failed to connect to postgres", zap.Error(err))
	}
	defer pgStore.Close()

	busClient, err := bus.New(cfg.BusAddr, cfg.BusPassword)
	if err != nil {
		logging.Fatal(ctx, "failed to connect to bus", zap.Error(err))
	}
	defer busClient.Close()

	agentID, err := uuid.Parse(cfg.AgentID)
	if err != nil {
		logging.Fatal(ctx, "AGENT_ID is not a valid uuid", zap.Error(err))
	}
	thisAgentID := store.AgentId(agentID)

	gate := httpgate.New(cfg.AuthzBaseURL, cfg.AuthzTimeout)
	builder := envelope.NewBuilder(thisAgentID, cfg.APIVersion)
	table := correlate.NewTable(cfg.CorrelationTableCapacity)
	alertSink := alert.New()

	disp := dispatch.New(busClient, table, alertSink, builder, blockingPoolSize)
	registerRoutes(disp, &handler.Deps{
		Store:       pgStore,
		Authz:       gate,
		Table:       table,
		Builder:     builder,
		Pool:        disp.Pool(),
		ThisAgentID: thisAgentID,
		APIVersion:  cfg.APIVersion,
	})

	var wg sync.WaitGroup
	inboundTopic := builder.InboundTopic()
	busClient.Subscribe(ctx, inboundTopic, &wg, func(topic string, payload []byte) {
		disp.Dispatch(ctx, topic, payload)
	})
	logging.Info(ctx, "subscribed to inbound topic", zap.String("topic", inboundTopic))

	sched, err := scheduler.New(cfg.VacuumCron, cfg.Audience, disp)
	if err != nil {
		logging.Fatal(ctx, "failed to configure vacuum scheduler", zap.Error(err))
	}
	sched.Start()

	if cfg.OtelEnabled {
		tp, err := telemetry.InitTracer(ctx, "conferences", cfg.OtelCollectorAddr)
		if err != nil {
			logging.Warn(ctx, "failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	opsServer := newOpsServer(cfg.MetricsAddr, pgStore)
	go func() {
		logging.Info(ctx, "ops server starting", zap.String("addr", cfg.MetricsAddr))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "ops server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info(ctx, "shutdown signal received")

	if err := sched.Stop(); err != nil {
		logging.Error(ctx, "scheduler shutdown error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "ops server shutdown error", zap.Error(err))
	}

	wg.Wait()
	logging.Info(ctx, "shutdown complete")
}

// registerRoutes binds every handler to its method and wires the one
// backend-response continuation (spec.md §4.6).
func registerRoutes(disp *dispatch.Dispatcher, deps *handler.Deps) {
	disp.Register("message.unicast", handler.NewUnicastPayload, handler.NewUnicastHandler(deps))
	disp.Register("message.broadcast", handler.NewBroadcastPayload, handler.NewBroadcastHandler(deps))
	disp.Register("system.vacuum", handler.NewVacuumPayload, handler.NewVacuumHandler(deps))
	disp.Register("system.rooms.info", handler.NewRoomsInfoPayload, handler.NewRoomsInfoHandler(deps))
	disp.Register("rtc.reader_config.update", handler.NewReaderConfigUpdatePayload, handler.NewReaderConfigUpdateHandler(deps))
	disp.RegisterContinuation(handler.MessageUnicastTag, handler.NewMessageUnicastContinuation(deps))
}

// newOpsServer builds the metrics/health listener. It binds no
// client-signalling surface — only Prometheus scraping and liveness.
func newOpsServer(addr string, pgStore *postgres.Store) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := pgStore.PoolStats(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: mux}
}
