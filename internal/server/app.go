package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	ghandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/api"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/apikey"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/metrics"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/realtime"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/server/middleware"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/pkg/config"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/pkg/transport"
)

type App struct {
	logger   *slog.Logger
	config   *config.Config
	hub      *realtime.Hub
	registry *realtime.Registry
	handler  *realtime.Handler
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
	http     *http.Server

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, mailer api.Mailer, store *apikey.Store) *App {
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	hub := realtime.NewHub(logger, m)
	registry := realtime.NewRegistry(logger)
	resolver := realtime.NewResolver(cfg.Realtime.BackendURL, cfg.Realtime.LookupTimeout, logger)
	handler := realtime.NewHandler(logger, hub, registry, resolver, m)

	app := &App{
		logger:   logger,
		config:   cfg,
		hub:      hub,
		registry: registry,
		handler:  handler,
		metrics:  m,
		ctx:      rootCtx,
	}

	// Cycle the user's oldest connection to make room for a new one.
	connCycler := func(userID string) {
		if oldest, found := hub.OldestUserSession(userID); found {
			logger.Info("Cycling connection: closing oldest", slog.String("userID", userID), slog.String("connID", oldest.ID.String()))
			oldest.Conn.Close(errors.New("connection cycled by new connection"))
		}
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Realtime.Path,
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(logger),
			middleware.NewIdentityGate(logger, cfg.Realtime.JWTSecret),
			middleware.NewConnectionLimiter(logger, hub.UserSessionCount, connCycler, cfg.Realtime.ConnectionLimit),
		),
	)

	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins(cfg.Server.CORSOrigins),
		ghandlers.AllowCredentials(),
		ghandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		ghandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-API-Key", "X-Master-Key", "X-Requested-With", "Accept", "Origin"}),
	)
	apiRoutes := cors(api.Routes(logger, mailer, store, m, api.Config{
		APIKey:    cfg.Keys.APIKey,
		MasterKey: cfg.Keys.MasterKey,
	}))
	mux.Handle("/api", apiRoutes)
	mux.Handle("/api/", apiRoutes)

	mux.Handle("GET /metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /{$}", welcome)

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: a.config.Server.CORSOrigins,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{
			ReadTimeout:  a.config.Transport.ReadTimeout,
			WriteTimeout: a.config.Transport.WriteTimeout,
		},
		a.logger,
	)

	sess := &realtime.Session{
		ID:        conn.ID(),
		Conn:      conn,
		CreatedAt: time.Now(),
		UserID:    reqMeta.UserID,
		Bearer:    reqMeta.Bearer,
	}
	a.hub.Register(sess)

	conn.SetOnMessageHandler(a.handler.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Debug("Cleaning up connection after closure", slog.String("connID", id.String()))
		a.handler.HandleDisconnect(id)
	})

	connLogger.Info("Realtime connection established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

func welcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"success":true,"message":"Welcome to RiverFlow SMTP Server","documentation":"/api"}`))
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, sess := range a.hub.All() {
		sess.Conn.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
