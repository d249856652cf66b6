// Package server exposes sessions over HTTP and streams turn events over
// websockets.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"slmchat/internal/config"
	"slmchat/internal/domain"
	"slmchat/internal/events"
	"slmchat/internal/logger"
	"slmchat/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Options holds everything the HTTP surface needs.
type Options struct {
	Config   config.ServerConfig
	Store    *session.Store
	Models   config.ModelTable
	Defaults domain.Params
	Bus      *events.Bus
	Logger   logger.Logger
}

type Server struct {
	app    *fiber.App
	cfg    config.ServerConfig
	hub    *Hub
	bus    *events.Bus
	logger logger.Logger
	cancel context.CancelFunc
	ctx    context.Context
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	bodyLimit := opts.Config.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 20
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit * 1024 * 1024,
		ErrorHandler:          errorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.Config.CorsAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	ctx, cancel := context.WithCancel(context.Background())
	// Without a bus there are no events to stream, so websockets are refused.
	var hub *Hub
	if opts.Bus != nil {
		hub = NewHub(log)
	}
	controller := &chatController{
		store:      opts.Store,
		models:     opts.Models,
		defaults:   opts.Defaults,
		hub:        hub,
		logger:     log,
		background: ctx,
	}
	controller.RegisterRoutes(app)

	return &Server{
		app:    app,
		cfg:    opts.Config,
		hub:    hub,
		bus:    opts.Bus,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.hub != nil {
		go func() {
			if err := s.hub.Run(s.ctx, s.bus); err != nil {
				s.logger.Error("HTTP", "Websocket hub stopped", map[string]interface{}{"error": err})
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP", "Server is running", map[string]interface{}{"addr": s.cfg.Addr})
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		s.cancel()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("HTTP", "Shutting down", nil)
	s.cancel()
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
