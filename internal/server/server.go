package server

import (
	"context"
	"log"
	"time"

	"curiow-be/internal/bootstrap"
	"curiow-be/internal/config"
	"curiow-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	// No write timeout: a synchronous ask may hold the response for the whole
	// dispatch timeout.
	app := fiber.New(fiber.Config{
		BodyLimit:   1 * 1024 * 1024,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 2 * time.Minute,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))
	app.Use(otelfiber.Middleware())
	app.Use(serverutils.ErrorHandlerMiddleware())

	s := &Server{app: app, cfg: cfg, container: container}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse("ok", s.container.Health(ctx.UserContext())))
	})

	api := s.app.Group("/api")
	s.container.DeepChatController.RegisterRoutes(api)
	s.container.EventStreamHandler.RegisterRoutes(api)
}

func (s *Server) Run() error {
	log.Printf("Deep-chat API listening on :%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
