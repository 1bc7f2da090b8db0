package server

import (
	"context"
	"strings"

	"dermascan-be/internal/bootstrap"
	"dermascan-be/internal/config"
	"dermascan-be/internal/pkg/logger"
	"dermascan-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
	logger    logger.ILogger
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	log := container.Logger

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.App.BodyLimit,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			return serverutils.RenderError(ctx, log, err)
		},
	})

	// Bearer tokens only; no cookies.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: false,
		AllowHeaders:     cfg.App.CorsAllowedHeaders,
		AllowMethods:     "GET, POST, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type",
	}))

	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(ctx *fiber.Ctx) bool {
		return strings.HasPrefix(ctx.Path(), "/ws/")
	})))

	app.Use(serverutils.ErrorHandlerMiddleware(log))

	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{"service": "dermascan"}))
	})

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
		logger:    log,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.logger.Info("SERVER", "Server is running", map[string]interface{}{"port": s.cfg.App.Port})
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	c.AnalysisController.RegisterRoutes(app)
	c.ChatController.RegisterRoutes(app)
	c.NotificationHandler.RegisterRoutes(app)
}
