// Package server contains the HTTP handlers rendering the blog pages and the
// supporting API endpoints (storage uploads, websockets, health, metrics).
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/featureflags"
	"inkwell/internal/gateway"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
	"inkwell/internal/workflow"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// wireableHub is implemented by every real-time component that can be wired
// to Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	views          *html.Engine
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	tokens         *auth.TokenProvider
	storage        *storage.Service
	notifier       *notifications.Notifier
	presenceHub    *notifications.PresenceHub
	commentFeed    *notifications.CommentFeed
	hubs           []wireableHub // all hubs for wiring/shutdown iteration
	featureFlags   *featureflags.Manager
	gateway        gateway.Gateway
	listFlow       *workflow.List
	detailFlow     *workflow.Detail
	createFlow     *workflow.Create
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	prom := middleware.InitMetrics("inkwell")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		postRepo:       postRepo,
		commentRepo:    commentRepo,
		tokens:         auth.NewTokenProvider(cfg.JWTSecret),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	server.storage = storage.NewService(db, redisClient, cfg)

	// Real-time components. The comment feed works without Redis (local
	// dispatch only); cross-instance fan-out needs the notifier.
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}
	server.presenceHub = notifications.NewPresenceHub()
	server.commentFeed = notifications.NewCommentFeed(server.notifier)
	server.hubs = []wireableHub{server.presenceHub, server.commentFeed}

	server.gateway = gateway.NewLocal(postRepo, commentRepo, server.tokens, server.storage, server.commentFeed)
	server.listFlow = workflow.NewList(server.gateway)
	server.detailFlow = workflow.NewDetail(server.gateway)
	server.createFlow = workflow.NewCreate(server.gateway, http.DefaultClient)

	return server, nil
}

// NewApp builds the Fiber app with the template engine, middleware, and
// routes attached. Start calls this; tests can call it directly and drive
// the app with app.Test.
func (s *Server) NewApp() *fiber.App {
	viewsDir := s.config.ViewsDir
	if viewsDir == "" {
		viewsDir = "./views"
	}
	engine := html.New(viewsDir, ".html")
	engine.AddFunc("excerpt", excerpt)
	// Load eagerly; the list handler renders fragments through the engine
	// directly, outside the Fiber render path.
	if err := engine.Load(); err != nil {
		log.Printf("template load failed: %v", err)
	}
	s.views = engine

	app := fiber.New(fiber.Config{
		AppName: "Inkwell",
		Views:   engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			if wantsHTML(c) {
				return c.Status(fiber.StatusInternalServerError).Render("error", fiber.Map{
					"Title":   "Something went wrong",
					"Message": "Something went wrong rendering this page.",
				}, "layouts/main")
			}
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Tracing spans per request (before the context middleware so the trace
	// ID local is available for the request context)
	app.Use(middleware.TracingMiddleware())

	// Context middleware to propagate request ID, viewer ID, and trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (120 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Inkwell Metrics Dashboard",
	}))

	// Pages
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/blog", fiber.StatusFound)
	})
	app.Get("/blog", s.BlogListPage)
	// Specific /new routes before the generic /:postId route
	app.Get("/blog/new", s.NewPostPage)
	app.Post("/blog/new", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_post"), s.CreatePostSubmit)
	app.Get("/blog/:postId", s.BlogDetailPage)
	app.Post("/blog/:postId/comments", middleware.RateLimit(
		s.redis, 15, time.Minute, "create_comment"), s.CreateCommentSubmit)

	// Auth pages
	authPages := app.Group("/auth")
	authPages.Get("/login", s.LoginPage)
	authPages.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	authPages.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	authPages.Post("/logout", s.Logout)

	api := app.Group("/api")

	// Image storage: ticketed uploads and blob serving
	api.Post("/storage/upload/:ticket", s.UploadImage)
	api.Get("/storage/:id", s.GetStoredImage)

	// Websocket endpoints
	ws := api.Group("/ws")
	ws.Get("/presence/:postId", s.PresenceHandler())
	ws.Get("/comments/:postId", s.CommentStreamHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Degraded but serviceable: tickets fall back to process memory and
		// comment fan-out stays instance-local.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.NewApp()
	s.app = app

	// Wire all hubs to the Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					log.Printf("failed to start %s wiring: %v", h.Name(), err)
				}
			}()
		}
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close websocket connections and subscriptions gracefully
	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", h.Name(), err)
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
