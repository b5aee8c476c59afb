package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ShayCichocki/squad/internal/orchestrator"
	"github.com/ShayCichocki/squad/internal/state"
)

// Server represents the REST API server.
type Server struct {
	app    *fiber.App
	coord  *orchestrator.Coordinator
	store  state.Store
	config *Config
}

// Config holds the configuration for the REST API server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080").
	Address string `yaml:"address" mapstructure:"address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing.
	EnableCORS bool `yaml:"enable_cors" mapstructure:"enable_cors"`
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		EnableCORS:   true,
	}
}

// NewServer creates a new REST API server.
func NewServer(coord *orchestrator.Coordinator, store state.Store, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		ErrorHandler: customErrorHandler,
		AppName:      "Squad Orchestration API",
	})

	server := &Server{
		app:    app,
		coord:  coord,
		store:  store,
		config: config,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.app.Use(fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	if s.config.EnableCORS {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,PUT,DELETE,PATCH,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept,Authorization",
			MaxAge:       86400,
		}))
	}
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthCheck)
	s.app.Get("/ready", s.readyCheck)

	api := s.app.Group("/api/v1")

	api.Get("/health", s.healthCheck)
	api.Get("/ready", s.readyCheck)

	// Mission routes
	api.Post("/missions", s.createMission)
	api.Get("/missions", s.listMissions)
	api.Get("/missions/:id", s.getMission)
	api.Post("/missions/:id/activate", s.activateMission)
	api.Post("/missions/:id/pause", s.pauseMission)
	api.Post("/missions/:id/resume", s.resumeMission)
	api.Post("/missions/:id/plan", s.submitPlan)
	api.Get("/missions/:id/dag", s.getMissionDAG)
	api.Get("/missions/:id/tasks", s.listMissionTasks)
	api.Post("/missions/:id/check-completion", s.checkCompletion)

	// Agent routes
	api.Post("/agents", s.createAgent)
	api.Get("/agents", s.listAgents)
	api.Get("/agents/:id", s.getAgent)
	api.Post("/agents/:id/next-task", s.nextTask)

	// Task routes
	api.Post("/tasks", s.createTask)
	api.Get("/tasks/:id", s.getTask)
	api.Delete("/tasks/:id", s.deleteTask)
	api.Post("/tasks/:id/complete", s.completeTask)
	api.Post("/tasks/:id/fail", s.failTask)
	api.Post("/tasks/:id/retry", s.retryTask)
	api.Post("/tasks/:id/auditor-decision", s.auditorDecision)
	api.Post("/tasks/:id/human-response", s.humanResponse)
	api.Post("/tasks/:id/dependencies", s.addDependency)
	api.Delete("/tasks/:id/dependencies/:depId", s.removeDependency)
}

// Start starts the REST API server.
func (s *Server) Start() error {
	return s.app.Listen(s.config.Address)
}

// StartWithContext starts the server and shuts it down when the context
// is canceled.
func (s *Server) StartWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.app.Listen(s.config.Address)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}
