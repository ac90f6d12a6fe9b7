package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/storyweb/internal/db"
	"github.com/OFFIS-RIT/storyweb/internal/metrics"
	"github.com/OFFIS-RIT/storyweb/internal/queue"
	mid "github.com/OFFIS-RIT/storyweb/internal/server/middleware"
	"github.com/OFFIS-RIT/storyweb/internal/storage"
	"github.com/OFFIS-RIT/storyweb/internal/util"
	"github.com/OFFIS-RIT/storyweb/pkg/cluster"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	storepgx "github.com/OFFIS-RIT/storyweb/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// New builds the echo instance with all middleware and routes. m may be nil.
func New(app *mid.App, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))
	e.Use(requestLogger(m))

	if m != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	}
	RegisterRoutes(e)
	return e
}

func requestLogger(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			took := time.Since(start)
			if m != nil {
				m.HTTPRequest(c.Request().Method, c.Path(), status, took)
			}
			logger.Debug("[Server] Request", "method", c.Request().Method, "uri", c.Request().RequestURI, "status", status, "took", took)
			return nil
		}
	}
}

// Init wires the API from the environment and serves until ctx ends.
func Init(ctx context.Context) error {
	databaseURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("MIGRATE_ON_START", true) {
		if err := db.Migrate(databaseURL); err != nil {
			return err
		}
	}
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	onto, err := loadOntology()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	engine := cluster.NewEngine(
		storepgx.NewStorage(pool),
		onto,
		cluster.WithRecorder(m),
	)

	app := &mid.App{
		Engine:         engine,
		AuthDisabled:   util.GetEnvBool("AUTH_DISABLED", false),
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserID:   util.GetEnv("MASTER_USER_ID"),
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	}

	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			return err
		}
		app.Key = k.Keyfunc
	} else if !app.AuthDisabled {
		logger.Warn("[Server] AUTH_URL not set, only the master API key is accepted")
	}

	conn, err := queue.Dial(ctx, queue.URLFromEnv())
	if err != nil {
		return err
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		return err
	}
	app.Queue = queue.NewChannelPublisher(ch)

	if cfg := storage.ConfigFromEnv(); cfg.Enabled() {
		client, err := storage.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		app.S3 = client
	}

	e := New(app, m)

	errCh := make(chan error, 1)
	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("[Server] Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Server] Failed to shutdown server", "err", err)
	}
	return nil
}

func loadOntology() (*ontology.Ontology, error) {
	if path := util.GetEnv("ONTOLOGY_PATH"); path != "" {
		return ontology.Load(path)
	}
	return ontology.Default()
}
