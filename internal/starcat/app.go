// Package starcat implements the catalog service the harness drives. The
// endpoints are deliberately dumb; the interesting knobs are the item
// limit, the artificial delay and the worker count, all set through the
// environment so a test run can shape the service's behavior.
package starcat

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"

	"loadcheck/internal/config"
)

// App wires the fiber server to the request worker pool.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	fiber  *fiber.App
	pool   *Pool

	// delay supplies the artificial per-request delay. Overridable in
	// tests where a random duration would be flaky.
	delay func() time.Duration
}

// NewApp creates the service. The access log goes to accessLog (stdout in
// production); diagnostics go through logger (stderr), which is also
// where the readiness markers appear.
func NewApp(cfg *config.Config, logger *slog.Logger, accessLog io.Writer) *App {
	f := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
	})
	f.Use(fiberlogger.New(fiberlogger.Config{Output: accessLog}))

	a := &App{
		cfg:    cfg,
		logger: logger,
		fiber:  f,
		pool:   NewPool(cfg.Workers, logger),
	}
	a.delay = a.randomDelay

	f.Get("/health", a.HealthAction)
	f.Get("/people/:id", a.ItemAction)
	f.Get("/planets/:id", a.ItemAction)
	f.Get("/starships/:id", a.ItemAction)

	return a
}

// Listen binds addr and serves until Shutdown. The listener is bound
// before the workers announce readiness, so a reader of the diagnostic
// stream can treat the last marker line as "accepting requests".
func (a *App) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.logger.Info("starting starcat",
		slog.String("addr", ln.Addr().String()),
		slog.Int("workers", a.cfg.Workers),
		slog.Int("idLimit", a.cfg.IDLimit),
		slog.Int("maxDelayMs", a.cfg.MaxDelayMs))
	a.pool.Start()
	return a.fiber.Listener(ln)
}

// Shutdown stops the server gracefully, then drains the worker pool.
func (a *App) Shutdown() error {
	err := a.fiber.ShutdownWithTimeout(a.cfg.ShutdownTimeout())
	a.pool.Close()
	return err
}

// Test drives a request through the app in-process (fiber's test hook).
func (a *App) Test(req *http.Request, msTimeout ...int) (*http.Response, error) {
	return a.fiber.Test(req, msTimeout...)
}
